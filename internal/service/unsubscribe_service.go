package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mailcleaner/internal/gmail"
	"mailcleaner/internal/logger"
	"mailcleaner/internal/model"
	"mailcleaner/internal/repository"
)

const (
	MethodHTTP   = "http"
	MethodMailto = "mailto"

	unsubscribeWorkers = 10
	maxPageBytes       = 1 << 20
)

var confirmationPhrases = []string{
	"unsubscribed",
	"removed",
	"successfully",
	"you have been unsubscribed",
	"subscription cancelled",
	"you will no longer receive",
}

type unsubscribeService struct {
	messages   repository.MessageRepository
	attempts   repository.UnsubscribeLogRepository
	mailbox    gmail.Mailbox
	logger     *logger.Logger
	httpClient *http.Client
}

func NewUnsubscribeService(
	messages repository.MessageRepository,
	attempts repository.UnsubscribeLogRepository,
	mailbox gmail.Mailbox,
	logger *logger.Logger,
) UnsubscribeService {
	return &unsubscribeService{
		messages: messages,
		attempts: attempts,
		mailbox:  mailbox,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Unsubscribe acts on one message, or on the newest message of a sender that
// carries an unsubscribe link or address.
func (s *unsubscribeService) Unsubscribe(ctx context.Context, messageID, senderEmail string) (*UnsubscribeResult, error) {
	msg, err := s.resolve(ctx, messageID, senderEmail)
	if err != nil {
		return nil, err
	}
	return s.unsubscribe(ctx, msg), nil
}

func (s *unsubscribeService) resolve(ctx context.Context, messageID, senderEmail string) (*model.Message, error) {
	if messageID != "" {
		msg, err := s.messages.FindByID(ctx, messageID)
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
		}
		return msg, nil
	}
	if strings.TrimSpace(senderEmail) == "" {
		return nil, fmt.Errorf("%w: email_id or sender_email required", model.ErrInvalidArgument)
	}

	msgs, err := s.messages.FindBySender(ctx, senderEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from %s: %w", senderEmail, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("no emails from %s: %w", senderEmail, repository.ErrNotFound)
	}
	for _, m := range msgs {
		if m.HasUnsubscribe() {
			return m, nil
		}
	}
	return msgs[0], nil
}

func (s *unsubscribeService) unsubscribe(ctx context.Context, msg *model.Message) *UnsubscribeResult {
	result := &UnsubscribeResult{SenderEmail: msg.SenderEmail}
	if !msg.HasUnsubscribe() {
		result.Message = "No unsubscribe method available"
		return result
	}

	if msg.UnsubscribeLink != "" {
		ok, text := s.viaHTTP(ctx, msg.UnsubscribeLink)
		s.record(ctx, msg, MethodHTTP, msg.UnsubscribeLink, ok, text)
		if ok {
			result.Success, result.Method, result.Message = true, MethodHTTP, text
			return result
		}
		result.Message = text
	}

	if msg.UnsubscribeEmail != "" {
		err := s.viaMailto(ctx, msg.UnsubscribeEmail)
		if err == nil {
			s.record(ctx, msg, MethodMailto, msg.UnsubscribeEmail, true, "")
			result.Success, result.Method = true, MethodMailto
			result.Message = "Unsubscribe email sent to " + msg.UnsubscribeEmail
			return result
		}
		s.record(ctx, msg, MethodMailto, msg.UnsubscribeEmail, false, err.Error())
		result.Message = err.Error()
	}
	return result
}

func (s *unsubscribeService) record(ctx context.Context, msg *model.Message, method, target string, ok bool, detail string) {
	attempt := &model.UnsubscribeAttempt{
		MessageID:   msg.ID,
		SenderEmail: msg.SenderEmail,
		Method:      method,
		Target:      target,
		Success:     ok,
	}
	if !ok {
		attempt.ErrorMessage = detail
	}
	if err := s.attempts.LogUnsubscribe(ctx, attempt); err != nil {
		s.logger.Error("Failed to log unsubscribe attempt:", err)
	}
}

func successStatus(code int) bool {
	switch code {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return true
	}
	return false
}

// viaHTTP tries a one-click POST first and falls back to visiting the page.
func (s *unsubscribeService) viaHTTP(ctx context.Context, link string) (bool, string) {
	form := url.Values{"List-Unsubscribe": {"One-Click"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Sprintf("invalid unsubscribe link: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if resp, err := s.httpClient.Do(req); err == nil {
		resp.Body.Close()
		if successStatus(resp.StatusCode) {
			return true, "Unsubscribed via one-click"
		}
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return false, fmt.Sprintf("invalid unsubscribe link: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Sprintf("failed to reach unsubscribe page: %v", err)
	}
	defer resp.Body.Close()
	if !successStatus(resp.StatusCode) {
		return false, fmt.Sprintf("unsubscribe page returned status code: %d", resp.StatusCode)
	}
	if confirmed(io.LimitReader(resp.Body, maxPageBytes)) {
		return true, "Successfully unsubscribed"
	}
	return true, "Unsubscribe page accessed"
}

func confirmed(page io.Reader) bool {
	doc, err := goquery.NewDocumentFromReader(page)
	if err != nil {
		return false
	}
	text := strings.ToLower(doc.Text())
	for _, phrase := range confirmationPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// viaMailto sends the unsubscribe request. A target may carry ?subject= and
// &body= parameters.
func (s *unsubscribeService) viaMailto(ctx context.Context, target string) error {
	to, query, _ := strings.Cut(strings.TrimPrefix(target, "mailto:"), "?")
	subject := "unsubscribe"
	body := "Please unsubscribe me from this mailing list."
	if query != "" {
		if params, err := url.ParseQuery(query); err == nil {
			if v := params.Get("subject"); v != "" {
				subject = v
			}
			if v := params.Get("body"); v != "" {
				body = v
			}
		}
	}
	return s.mailbox.SendMail(ctx, to, subject, body)
}

// UnsubscribeSenders handles each distinct sender once, several at a time.
// Results follow the order of first appearance.
func (s *unsubscribeService) UnsubscribeSenders(ctx context.Context, senderEmails []string) ([]*UnsubscribeResult, error) {
	seen := make(map[string]bool, len(senderEmails))
	var senders []string
	for _, e := range senderEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		senders = append(senders, e)
	}
	if len(senders) == 0 {
		return nil, fmt.Errorf("%w: no senders provided", model.ErrInvalidArgument)
	}

	results := make([]*UnsubscribeResult, len(senders))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < unsubscribeWorkers && w < len(senders); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := s.Unsubscribe(ctx, "", senders[i])
				if err != nil {
					res = &UnsubscribeResult{SenderEmail: senders[i], Message: err.Error()}
				}
				results[i] = res
			}
		}()
	}
	for i := range senders {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results, nil
}
