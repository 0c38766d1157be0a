package gmail

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	gmailv1 "google.golang.org/api/gmail/v1"

	"mailcleaner/internal/model"
)

const (
	previewLimit   = 500
	defaultSubject = "(No Subject)"
)

var (
	angleAddr  = regexp.MustCompile(`<([^>]+)>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ParseMessage converts a Gmail API message into the stored representation.
func ParseMessage(raw *gmailv1.Message) *model.Message {
	headers := map[string]string{}
	if raw.Payload != nil {
		for _, h := range raw.Payload.Headers {
			key := strings.ToLower(h.Name)
			if _, seen := headers[key]; !seen {
				headers[key] = h.Value
			}
		}
	}

	name, addr := ParseFrom(headers["from"])
	subject := strings.TrimSpace(headers["subject"])
	if subject == "" {
		subject = defaultSubject
	}

	msg := model.NewMessage(raw.Id, raw.ThreadId, name, addr, subject, raw.Snippet, parseDate(headers["date"], raw.InternalDate))

	unread := false
	for _, l := range raw.LabelIds {
		if l == "UNREAD" {
			unread = true
		}
	}
	msg.IsRead = !unread
	if raw.LabelIds != nil {
		msg.Labels = raw.LabelIds
	}

	msg.BodyPreview = bodyPreview(raw.Payload, raw.Snippet)
	msg.UnsubscribeLink, msg.UnsubscribeEmail = ParseListUnsubscribe(headers["list-unsubscribe"])
	return msg
}

// ParseFrom splits a From header into display name and lowercased address.
// The name falls back to the address.
func ParseFrom(from string) (name, addr string) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", ""
	}
	if parsed, err := mail.ParseAddress(from); err == nil {
		addr = strings.ToLower(parsed.Address)
		name = strings.TrimSpace(parsed.Name)
	} else if m := angleAddr.FindStringSubmatch(from); m != nil {
		addr = strings.ToLower(strings.TrimSpace(m[1]))
		name = strings.Trim(strings.TrimSpace(from[:strings.Index(from, "<")]), `"`)
	} else {
		addr = strings.ToLower(from)
	}
	if name == "" {
		name = addr
	}
	return name, addr
}

func parseDate(header string, internalMillis int64) time.Time {
	if header != "" {
		if t, err := mail.ParseDate(header); err == nil {
			return t.UTC()
		}
	}
	if internalMillis > 0 {
		return time.UnixMilli(internalMillis).UTC()
	}
	return time.Now().UTC()
}

// ParseListUnsubscribe returns the first http(s) link and the first mailto
// address from a List-Unsubscribe header.
func ParseListUnsubscribe(header string) (link, address string) {
	for _, m := range angleAddr.FindAllStringSubmatch(header, -1) {
		target := strings.TrimSpace(m[1])
		lower := strings.ToLower(target)
		switch {
		case link == "" && (strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")):
			link = target
		case address == "" && strings.HasPrefix(lower, "mailto:"):
			address = target[len("mailto:"):]
			if i := strings.Index(address, "?"); i >= 0 {
				address = address[:i]
			}
		}
	}
	return link, address
}

func bodyPreview(payload *gmailv1.MessagePart, snippet string) string {
	if payload == nil {
		return snippet
	}
	if text := findPart(payload, "text/plain"); text != "" {
		return clip(text)
	}
	if html := findPart(payload, "text/html"); html != "" {
		if text := htmlText(html); text != "" {
			return clip(text)
		}
	}
	return snippet
}

func findPart(part *gmailv1.MessagePart, mimeType string) string {
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		if data, err := decodeBody(part.Body.Data); err == nil {
			return data
		}
	}
	for _, p := range part.Parts {
		if text := findPart(p, mimeType); text != "" {
			return text
		}
	}
	return ""
}

func decodeBody(data string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
	}
	return string(b), err
}

func htmlText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

func clip(s string) string {
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	if utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	return string([]rune(s)[:previewLimit])
}
