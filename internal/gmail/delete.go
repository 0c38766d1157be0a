package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	gmailv1 "google.golang.org/api/gmail/v1"
)

const deleteChunk = 1000

// DeleteMessages moves messages to the trash, or removes them for good when
// permanent is set. Chunks that fail are counted, not returned as an error,
// unless ctx is cancelled.
func (c *Client) DeleteMessages(ctx context.Context, ids []string, permanent bool) (int, int, error) {
	var ok, failed int
	for start := 0; start < len(ids); start += deleteChunk {
		end := start + deleteChunk
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		err := c.call(ctx, costBatch, func() error {
			if permanent {
				return c.svc.Users.Messages.BatchDelete(user, &gmailv1.BatchDeleteMessagesRequest{Ids: chunk}).Context(ctx).Do()
			}
			return c.svc.Users.Messages.BatchModify(user, &gmailv1.BatchModifyMessagesRequest{
				Ids:            chunk,
				AddLabelIds:    []string{"TRASH"},
				RemoveLabelIds: []string{"INBOX"},
			}).Context(ctx).Do()
		})
		if err != nil {
			if ctx.Err() != nil {
				return ok, failed + len(ids) - start, ctx.Err()
			}
			c.logger.Errorf("failed to delete %d messages: %v", len(chunk), err)
			failed += len(chunk)
			continue
		}
		ok += len(chunk)
	}
	return ok, failed, nil
}

// SendMail sends a plain-text message from the authenticated account.
func (c *Client) SendMail(ctx context.Context, to, subject, body string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	sb.WriteString(body)

	raw := base64.URLEncoding.EncodeToString([]byte(sb.String()))
	err := c.call(ctx, costSend, func() error {
		_, err := c.svc.Users.Messages.Send(user, &gmailv1.Message{Raw: raw}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}
