// Package delivery hands rendered messages to a transport on behalf of a
// sending account.
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/campaign-mailer/internal/model"
)

// Message is one outbound email. RecipientID is zero for direct sends.
type Message struct {
	RecipientID int64
	CampaignID  int64
	To          string
	Subject     string
	Body        string
}

// Adapter delivers a message through the given account.
type Adapter interface {
	Send(ctx context.Context, account *model.SendingAccount, msg Message) error
}

// SendFunc lets a plain function act as an Adapter.
type SendFunc func(ctx context.Context, account *model.SendingAccount, msg Message) error

func (f SendFunc) Send(ctx context.Context, account *model.SendingAccount, msg Message) error {
	return f(ctx, account, msg)
}

// Render replaces {key} placeholders in template. Empty values render as "N/A".
func Render(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "N/A"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// Compose builds the RFC 5322 message bytes for msg sent from account.
func Compose(account *model.SendingAccount, msg Message, now time.Time) []byte {
	domain := "localhost"
	if at := strings.LastIndex(account.FromAddress, "@"); at >= 0 {
		domain = account.FromAddress[at+1:]
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", account.FromAddress)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	if msg.CampaignID != 0 {
		fmt.Fprintf(&buf, "X-Campaign-ID: %d\r\n", msg.CampaignID)
	}
	if msg.RecipientID != 0 {
		fmt.Fprintf(&buf, "X-Recipient-ID: %d\r\n", msg.RecipientID)
	}
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	buf.WriteString("\r\n")
	return buf.Bytes()
}
