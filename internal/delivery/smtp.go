package delivery

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/unclebandit/campaign-mailer/internal/model"
)

// SMTPAdapter relays mail through each account's own SMTP server.
type SMTPAdapter struct {
	now func() time.Time
}

var _ Adapter = (*SMTPAdapter)(nil)

func NewSMTPAdapter() *SMTPAdapter {
	return &SMTPAdapter{now: time.Now}
}

func (a *SMTPAdapter) Send(ctx context.Context, account *model.SendingAccount, msg Message) error {
	addr := net.JoinHostPort(account.Host, strconv.Itoa(account.Port))
	body := Compose(account, msg, a.now())

	var auth sasl.Client
	if account.Username != "" {
		auth = sasl.NewPlainClient("", account.Username, account.Password)
	}

	send := smtp.SendMail
	if account.UseTLS && account.Port == 465 {
		send = smtp.SendMailTLS
	}

	done := make(chan error, 1)
	go func() {
		done <- send(addr, auth, account.FromAddress, []string{msg.To}, bytes.NewReader(body))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send via %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
