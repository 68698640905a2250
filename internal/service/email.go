package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
)

type emailService struct {
	client *sendgrid.Client
	from   *mail.Email
}

// NewEmailService builds a SendGrid-backed notifier. Pass an empty API
// key to disable outgoing mail (callers treat a nil EmailService the
// same way).
func NewEmailService(apiKey, fromAddress, fromName string) EmailService {
	if apiKey == "" {
		return nil
	}
	return &emailService{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

func (s *emailService) SendSettlementRequested(ctx context.Context, payeeEmail string, amount decimal.Decimal, paymentLink string) error {
	subject := "Payment on its way"
	body := fmt.Sprintf(
		"A trip member has recorded a payment of %s to you.\n\nOnce you receive it, confirm it in the app so balances update.\nPayment reference: %s\n",
		amount.StringFixed(2), paymentLink,
	)
	return s.send(payeeEmail, subject, body)
}

func (s *emailService) SendSettlementResolved(ctx context.Context, payerEmail string, amount decimal.Decimal, confirmed bool) error {
	subject := "Payment confirmed"
	verdict := "confirmed"
	if !confirmed {
		subject = "Payment rejected"
		verdict = "rejected"
	}
	body := fmt.Sprintf("Your payment of %s was %s by the recipient.\n", amount.StringFixed(2), verdict)
	return s.send(payerEmail, subject, body)
}

func (s *emailService) send(to, subject, body string) error {
	message := mail.NewSingleEmail(s.from, subject, mail.NewEmail("", to), body, "")
	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}
