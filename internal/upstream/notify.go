package upstream

import (
	"context"
	"fmt"
	"strings"

	"github.com/FrK06/web-rag-original/internal/common"
	"github.com/FrK06/web-rag-original/internal/ratelimit"
	"github.com/sirupsen/logrus"
)

const defaultCallMessage = "This is an automated call."

type Receipt struct {
	SID       string `json:"sid"`
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// NotifyQuotas are daily caps: SMS and Call are service-wide, the Recipient
// rules apply per normalized phone number.
type NotifyQuotas struct {
	SMS           ratelimit.Rule
	Call          ratelimit.Rule
	RecipientSMS  ratelimit.Rule
	RecipientCall ratelimit.Rule
}

type NotificationService struct {
	client  *Client
	limiter ratelimit.Admitter
	quotas  NotifyQuotas
	log     logrus.FieldLogger
}

func NewNotificationService(client *Client, limiter ratelimit.Admitter, quotas NotifyQuotas, log logrus.FieldLogger) *NotificationService {
	return &NotificationService{client: client, limiter: limiter, quotas: quotas, log: log}
}

func (s *NotificationService) SendSMS(ctx context.Context, recipient, message string) (*Receipt, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: sms message is empty", common.ErrValidation)
	}
	return s.send(ctx, "/send-sms", recipient, message, s.quotas.SMS, s.quotas.RecipientSMS)
}

func (s *NotificationService) MakeCall(ctx context.Context, recipient, message string) (*Receipt, error) {
	if strings.TrimSpace(message) == "" {
		message = defaultCallMessage
	}
	return s.send(ctx, "/make-call", recipient, message, s.quotas.Call, s.quotas.RecipientCall)
}

func (s *NotificationService) send(ctx context.Context, path, recipient, message string, global, perRecipient ratelimit.Rule) (*Receipt, error) {
	if strings.TrimSpace(recipient) == "" {
		return nil, fmt.Errorf("%w: recipient is required", common.ErrValidation)
	}
	phone := FormatPhoneNumber(recipient)

	// per-recipient first, so a refused recipient does not spend the
	// service-wide quota
	if err := ratelimit.Enforce(ctx, s.limiter, phone, perRecipient); err != nil {
		return nil, err
	}
	if err := ratelimit.Enforce(ctx, s.limiter, ratelimit.GlobalIdentity, global); err != nil {
		return nil, err
	}

	var out Receipt
	if err := s.client.PostJSON(ctx, path, map[string]any{
		"recipient": phone,
		"message":   message,
	}, &out); err != nil {
		return nil, err
	}
	if out.Recipient == "" {
		out.Recipient = phone
	}
	s.log.WithFields(logrus.Fields{"recipient": phone, "sid": out.SID, "path": path}).Info("notification dispatched")
	return &out, nil
}
