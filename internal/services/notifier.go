package services

import (
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"github.com/zipdrophq/zipdrop-backend/internal/models"
)

// Notifier delivers codes and order updates over a side channel (SMS).
// Sends are best effort: the caller never blocks a state change on them.
type Notifier interface {
	SendOTP(phone, code string, purpose models.OTPPurpose) error
	SendOrderUpdate(phone, orderNumber string, status models.OrderStatus) error
}

// TwilioNotifier sends SMS through the Twilio REST API.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
	log    *zap.Logger
}

// NewTwilioNotifier creates a Twilio-backed notifier.
func NewTwilioNotifier(accountSID, authToken, from string, log *zap.Logger) (*TwilioNotifier, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing twilio credentials")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioNotifier{client: client, from: from, log: log}, nil
}

func (t *TwilioNotifier) SendOTP(phone, code string, purpose models.OTPPurpose) error {
	var body string
	switch purpose {
	case models.OTPPurposePickupConfirmation:
		body = fmt.Sprintf("Your ZipDrop pickup code is %s. Share it with the partner at pickup.", code)
	case models.OTPPurposeDeliveryConfirmation:
		body = fmt.Sprintf("Your ZipDrop delivery code is %s. Share it with the partner on delivery.", code)
	default:
		body = fmt.Sprintf("Your ZipDrop verification code is %s. Valid for 10 minutes.", code)
	}
	return t.send(phone, body)
}

func (t *TwilioNotifier) SendOrderUpdate(phone, orderNumber string, status models.OrderStatus) error {
	body := fmt.Sprintf("Order %s is now %s.", orderNumber, status)
	return t.send(phone, body)
}

func (t *TwilioNotifier) send(to, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		t.log.Warn("twilio send failed", zap.String("to", to), zap.Error(err))
		return err
	}
	if resp.Sid != nil {
		t.log.Debug("sms sent", zap.String("sid", *resp.Sid))
	}
	return nil
}

// NoopNotifier logs instead of sending, used when Twilio is not configured.
type NoopNotifier struct {
	log *zap.Logger
}

func NewNoopNotifier(log *zap.Logger) *NoopNotifier {
	return &NoopNotifier{log: log}
}

func (n *NoopNotifier) SendOTP(phone, _ string, purpose models.OTPPurpose) error {
	n.log.Info("otp send skipped, notifier not configured",
		zap.String("phone", phone), zap.String("purpose", string(purpose)))
	return nil
}

func (n *NoopNotifier) SendOrderUpdate(phone, orderNumber string, status models.OrderStatus) error {
	n.log.Info("order update skipped, notifier not configured",
		zap.String("phone", phone), zap.String("order", orderNumber), zap.String("status", string(status)))
	return nil
}
