package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
)

// smsMessageLimit keeps a notification to a handful of SMS segments.
const smsMessageLimit = 480

// TwilioSender texts the site owner through the Twilio Messages API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	to         string
	baseURL    string
	client     *http.Client
}

func NewTwilioSender(cfg config.TwilioConfig, client *http.Client) *TwilioSender {
	return &TwilioSender{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.From,
		to:         cfg.To,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		client:     client,
	}
}

func formatSMS(sub contact.Submission) string {
	msg := []rune(sub.Message)
	body := string(msg)
	if len(msg) > smsMessageLimit {
		body = string(msg[:smsMessageLimit]) + "…"
	}
	return fmt.Sprintf("Portfolio contact from %s <%s>: %s", headerSafe(sub.Name), sub.Email, body)
}

func (s *TwilioSender) Send(ctx context.Context, sub contact.Submission) error {
	form := url.Values{}
	form.Set("To", s.to)
	form.Set("From", s.from)
	form.Set("Body", formatSMS(sub))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create twilio request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send twilio message: %w", redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("twilio API returned status %d", resp.StatusCode)
	}
	return nil
}
