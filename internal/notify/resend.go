package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
)

// ResendSender emails the site owner through the Resend API.
type ResendSender struct {
	apiKey  string
	baseURL string
	from    string
	to      string
	client  *http.Client
}

func NewResendSender(cfg config.ResendConfig, from, to string, client *http.Client) *ResendSender {
	return &ResendSender{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		from:    from,
		to:      to,
		client:  client,
	}
}

type resendEmail struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (s *ResendSender) Send(ctx context.Context, sub contact.Submission) error {
	html, err := renderHTML(sub)
	if err != nil {
		return err
	}
	text, err := renderText(sub)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(resendEmail{
		From:    s.from,
		To:      []string{s.to},
		Subject: subject(sub),
		HTML:    html,
		Text:    text,
		ReplyTo: sub.Email,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal resend email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create resend request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send resend email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr resendError
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("resend API returned status %d: %s", resp.StatusCode, apiErr.Name)
		}
		return fmt.Errorf("resend API returned status %d", resp.StatusCode)
	}
	return nil
}
