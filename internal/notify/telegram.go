package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
)

// TelegramSender posts submissions to a Telegram chat through a bot.
type TelegramSender struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

func NewTelegramSender(cfg config.TelegramConfig, client *http.Client) *TelegramSender {
	return &TelegramSender{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   client,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

func (s *TelegramSender) Send(ctx context.Context, sub contact.Submission) error {
	text := fmt.Sprintf(
		"<b>New Contact Form Submission</b>\n\n"+
			"<b>Name:</b> %s\n"+
			"<b>Email:</b> %s\n"+
			"<b>Message:</b>\n%s",
		template.HTMLEscapeString(sub.Name),
		template.HTMLEscapeString(sub.Email),
		template.HTMLEscapeString(sub.Message),
	)

	jsonData, err := json.Marshal(telegramMessage{
		ChatID:    s.chatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal telegram message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// the request URL carries the bot token; keep it out of the error
		return fmt.Errorf("failed to send telegram message: %w", redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}

// redactURL drops the request URL from transport errors.
func redactURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
