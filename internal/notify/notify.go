// Package notify holds the notification channels that alert the site owner
// about a new contact submission.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Zachkp/portfolio/internal/config"
	"github.com/Zachkp/portfolio/internal/contact"
	"github.com/Zachkp/portfolio/internal/inbox"
)

// Named tags a sender with its channel name for logs and joined errors.
type Named struct {
	Name   string
	Sender contact.Notifier
}

// Multi delivers to every channel concurrently. Delivery succeeds only when
// every channel succeeds.
type Multi struct {
	senders []Named
}

func NewMulti(senders ...Named) *Multi {
	return &Multi{senders: senders}
}

func (m *Multi) Send(ctx context.Context, sub contact.Submission) error {
	errs := make([]error, len(m.senders))
	var wg sync.WaitGroup
	for i, s := range m.senders {
		wg.Add(1)
		go func(i int, s Named) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("%s: %w: %v", s.Name, contact.ErrNotifierPanic, r)
				}
			}()
			if err := s.Sender.Send(ctx, sub); err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name, err)
			}
		}(i, s)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Throttled caps the rate of outbound notifications so a burst of
// submissions can't exhaust a provider quota. Waiting honors ctx, so a
// request that would wait past its deadline fails immediately.
type Throttled struct {
	next    contact.Notifier
	limiter *rate.Limiter
}

func NewThrottled(next contact.Notifier, perSecond float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *Throttled) Send(ctx context.Context, sub contact.Submission) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notification throttled: %w", err)
	}
	return t.next.Send(ctx, sub)
}

// LogSender is the development channel: the service already records every
// submission, so this only notes that no external delivery happened.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.Named("notify.log")}
}

func (l *LogSender) Send(_ context.Context, sub contact.Submission) error {
	l.logger.Debug("submission kept in logs only", zap.Time("submitted_at", sub.SubmittedAt))
	return nil
}

// InboxSender stores submissions for review in the admin area.
type InboxSender struct {
	store  *inbox.Store
	logger *zap.Logger
}

func NewInboxSender(store *inbox.Store, logger *zap.Logger) *InboxSender {
	return &InboxSender{store: store, logger: logger.Named("notify.inbox")}
}

func (s *InboxSender) Send(ctx context.Context, sub contact.Submission) error {
	msg, err := s.store.Save(ctx, sub)
	if err != nil {
		return err
	}
	s.logger.Debug("submission stored", zap.String("id", msg.ID))
	return nil
}

// Deps are the process-wide clients shared by every sender.
type Deps struct {
	Logger     *zap.Logger
	HTTPClient *http.Client
	Inbox      *inbox.Store
}

// NewHTTPClient returns the client provider senders share.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Build constructs the notifier chain named by cfg.Notifiers.
func Build(cfg *config.Config, deps Deps) (contact.Notifier, error) {
	if deps.HTTPClient == nil {
		deps.HTTPClient = NewHTTPClient(cfg.NotifyTimeout)
	}

	var senders []Named
	for _, name := range cfg.Notifiers {
		var s contact.Notifier
		switch name {
		case config.NotifierLog:
			s = NewLogSender(deps.Logger)
		case config.NotifierResend:
			s = NewResendSender(cfg.Resend, cfg.ContactFrom, cfg.ContactTo, deps.HTTPClient)
		case config.NotifierSMTP:
			s = NewSMTPSender(cfg.SMTP, cfg.ContactTo)
		case config.NotifierTelegram:
			s = NewTelegramSender(cfg.Telegram, deps.HTTPClient)
		case config.NotifierTwilio:
			s = NewTwilioSender(cfg.Twilio, deps.HTTPClient)
		case config.NotifierInbox:
			if deps.Inbox == nil {
				return nil, fmt.Errorf("inbox notifier enabled without an inbox store")
			}
			s = NewInboxSender(deps.Inbox, deps.Logger)
		default:
			return nil, fmt.Errorf("%w: unknown notifier %q", config.ErrInvalidConfig, name)
		}
		senders = append(senders, Named{Name: name, Sender: s})
	}
	if len(senders) == 0 {
		return nil, fmt.Errorf("%w: no notifiers configured", config.ErrInvalidConfig)
	}

	var n contact.Notifier
	if len(senders) == 1 {
		n = senders[0].Sender
	} else {
		n = NewMulti(senders...)
	}
	if cfg.NotifyRate > 0 {
		n = NewThrottled(n, cfg.NotifyRate, cfg.NotifyBurst)
	}
	return n, nil
}
