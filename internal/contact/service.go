package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Notifier alerts the site owner about a new submission. Implementations
// must honor ctx; the service also stops waiting once ctx is done.
type Notifier interface {
	Send(ctx context.Context, sub Submission) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, sub Submission) error

func (f NotifierFunc) Send(ctx context.Context, sub Submission) error {
	return f(ctx, sub)
}

const DefaultNotifyTimeout = 10 * time.Second

// ErrNotifierPanic marks a notifier that crashed instead of reporting a
// delivery error. It is an internal failure, not a delivery failure.
var ErrNotifierPanic = errors.New("notifier panic")

// Service validates submissions, records them and dispatches the
// notification step. It holds no per-request state.
type Service struct {
	notifier Notifier
	logger   *zap.Logger
	validate *validator.Validate
	timeout  time.Duration
	now      func() time.Time
}

type Option func(*Service)

// WithTimeout bounds the notification step.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides the receipt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(notifier Notifier, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		notifier: notifier,
		logger:   logger.Named("contact"),
		validate: NewValidator(),
		timeout:  DefaultNotifyTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs validate, record, dispatch. On a notification failure the
// returned Submission is still populated and the error wraps ErrDeliveryFailed,
// or ErrNotifierPanic when the notifier crashed.
func (s *Service) Submit(ctx context.Context, p Payload, src Source) (Submission, error) {
	if err := Validate(s.validate, &p); err != nil {
		return Submission{}, err
	}

	sub := Submission{
		Name:        p.Name,
		Email:       p.Email,
		Message:     p.Message,
		SubmittedAt: s.now().UTC(),
		Source:      src,
	}

	s.logger.Info("contact submission received",
		zap.String("name", sub.Name),
		zap.String("email", sub.Email),
		zap.String("message", sub.Message),
		zap.Time("submitted_at", sub.SubmittedAt),
		zap.String("request_id", src.RequestID),
		zap.String("client", src.ClientIP),
	)

	if err := s.dispatch(ctx, sub); err != nil {
		if errors.Is(err, ErrNotifierPanic) {
			s.logger.Error("contact notification crashed",
				zap.String("request_id", src.RequestID),
				zap.Time("submitted_at", sub.SubmittedAt),
				zap.Error(err),
			)
			return sub, err
		}
		s.logger.Error("contact notification failed",
			zap.String("request_id", src.RequestID),
			zap.Time("submitted_at", sub.SubmittedAt),
			zap.Error(err),
		)
		return sub, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
	return sub, nil
}

func (s *Service) dispatch(ctx context.Context, sub Submission) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("%w: %v", ErrNotifierPanic, r)
			}
		}()
		errc <- s.notifier.Send(ctx, sub)
	}()

	select {
	case err := <-errc:
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("notification timed out after %s: %w", s.timeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("notification timed out after %s", s.timeout)
		}
		return ctx.Err()
	}
}
