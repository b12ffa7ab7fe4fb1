// Package query runs the request flow: validate the input, fan it out to the
// providers, and optionally forward a summary to the chat channel.
package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"triquery/internal/aggregator"
	"triquery/internal/domain"
	"triquery/internal/metrics"
	"triquery/internal/notify"
)

// DefaultAttachWait bounds how long Query waits for a dispatched notification.
const DefaultAttachWait = 3 * time.Second

// Service is the entry point shared by the HTTP handlers and the CLI.
type Service struct {
	agg         *aggregator.Aggregator
	gate        *notify.Gate
	missingKeys func() []string
	attachWait  time.Duration
	logger      *slog.Logger

	// pending tracks notifications still running after Query returned.
	pending sync.WaitGroup
}

type Config struct {
	Aggregator *aggregator.Aggregator
	Gate       *notify.Gate
	// MissingKeys lists unset provider credentials. Nil means none are missing.
	MissingKeys func() []string
	// AttachWait of zero uses DefaultAttachWait; negative never waits.
	AttachWait time.Duration
	Logger     *slog.Logger
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Gate == nil {
		cfg.Gate = notify.New(notify.Config{Logger: cfg.Logger})
	}
	if cfg.MissingKeys == nil {
		cfg.MissingKeys = func() []string { return nil }
	}
	if cfg.AttachWait == 0 {
		cfg.AttachWait = DefaultAttachWait
	}
	return &Service{
		agg:         cfg.Aggregator,
		gate:        cfg.Gate,
		missingKeys: cfg.MissingKeys,
		attachWait:  cfg.AttachWait,
		logger:      cfg.Logger,
	}
}

// Query validates text, gathers all provider results and, when the text asks
// for it, dispatches a chat notification. The notification outcome is attached
// only if it settles within the attach window.
func (s *Service) Query(ctx context.Context, text string) (*domain.QueryResult, error) {
	return s.run(ctx, text, notify.ShouldNotify(text))
}

// QueryNotify is Query with the notification forced regardless of keywords.
func (s *Service) QueryNotify(ctx context.Context, text string) (*domain.QueryResult, error) {
	return s.run(ctx, text, true)
}

func (s *Service) run(ctx context.Context, text string, wantNotify bool) (*domain.QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &domain.ValidationError{Field: "inputText", Reason: "empty"}
	}
	if missing := s.missingKeys(); len(missing) > 0 {
		s.logger.Error("provider keys missing", "keys", missing)
		return nil, &domain.ConfigurationError{Missing: missing}
	}

	metrics.QueriesTotal.Inc()
	s.logger.Info("query received", "length", len([]rune(text)), "preview", preview(text))

	result := s.agg.Aggregate(ctx, text)

	if !wantNotify {
		return result, nil
	}
	if out, ok := s.dispatch(ctx, result, text); ok {
		result.Notification = &out
	}
	return result, nil
}

// Send forwards a caller-supplied message to the chat channel.
func (s *Service) Send(ctx context.Context, message string) (domain.NotificationOutcome, error) {
	if strings.TrimSpace(message) == "" {
		return domain.NotificationOutcome{}, &domain.ValidationError{Field: "message", Reason: "empty"}
	}
	return s.gate.SendDirect(ctx, message), nil
}

// Gate exposes the notification gate for status reporting.
func (s *Service) Gate() *notify.Gate { return s.gate }

// Wait blocks until background notifications finish or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) dispatch(ctx context.Context, result *domain.QueryResult, text string) (domain.NotificationOutcome, bool) {
	// The summary is rendered from a snapshot so the caller may mutate the
	// returned result (attach the outcome) while the send is in flight.
	snapshot := domain.NewQueryResult()
	for _, name := range result.Names() {
		r, _ := result.Get(name)
		snapshot.Set(name, r)
	}

	done := make(chan domain.NotificationOutcome, 1)
	bg := context.WithoutCancel(ctx)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		done <- s.gate.Notify(bg, snapshot, text)
	}()

	if s.attachWait < 0 {
		go s.logLate(done)
		return domain.NotificationOutcome{}, false
	}

	timer := time.NewTimer(s.attachWait)
	defer timer.Stop()
	select {
	case out := <-done:
		return out, true
	case <-timer.C:
		s.logger.Warn("notification still running, responding without it", "wait", s.attachWait)
		go s.logLate(done)
		return domain.NotificationOutcome{}, false
	}
}

func (s *Service) logLate(done <-chan domain.NotificationOutcome) {
	out := <-done
	s.logger.Info("late notification settled", "sent", out.Sent, "message", out.Message)
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return s
}
