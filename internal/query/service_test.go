package query

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triquery/internal/aggregator"
	"triquery/internal/domain"
	"triquery/internal/metrics"
	"triquery/internal/notify"
)

type stubProvider struct {
	name  string
	res   domain.ProviderResult
	calls atomic.Int32
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Call(ctx context.Context, query string) domain.ProviderResult {
	s.calls.Add(1)
	return s.res
}

type slowSender struct {
	delay time.Duration
	mu    sync.Mutex
	texts []string
}

func (s *slowSender) Name() string { return "discord" }

func (s *slowSender) Send(ctx context.Context, channelID, text string) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return nil
}

func (s *slowSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

type fixture struct {
	svc       *Service
	providers []*stubProvider
	sender    *slowSender
}

func newFixture(t *testing.T, senderDelay, attachWait time.Duration, missing ...string) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ps := []*stubProvider{
		{name: domain.ProviderGemini, res: domain.Succeeded("g")},
		{name: domain.ProviderCohere, res: domain.Succeeded("c")},
		{name: domain.ProviderMistral, res: domain.Succeeded("m")},
	}
	sender := &slowSender{delay: senderDelay}
	svc := New(Config{
		Aggregator: aggregator.New(aggregator.Config{
			Providers: []domain.Provider{ps[0], ps[1], ps[2]},
			Logger:    logger,
		}),
		Gate:        notify.New(notify.Config{Sender: sender, ChannelID: "c1", Logger: logger}),
		MissingKeys: func() []string { return missing },
		AttachWait:  attachWait,
		Logger:      logger,
	})
	return &fixture{svc: svc, providers: ps, sender: sender}
}

func (f *fixture) totalCalls() int32 {
	var n int32
	for _, p := range f.providers {
		n += p.calls.Load()
	}
	return n
}

func TestQuery_BlankInputRejected(t *testing.T) {
	f := newFixture(t, 0, time.Second)
	for _, in := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.Query(context.Background(), in)
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve, "input %q", in)
	}
	assert.Zero(t, f.totalCalls())
}

func TestQuery_MissingKeysRejected(t *testing.T) {
	f := newFixture(t, 0, time.Second, "COHERE_API_KEY")
	_, err := f.svc.Query(context.Background(), "hola")

	var ce *domain.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"COHERE_API_KEY"}, ce.Missing)
	assert.Zero(t, f.totalCalls())
}

func TestQuery_NoKeywordNoNotification(t *testing.T) {
	f := newFixture(t, 0, time.Second)
	res, err := f.svc.Query(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Nil(t, res.Notification)
	assert.Equal(t, 3, res.Len())
	assert.Zero(t, f.sender.count())
}

func TestQuery_CountsOncePerQuery(t *testing.T) {
	f := newFixture(t, 0, time.Second)
	before := testutil.ToFloat64(metrics.QueriesTotal)

	_, err := f.svc.Query(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.QueriesTotal))

	_, err = f.svc.Query(context.Background(), "  ")
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.QueriesTotal), "rejected input is not counted")
}

func TestQuery_KeywordAttachesOutcome(t *testing.T) {
	f := newFixture(t, 0, time.Second)
	res, err := f.svc.Query(context.Background(), "Tell me a joke and send to discord")
	require.NoError(t, err)

	require.NotNil(t, res.Notification)
	assert.True(t, res.Notification.Sent)
	assert.Equal(t, 1, f.sender.count())
	assert.EqualValues(t, 3, f.totalCalls())
}

func TestQuery_SlowSenderOmitsOutcome(t *testing.T) {
	f := newFixture(t, 200*time.Millisecond, 20*time.Millisecond)
	res, err := f.svc.Query(context.Background(), "enviar esto")
	require.NoError(t, err)
	assert.Nil(t, res.Notification)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Wait(ctx))
	assert.Equal(t, 1, f.sender.count(), "send continues after the response")
}

func TestQuery_NotificationSurvivesCancelledRequest(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond, -1)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.svc.Query(ctx, "mandar a discord")
	require.NoError(t, err)
	cancel()

	wctx, wcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer wcancel()
	require.NoError(t, f.svc.Wait(wctx))
	assert.Equal(t, 1, f.sender.count())
}

func TestQueryNotify_ForcesNotification(t *testing.T) {
	f := newFixture(t, 0, time.Second)
	res, err := f.svc.QueryNotify(context.Background(), "hello world")
	require.NoError(t, err)

	require.NotNil(t, res.Notification)
	assert.True(t, res.Notification.Sent)
	assert.Equal(t, 1, f.sender.count())
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t, 0, time.Second)
	_, err := f.svc.Send(context.Background(), "  ")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)

	out, err := f.svc.Send(context.Background(), "deploy listo")
	require.NoError(t, err)
	assert.True(t, out.Sent)
	assert.Equal(t, 1, f.sender.count())
}

func TestSend_UnconfiguredGate(t *testing.T) {
	svc := New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	out, err := svc.Send(context.Background(), "hola")
	require.NoError(t, err)
	assert.Equal(t, domain.NotificationOutcome{Sent: false, Message: "Discord no configurado"}, out)
}
