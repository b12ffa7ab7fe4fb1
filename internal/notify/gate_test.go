package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triquery/internal/domain"
)

type sentMessage struct {
	channel string
	text    string
}

// fakeSender records every message and returns err for each Send.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{channelID, text})
	return f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func threeOK(text string) *domain.QueryResult {
	r := domain.NewQueryResult()
	for _, n := range domain.ProviderNames {
		r.Set(n, domain.Succeeded(text))
	}
	return r
}

func TestShouldNotify(t *testing.T) {
	cases := map[string]bool{
		"please send to discord":             true,
		"hello world":                        false,
		"DISCORD please":                     true,
		"Puedes ENVIAR esto":                 true,
		"mandar a discord el resultado":      true,
		"dis cord":                           false,
		"":                                   false,
		"Tell me a joke and send to discord": true,
	}
	for q, want := range cases {
		assert.Equal(t, want, ShouldNotify(q), "query %q", q)
	}
}

func TestNotify_NotConfigured(t *testing.T) {
	g := New(Config{Logger: quietLogger()})
	out := g.Notify(context.Background(), threeOK("x"), "q")
	assert.Equal(t, domain.NotificationOutcome{Sent: false, Message: "Discord no configurado"}, out)

	// sender without channel is still unconfigured
	s := &fakeSender{}
	g = New(Config{Sender: s, Logger: quietLogger()})
	out = g.Notify(context.Background(), threeOK("x"), "q")
	assert.False(t, out.Sent)
	assert.Empty(t, s.sent)
}

func TestNotify_SendsSummaryOnce(t *testing.T) {
	s := &fakeSender{}
	g := New(Config{Sender: s, ChannelID: "chan-1", Logger: quietLogger()})

	out := g.Notify(context.Background(), threeOK("short"), "Tell me a joke and send to discord")

	assert.Equal(t, domain.NotificationOutcome{Sent: true, Message: "Mensaje enviado exitosamente a Discord"}, out)
	require.Len(t, s.sent, 1)
	assert.Equal(t, "chan-1", s.sent[0].channel)
	for _, label := range []string{"🔷 **Gemini:**", "🟠 **Cohere:**", "🟣 **Mistral:**"} {
		assert.Contains(t, s.sent[0].text, label)
	}
}

func TestNotify_ChannelNotFound(t *testing.T) {
	s := &fakeSender{err: fmt.Errorf("lookup 42: %w", domain.ErrChannelNotFound)}
	g := New(Config{Sender: s, ChannelID: "42", Logger: quietLogger()})

	out := g.Notify(context.Background(), threeOK("x"), "q")
	assert.Equal(t, domain.NotificationOutcome{Sent: false, Message: "Canal no encontrado"}, out)
}

func TestNotify_SendError(t *testing.T) {
	s := &fakeSender{err: errors.New("gateway closed")}
	g := New(Config{Sender: s, ChannelID: "42", Logger: quietLogger()})

	out := g.Notify(context.Background(), threeOK("x"), "q")
	assert.Equal(t, domain.NotificationOutcome{Sent: false, Message: "Error: gateway closed"}, out)
}

// Six providers overrun a budget sized for three, pushing the summary past
// the hard limit.
func TestNotify_OversizeUsesFallback(t *testing.T) {
	r := domain.NewQueryResult()
	long := strings.Repeat("w", 600)
	for i := 0; i < 6; i++ {
		r.Set(fmt.Sprintf("provider-%d", i), domain.Succeeded(long))
	}
	s := &fakeSender{}
	g := New(Config{Sender: s, ChannelID: "c", Logger: quietLogger()})

	query := strings.Repeat("q", 150)
	out := g.Notify(context.Background(), r, query)

	require.True(t, out.Sent)
	require.Len(t, s.sent, 1)
	assert.Equal(t, Fallback(query), s.sent[0].text)
	assert.True(t, strings.HasPrefix(s.sent[0].text, "📝 **Pregunta:** "+strings.Repeat("q", 100)+"...\n\n"))
}

func TestSendDirect_PassesShortMessage(t *testing.T) {
	s := &fakeSender{}
	g := New(Config{Sender: s, ChannelID: "c", Logger: quietLogger()})

	out := g.SendDirect(context.Background(), "hola equipo")
	assert.True(t, out.Sent)
	assert.Equal(t, "hola equipo", s.sent[0].text)
}

func TestSendDirect_TruncatesAtHardLimit(t *testing.T) {
	s := &fakeSender{}
	g := New(Config{Sender: s, ChannelID: "c", Logger: quietLogger()})

	g.SendDirect(context.Background(), strings.Repeat("ä", 2500))
	got := s.sent[0].text
	assert.Equal(t, strings.Repeat("ä", 1950)+"...\n*[Mensaje truncado]*", got)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), HardLimit)
}

func TestSendDirect_ExactlyAtLimitUntouched(t *testing.T) {
	s := &fakeSender{}
	g := New(Config{Sender: s, ChannelID: "c", Logger: quietLogger()})

	msg := strings.Repeat("k", HardLimit)
	g.SendDirect(context.Background(), msg)
	assert.Equal(t, msg, s.sent[0].text)
}

func TestFallback_ShortQueryStillHasEllipsis(t *testing.T) {
	assert.True(t, strings.HasPrefix(Fallback("hola"), "📝 **Pregunta:** hola...\n\n"))
}
