package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triquery/internal/config"
	"triquery/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeAPI serves a fixed status and body, and records the last request.
type fakeAPI struct {
	status int
	body   string

	mu   sync.Mutex
	last captured
	hits int
}

type captured struct {
	path  string
	query string
	auth  string
	ct    string
	body  map[string]any
}

func (f *fakeAPI) got() captured {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

func (f *fakeAPI) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		c := captured{
			path:  r.URL.Path,
			query: r.URL.RawQuery,
			auth:  r.Header.Get("Authorization"),
			ct:    r.Header.Get("Content-Type"),
		}
		_ = json.Unmarshal(raw, &c.body)
		f.mu.Lock()
		f.hits++
		f.last = c
		f.mu.Unlock()
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// deadURL returns the address of a server that has already been shut down.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func newGemini(base string) *Gemini {
	return NewGemini(GeminiConfig{APIKey: "g-key", APIBase: base, Logger: testLogger()})
}

func newCohere(base string) *Cohere {
	return NewCohere(CohereConfig{APIKey: "c-key", APIBase: base, MaxTokens: 300, Temperature: 0.7, Logger: testLogger()})
}

func newMistral(base string) *Mistral {
	return NewMistral(MistralConfig{APIKey: "m-key", APIBase: base, MaxTokens: 300, Temperature: 0.7, Logger: testLogger()})
}

// --- Gemini ---

func TestGemini_Success(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"candidates":[{"content":{"parts":[{"text":"hola"}]}}]}`}
	srv := api.start(t)

	res := newGemini(srv.URL).Call(context.Background(), `say "hi"`)

	got := api.got()
	assert.Equal(t, domain.Succeeded("hola"), res)
	assert.Equal(t, "/models/gemini-2.0-flash:generateContent", got.path)
	assert.Equal(t, "key=g-key", got.query)
	assert.Equal(t, "application/json", got.ct)
	assert.Empty(t, got.auth)

	contents := got.body["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Equal(t, `say "hi"`, parts[0].(map[string]any)["text"])
}

func TestGemini_BlockReason(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"promptFeedback":{"blockReason":"SAFETY"}}`}
	srv := api.start(t)

	res := newGemini(srv.URL).Call(context.Background(), "q")

	assert.False(t, res.Success)
	assert.Equal(t, "Solicitud bloqueada: SAFETY", res.Error)
}

func TestGemini_UnexpectedShape(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"candidates":[]}`}
	srv := api.start(t)

	res := newGemini(srv.URL).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Respuesta inesperada de la API"), res)
}

func TestGemini_ErrorStatusWithMessage(t *testing.T) {
	api := &fakeAPI{status: 400, body: `{"error":{"message":"API key not valid"}}`}
	srv := api.start(t)

	res := newGemini(srv.URL).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Error 400: API key not valid"), res)
}

func TestGemini_EmptyTextIsSuccess(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"candidates":[{"content":{"parts":[{"text":""}]}}]}`}
	srv := api.start(t)

	res := newGemini(srv.URL).Call(context.Background(), "q")
	assert.True(t, res.Success)
	assert.Equal(t, "", res.Text)
}

func TestGemini_ConnectionError(t *testing.T) {
	res := newGemini(deadURL(t)).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Error de conexión con Gemini"), res)
}

// --- Cohere ---

func TestCohere_SuccessTrimsText(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"generations":[{"text":"  a joke \n"}]}`}
	srv := api.start(t)

	res := newCohere(srv.URL).Call(context.Background(), "tell me a joke")

	got := api.got()
	assert.Equal(t, domain.Succeeded("a joke"), res)
	assert.Equal(t, "/generate", got.path)
	assert.Equal(t, "Bearer c-key", got.auth)
	assert.Equal(t, "command", got.body["model"])
	assert.Equal(t, "tell me a joke", got.body["prompt"])
	assert.EqualValues(t, 300, got.body["max_tokens"])
	assert.EqualValues(t, 0.7, got.body["temperature"])
}

func TestCohere_ErrorStatusWithoutPayload(t *testing.T) {
	api := &fakeAPI{status: 503, body: `<html>down</html>`}
	srv := api.start(t)

	res := newCohere(srv.URL).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Error 503: Error desconocido"), res)
}

func TestCohere_ErrorStatusWithMessage(t *testing.T) {
	api := &fakeAPI{status: 401, body: `{"message":"invalid api token"}`}
	srv := api.start(t)

	res := newCohere(srv.URL).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Error 401: invalid api token"), res)
}

func TestCohere_MissingGenerations(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"id":"x"}`}
	srv := api.start(t)

	res := newCohere(srv.URL).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Respuesta inesperada de la API"), res)
}

func TestCohere_ConnectionError(t *testing.T) {
	res := newCohere(deadURL(t)).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Error de conexión con Cohere"), res)
}

func TestCohere_ZeroTemperatureIsSent(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"generations":[{"text":"x"}]}`}
	srv := api.start(t)

	NewCohere(CohereConfig{APIKey: "c-key", APIBase: srv.URL, MaxTokens: 300, Logger: testLogger()}).
		Call(context.Background(), "q")

	temp, ok := api.got().body["temperature"]
	require.True(t, ok, "temperature 0 must be sent explicitly")
	assert.EqualValues(t, 0, temp)
}

// --- Mistral ---

func TestMistral_Success(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"choices":[{"message":{"role":"assistant","content":"bonjour"}}]}`}
	srv := api.start(t)

	res := newMistral(srv.URL).Call(context.Background(), "hello")

	got := api.got()
	assert.Equal(t, domain.Succeeded("bonjour"), res)
	assert.Equal(t, "/chat/completions", got.path)
	assert.Equal(t, "Bearer m-key", got.auth)
	assert.Equal(t, "mistral-small-latest", got.body["model"])

	msgs := got.body["messages"].([]any)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "hello", msg["content"])
}

func TestMistral_ZeroTemperatureIsSent(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"choices":[{"message":{"content":"x"}}]}`}
	srv := api.start(t)

	NewMistral(MistralConfig{APIKey: "m-key", APIBase: srv.URL, MaxTokens: 300, Logger: testLogger()}).
		Call(context.Background(), "q")

	got := api.got()
	temp, ok := got.body["temperature"]
	require.True(t, ok, "temperature 0 must be sent explicitly")
	assert.EqualValues(t, 0, temp)
	assert.EqualValues(t, 300, got.body["max_tokens"])
}

func TestMistral_NestedErrorMessage(t *testing.T) {
	api := &fakeAPI{status: 429, body: `{"error":{"message":"rate limited"}}`}
	srv := api.start(t)

	res := newMistral(srv.URL).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Error 429: rate limited"), res)
}

func TestMistral_FlatErrorMessage(t *testing.T) {
	api := &fakeAPI{status: 401, body: `{"object":"error","message":"Unauthorized"}`}
	srv := api.start(t)

	res := newMistral(srv.URL).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Error 401: Unauthorized"), res)
}

func TestMistral_NullContent(t *testing.T) {
	api := &fakeAPI{status: 200, body: `{"choices":[{"message":{"content":null}}]}`}
	srv := api.start(t)

	res := newMistral(srv.URL).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Respuesta inesperada de la API"), res)
}

func TestMistral_ConnectionError(t *testing.T) {
	res := newMistral(deadURL(t)).Call(context.Background(), "q")
	assert.Equal(t, domain.Failed("Error de conexión con Mistral"), res)
}

// --- All providers ---

func TestAllProviders_NonSuccessStatusNeverPanics(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 429, 500, 502} {
		api := &fakeAPI{status: status, body: `{}`}
		srv := api.start(t)

		pc := config.Defaults().Providers
		pc.Gemini.APIBase = srv.URL
		pc.Cohere.APIBase = srv.URL
		pc.Mistral.APIBase = srv.URL

		for _, p := range New(pc, srv.Client(), testLogger()) {
			res := p.Call(context.Background(), "q")
			assert.False(t, res.Success, "%s status %d", p.Name(), status)
			assert.NotEmpty(t, res.Error, "%s status %d", p.Name(), status)
		}
	}
}

func TestAllProviders_MakeExactlyOneCall(t *testing.T) {
	api := &fakeAPI{status: 500, body: `{}`}
	srv := api.start(t)

	pc := config.Defaults().Providers
	pc.Gemini.APIBase = srv.URL
	pc.Cohere.APIBase = srv.URL
	pc.Mistral.APIBase = srv.URL

	for _, p := range New(pc, srv.Client(), testLogger()) {
		p.Call(context.Background(), "q")
	}
	assert.Equal(t, 3, api.callCount())
}

func TestNew_DisplayOrder(t *testing.T) {
	providers := New(config.Defaults().Providers, SharedHTTPClient(0), testLogger())
	require.Len(t, providers, 3)
	for i, name := range domain.ProviderNames {
		assert.Equal(t, name, providers[i].Name())
	}
}

func TestSharedHTTPClient_Timeout(t *testing.T) {
	assert.Zero(t, SharedHTTPClient(0).Timeout)
	assert.Equal(t, int64(5), int64(SharedHTTPClient(5e9).Timeout.Seconds()))
}
