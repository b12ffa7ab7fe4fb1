package channel

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/google/uuid"

	"triquery/internal/config"
	"triquery/internal/domain"
	"triquery/internal/metrics"
	"triquery/internal/query"
)

const (
	maxBodySize     = 10 << 20
	shutdownTimeout = 5 * time.Second
	requestIDHeader = "X-Request-ID"

	msgInvalidText    = "Por favor, proporciona un texto válido."
	msgInvalidMessage = "Por favor, proporciona un mensaje válido."
	msgMissingKeys    = "Faltan claves API necesarias. Verifica tu archivo .env"
	msgUpstreamFault  = "Error al conectar con las APIs"
	msgInternal       = "Error interno del servidor"
	msgNotFound       = "Endpoint no encontrado"
)

//go:embed web_assets/*
var assetsFS embed.FS

// Web serves the query API and the browser UI.
type Web struct {
	host      string
	port      int
	staticDir string
	version   string
	svc       *query.Service
	cfg       *config.Config
	logger    *slog.Logger
	server    *http.Server
	addr      net.Addr
	ready     chan struct{}
}

type WebConfig struct {
	Host      string
	Port      int
	StaticDir string // serves index.html from disk instead of the embedded UI
	Version   string
	Service   *query.Service
	Config    *config.Config // read-only; used for /status and metrics routing
	Logger    *slog.Logger
}

func NewWeb(cfg WebConfig) *Web {
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Config == nil {
		cfg.Config = config.Defaults()
	}
	return &Web{
		host:      cfg.Host,
		port:      cfg.Port,
		staticDir: cfg.StaticDir,
		version:   cfg.Version,
		svc:       cfg.Service,
		cfg:       cfg.Config,
		logger:    cfg.Logger,
		ready:     make(chan struct{}),
	}
}

func (w *Web) Name() string { return "web" }

// Handler returns the full route table wrapped in the request middleware.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/query", w.handleQuery)
	mux.HandleFunc("POST /api/discord", w.handleDiscord)
	mux.HandleFunc("GET /status", w.handleStatus)
	mux.HandleFunc("GET /{$}", w.handleIndex)
	if w.cfg.Metrics.Enabled {
		mux.Handle("GET "+w.cfg.Metrics.Endpoint, metrics.Handler())
	}
	mux.HandleFunc("/", w.handleNotFound)

	return w.withRequestID(w.withRecover(withCORS(w.withMetrics(mux))))
}

// Start listens and serves until ctx is cancelled, then shuts down gracefully.
func (w *Web) Start(ctx context.Context) error {
	addr := net.JoinHostPort(w.host, strconv.Itoa(w.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	w.server = &http.Server{
		Handler:           w.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	w.addr = ln.Addr()
	close(w.ready)

	w.logger.Info("web server started", "addr", "http://"+ln.Addr().String(), "static_dir", w.staticDir)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := w.server.Shutdown(shutdownCtx); err != nil {
			w.logger.Warn("web shutdown", "err", err)
		}
	}()

	if err := w.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr blocks until the listener is bound and returns its address.
func (w *Web) Addr() net.Addr {
	<-w.ready
	return w.addr
}

func (w *Web) Stop() error {
	if w.server != nil {
		return w.server.Close()
	}
	return nil
}

type queryRequest struct {
	InputText *string `json:"inputText"`
}

type discordRequest struct {
	Message *string `json:"message"`
}

func (w *Web) handleQuery(rw http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeBody(rw, r, &req); err != nil || req.InputText == nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": msgInvalidText})
		return
	}

	result, err := w.svc.Query(r.Context(), *req.InputText)
	if err != nil {
		var ve *domain.ValidationError
		var ce *domain.ConfigurationError
		switch {
		case errors.As(err, &ve):
			writeJSON(rw, http.StatusBadRequest, map[string]any{"error": msgInvalidText})
		case errors.As(err, &ce):
			writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": msgMissingKeys})
		default:
			w.requestLogger(r).Error("query failed", "err", err)
			writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": msgUpstreamFault})
		}
		return
	}
	writeJSON(rw, http.StatusOK, result)
}

func (w *Web) handleDiscord(rw http.ResponseWriter, r *http.Request) {
	var req discordRequest
	if err := decodeBody(rw, r, &req); err != nil || req.Message == nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"success": false, "error": msgInvalidMessage})
		return
	}

	w.requestLogger(r).Info("direct message requested", "length", len([]rune(*req.Message)))
	out, err := w.svc.Send(r.Context(), *req.Message)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"success": false, "error": msgInvalidMessage})
			return
		}
		w.requestLogger(r).Error("direct message failed", "err", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"success": false, "error": msgInternal})
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"success": out.Sent, "message": out.Message})
}

func (w *Web) handleIndex(rw http.ResponseWriter, r *http.Request) {
	var (
		page []byte
		err  error
	)
	if w.staticDir != "" {
		page, err = os.ReadFile(filepath.Join(w.staticDir, "index.html"))
	} else {
		page, err = fs.ReadFile(assetsFS, "web_assets/index.html")
	}
	if err != nil {
		w.requestLogger(r).Error("index not readable", "static_dir", w.staticDir, "err", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": msgInternal})
		return
	}
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.Write(page)
}

func (w *Web) handleStatus(rw http.ResponseWriter, r *http.Request) {
	missing := make(map[string]bool)
	for _, env := range w.cfg.MissingProviderKeys() {
		missing[env] = true
	}
	providers := map[string]bool{
		domain.ProviderGemini:  !missing["GEMINI_API_KEY"],
		domain.ProviderCohere:  !missing["COHERE_API_KEY"],
		domain.ProviderMistral: !missing["MISTRAL_API_KEY"],
	}

	writeJSON(rw, http.StatusOK, map[string]any{
		"status":    "ok",
		"version":   w.version,
		"time":      time.Now().Format(time.RFC3339),
		"providers": providers,
		"notify": map[string]any{
			"backend":    w.cfg.Notify.Backend,
			"configured": w.svc.Gate().Enabled(),
		},
	})
}

func (w *Web) handleNotFound(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusNotFound, map[string]any{"error": msgNotFound})
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(rw, r.Body, maxBodySize)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(v)
}

type ctxKey int

const requestIDKey ctxKey = 0

func (w *Web) requestLogger(r *http.Request) *slog.Logger {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return w.logger.With("request_id", id)
	}
	return w.logger
}

func (w *Web) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		rw.Header().Set(requestIDHeader, id)
		next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (w *Web) withRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				w.requestLogger(r).Error("handler panic", "panic", v, "stack", string(debug.Stack()))
				writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": msgInternal})
			}
		}()
		next.ServeHTTP(rw, r)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		h := rw.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, "+requestIDHeader)
		if r.Method == http.MethodOptions {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(rw, r)
	})
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (w *Web) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: rw, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" || route == "/" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
	})
}
