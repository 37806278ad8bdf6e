package web

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
)

//go:embed static/index.html
var indexPage []byte

type ctxKey int

const requestIDKey ctxKey = iota

// Broker is the queue the HTTP boundary fronts.
type Broker interface {
	domain.JobQueue
	StatsSource
}

// RouterConfig wires the broker's HTTP surface.
type RouterConfig struct {
	Queue            Broker
	Hub              *Hub
	Limiter          *RateLimiter
	MaxPayloadLength int
}

// NewRouter registers the broker endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.MaxPayloadLength <= 0 {
		cfg.MaxPayloadLength = domain.DefaultMaxPayloadLength
	}
	if cfg.Hub == nil {
		cfg.Hub = NewHub(cfg.Queue)
	}

	r := mux.NewRouter()
	r.Use(requestIDMiddleware)

	var submit http.Handler = handleSubmit(cfg.Queue, cfg.MaxPayloadLength, cfg.Queue.Metrics())
	if cfg.Limiter != nil {
		submit = cfg.Limiter.Middleware(submit)
	}

	r.Handle("/send-to-print", submit).Methods(http.MethodPost)
	r.HandleFunc("/get-job", handleGetJob(cfg.Queue)).Methods(http.MethodGet)
	r.Handle("/ws-print", cfg.Hub).Methods(http.MethodGet)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", handleStats(cfg.Queue, cfg.Hub)).Methods(http.MethodGet)
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexPage)
	}).Methods(http.MethodGet)

	return enableCORS(r)
}

// enableCORS adds headers so the capture page works from any origin.
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle Preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		observability.WithFields(logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Debug("Request")

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
