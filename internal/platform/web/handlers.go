package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/observability"
)

const (
	statusOK    = "ok"
	statusEmpty = "empty"
	statusError = "error"
)

type submitRequest struct {
	// A pointer separates a missing field from an empty string.
	Data *string `json:"data"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type jobResponse struct {
	Status string  `json:"status"`
	Data   *string `json:"data"`
}

// StatsSource is what /stats reports on.
type StatsSource interface {
	Len() int
	Subscribers() int
	Metrics() *observability.BrokerMetrics
}

type statsResponse struct {
	QueueDepth  int                    `json:"queue_depth"`
	Subscribers int                    `json:"subscribers"`
	PushClients int                    `json:"push_clients"`
	Counters    observability.Snapshot `json:"counters"`
}

// handleSubmit creates a closure to inject the Queue dependency.
func handleSubmit(q domain.JobQueue, maxLen int, metrics *observability.BrokerMetrics) http.HandlerFunc {
	bodyLimit := int64(maxLen)*4 + 1024

	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			reject(w, r, metrics, http.StatusBadRequest, "invalid request body: data must be a string")
			return
		}
		if req.Data == nil {
			reject(w, r, metrics, http.StatusBadRequest, "data is required")
			return
		}

		if err := domain.ValidatePayload(*req.Data, maxLen); err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, domain.ErrPayloadTooLong) {
				code = http.StatusRequestEntityTooLarge
			}
			reject(w, r, metrics, code, err.Error())
			return
		}

		if err := q.Submit(r.Context(), domain.Job{Payload: *req.Data}); err != nil {
			observability.WithField("error", err).Error("Failed to submit job")
			writeJSON(w, http.StatusInternalServerError, statusResponse{Status: statusError, Message: "internal server error"})
			return
		}

		observability.WithFields(logrus.Fields{
			"request_id":  requestIDFrom(r),
			"payload_len": len(*req.Data),
		}).Info("Received submission")
		writeJSON(w, http.StatusOK, statusResponse{Status: statusOK})
	}
}

func handleGetJob(q domain.JobQueue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok, err := q.Poll(r.Context())
		if err != nil {
			observability.WithField("error", err).Error("Failed to poll job")
			writeJSON(w, http.StatusInternalServerError, statusResponse{Status: statusError, Message: "internal server error"})
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, jobResponse{Status: statusEmpty})
			return
		}
		writeJSON(w, http.StatusOK, jobResponse{Status: statusOK, Data: &job.Payload})
	}
}

func handleStats(s StatsSource, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statsResponse{
			QueueDepth:  s.Len(),
			Subscribers: s.Subscribers(),
			PushClients: hub.Count(),
			Counters:    s.Metrics().Snapshot(),
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Status: statusOK})
}

func reject(w http.ResponseWriter, r *http.Request, metrics *observability.BrokerMetrics, code int, msg string) {
	if metrics != nil {
		metrics.IncRejected()
	}
	observability.WithFields(logrus.Fields{
		"request_id": requestIDFrom(r),
		"reason":     msg,
	}).Warn("Rejected submission")
	writeJSON(w, code, statusResponse{Status: statusError, Message: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observability.WithField("error", err).Debug("Failed to write response")
	}
}
