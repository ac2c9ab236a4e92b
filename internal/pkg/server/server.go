// Package server exposes the latest poll outcome and stored history over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/anicoll/vevor-integration/internal/pkg/classifier"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
	"github.com/anicoll/vevor-integration/internal/pkg/poller"
)

var errNoSnapshot = errors.New("no snapshot decoded yet")

type statusReader interface {
	Latest() (poller.Status, bool)
}

type historyReader interface {
	GetLatestProperties(ctx context.Context) (model.Properties, error)
	GetProperties(ctx context.Context, uniqueID string, from, to *time.Time) (model.Properties, error)
}

type server struct {
	state   statusReader
	history historyReader
	logger  *zap.Logger
}

// New serves state. history may be nil, in which case the history routes are not mounted.
func New(state statusReader, history historyReader) *server {
	return &server{state: state, history: history, logger: zap.L()}
}

func (s *server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/snapshot", s.GetSnapshot)
	mux.HandleFunc("GET /healthz", s.GetHealth)
	if s.history != nil {
		mux.HandleFunc("GET /api/history/latest", s.GetLatestHistory)
		mux.HandleFunc("GET /api/history/{unique_id}", s.GetSensorHistory)
	}
	return LoggingMiddleware(mux)
}

type snapshotResponse struct {
	Snapshot  *model.Snapshot     `json:"snapshot"`
	Mode      model.OperatingMode `json:"mode"`
	Flags     classifier.Flags    `json:"flags"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (s *server) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	status, ok := s.state.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, errNoSnapshot)
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{
		Snapshot:  status.Snapshot,
		Mode:      status.Mode,
		Flags:     status.Flags,
		UpdatedAt: status.UpdatedAt,
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Cycles    uint64    `json:"cycles"`
	Failures  uint64    `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *server) GetHealth(w http.ResponseWriter, r *http.Request) {
	status, _ := s.state.Latest()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Cycles:    status.Cycles,
		Failures:  status.Failures,
		LastError: status.LastError,
		UpdatedAt: status.UpdatedAt,
	})
}

func (s *server) GetLatestHistory(w http.ResponseWriter, r *http.Request) {
	props, err := s.history.GetLatestProperties(r.Context())
	if err != nil {
		s.logger.Error("failed to load latest history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

// GetSensorHistory accepts optional RFC 3339 from and to query parameters.
func (s *server) GetSensorHistory(w http.ResponseWriter, r *http.Request) {
	from, err := parseTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	props, err := s.history.GetProperties(r.Context(), r.PathValue("unique_id"), from, to)
	if err != nil {
		s.logger.Error("failed to load sensor history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func parseTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.WriteHeader(code)
	w.Write([]byte(err.Error()))
}
