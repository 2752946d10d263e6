// ABOUTME: HTTP trigger API: run jobs, accept bus envelopes, and read averages and anomalies.
// ABOUTME: Routes use gorilla/mux; request logging, panic recovery and Prometheus metrics wrap them.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harperreed/bloom/internal/events"
	"github.com/harperreed/bloom/internal/jobs"
	"github.com/harperreed/bloom/internal/metrics"
	"github.com/harperreed/bloom/internal/models"
	"github.com/harperreed/bloom/internal/storage"
)

// Server holds the dependencies of the HTTP handlers.
type Server struct {
	runner    *jobs.Runner
	store     storage.Store
	log       *slog.Logger
	accessLog io.Writer
}

// NewServer creates a Server. Access logs go to accessLog when it is non-nil.
func NewServer(runner *jobs.Runner, store storage.Store, log *slog.Logger, accessLog io.Writer) *Server {
	return &Server{
		runner:    runner,
		store:     store,
		log:       log.With(slog.String("component", "http")),
		accessLog: accessLog,
	}
}

// Handler returns the routed and wrapped handler.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/jobs/{job}", s.runJob).Methods(http.MethodPost)
	router.HandleFunc("/events", s.acceptEvent).Methods(http.MethodPost)
	router.HandleFunc("/users/{user}/averages", s.listAverages).Methods(http.MethodGet)
	router.HandleFunc("/users/{user}/anomalies", s.listAnomalies).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler())

	var h http.Handler = router
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	if s.accessLog != nil {
		h = handlers.LoggingHandler(s.accessLog, h)
	}
	return h
}

// JobRequest is the body of POST /jobs/{job}.
type JobRequest struct {
	FitbitUserID  string   `json:"fitbit_user_id,omitempty"`
	FitbitUserIDs []string `json:"fitbit_user_ids,omitempty"`
	All           bool     `json:"all,omitempty"`
	Date          string   `json:"date,omitempty"`
}

// JobResponse is the body returned from POST /jobs/{job}.
type JobResponse struct {
	Job     jobs.Name     `json:"job"`
	Results []jobs.Result `json:"results"`
}

func (s *Server) runJob(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/jobs/{job}"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	job, err := jobs.ParseName(mux.Vars(r)["job"])
	if err != nil {
		s.respondError(w, endpoint, r, err.Error(), http.StatusNotFound)
		return
	}

	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, endpoint, r, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := jobs.ParseDate(req.Date, s.runner.Now(), s.runner.Location()); err != nil {
		s.respondError(w, endpoint, r, err.Error(), http.StatusBadRequest)
		return
	}

	resp := JobResponse{Job: job}
	status := http.StatusOK
	switch {
	case req.All:
		resp.Results, err = s.runner.RunAll(r.Context(), job, req.Date)
		if err != nil {
			s.log.Error("run_all_failed", slog.String("job", string(job)), slog.Any("err", err))
			s.respondError(w, endpoint, r, "failed to list users", http.StatusInternalServerError)
			return
		}
	case len(req.FitbitUserIDs) > 0:
		resp.Results = s.runner.RunForUsers(r.Context(), job, req.FitbitUserIDs, req.Date)
	case req.FitbitUserID != "":
		res := s.runner.Run(r.Context(), job, req.FitbitUserID, req.Date)
		resp.Results = []jobs.Result{res}
		status = statusForKind(res.Kind)
	default:
		s.respondError(w, endpoint, r, "fitbit_user_id, fitbit_user_ids or all is required", http.StatusBadRequest)
		return
	}

	s.respondJSON(w, endpoint, r, resp, status)
}

// statusForKind maps a single-user failure kind to an HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case jobs.KindNone:
		return http.StatusOK
	case jobs.KindNotFound:
		return http.StatusNotFound
	case jobs.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case jobs.KindPersistenceConflict:
		return http.StatusConflict
	case jobs.KindDataAbsent:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) acceptEvent(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/events"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		s.respondError(w, endpoint, r, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	e, err := events.Decode(body)
	if err != nil {
		s.respondError(w, endpoint, r, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.EventsConsumed.WithLabelValues(string(e.Type)).Inc()

	if err := s.runner.HandleEvent(r.Context(), e); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, events.ErrUnroutable) {
			status = http.StatusBadRequest
		}
		s.respondError(w, endpoint, r, err.Error(), status)
		return
	}
	s.respondJSON(w, endpoint, r, map[string]string{"status": "ok", "id": e.ID}, http.StatusAccepted)
}

func (s *Server) listAverages(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{user}/averages"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	u, ok := s.lookupUser(w, endpoint, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	family := q.Get("family")
	if family == "" {
		family = string(models.FamilyShortTerm)
	}
	if !models.IsValidFamily(family) {
		s.respondError(w, endpoint, r, "invalid family: "+family, http.StatusBadRequest)
		return
	}
	period := q.Get("period")
	if period != "" && !models.IsValidPeriodType(period) {
		s.respondError(w, endpoint, r, "invalid period: "+period, http.StatusBadRequest)
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		s.respondError(w, endpoint, r, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := s.store.ListPeriodAverages(r.Context(), storage.AverageQuery{
		Family:     models.Family(family),
		UserID:     u.ID,
		PeriodType: models.PeriodType(period),
		From:       q.Get("from"),
		To:         q.Get("to"),
		Limit:      limit,
	})
	if err != nil {
		s.log.Error("list_averages_failed", slog.Any("err", err))
		s.respondError(w, endpoint, r, "failed to list averages", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []*models.PeriodAverage{}
	}
	s.respondJSON(w, endpoint, r, rows, http.StatusOK)
}

func (s *Server) listAnomalies(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/users/{user}/anomalies"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	u, ok := s.lookupUser(w, endpoint, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.respondError(w, endpoint, r, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := s.store.ListAnomalyEvents(r.Context(), storage.AnomalyQuery{UserID: &u.ID, Limit: limit})
	if err != nil {
		s.log.Error("list_anomalies_failed", slog.Any("err", err))
		s.respondError(w, endpoint, r, "failed to list anomalies", http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []*models.AnomalyEvent{}
	}
	s.respondJSON(w, endpoint, r, rows, http.StatusOK)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, "/healthz", r, map[string]string{"status": "healthy"}, http.StatusOK)
}

// lookupUser resolves the {user} path segment as a Fitbit id, then as an internal id or prefix.
func (s *Server) lookupUser(w http.ResponseWriter, endpoint string, r *http.Request) (*models.User, bool) {
	ref := mux.Vars(r)["user"]
	u, err := s.store.GetUserByFitbitID(r.Context(), ref)
	if errors.Is(err, storage.ErrNotFound) {
		u, err = s.store.GetUser(r.Context(), ref)
	}
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, endpoint, r, "user not found: "+ref, http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.respondError(w, endpoint, r, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return u, true
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) respondJSON(w http.ResponseWriter, endpoint string, r *http.Request, data any, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("encode_response_failed", slog.Any("err", err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, endpoint string, r *http.Request, message string, status int) {
	s.respondJSON(w, endpoint, r, map[string]string{"error": message}, status)
}
