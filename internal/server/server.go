// Package server exposes run control, status and archive browsing over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"igarchive/internal/ingest"
	"igarchive/internal/runner"
	"igarchive/pkg/accounts"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/export"
	"igarchive/pkg/logger"
	"igarchive/pkg/models"
	"igarchive/pkg/store"
)

const (
	maxRunBodySize  = 32 << 20 // inline snapshots can be large
	defaultPageSize = 20
	maxPageSize     = 100
)

// Deps wires the handler
type Deps struct {
	Registry *accounts.Registry
	Stores   *store.Set
	Runner   *runner.Runner
	// Source returns the snapshot source used when a run request carries no
	// inline input.
	Source func() ingest.RawSource
	// Token enables bearer authentication when non-empty
	Token  string
	Logger logger.Logger
}

// RunRequest is the body of POST /runs
type RunRequest struct {
	Account string            `json:"account"`
	Inputs  map[string]string `json:"inputs,omitempty"`
}

// RunResponse is returned when a run is accepted
type RunResponse struct {
	RunID   string `json:"run_id"`
	Account string `json:"account"`
}

// AccountView describes a partition in API responses
type AccountView struct {
	accounts.Partition
	Default bool `json:"default"`
}

// RecordsPage is returned by GET /accounts/{id}/records
type RecordsPage struct {
	Account string                 `json:"account"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
	Records []models.ContentRecord `json:"records"`
}

// NewHandler builds the router
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	deps.Logger = deps.Logger.WithField("component", "server")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(deps.Logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/runs", handleStartRun(deps))
		r.Get("/status", handleStatus(deps))
		r.Get("/accounts", handleListAccounts(deps))
		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/stats", handleStats(deps))
			r.Get("/records", handleRecords(deps))
			r.Get("/export", handleExport(deps))
		})
	})

	return r
}

func handleStartRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRunBodySize)
		defer r.Body.Close()

		var req RunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Account == "" {
			req.Account = deps.Registry.DefaultID()
		}

		var src ingest.RawSource
		if len(req.Inputs) > 0 {
			pages := make(map[models.Category]string, len(req.Inputs))
			for name, html := range req.Inputs {
				cat, err := models.ParseCategory(name)
				if err != nil {
					httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid input: %v", err)
					return
				}
				pages[cat] = html
			}
			src = ingest.NewMemorySource(pages)
		} else if deps.Source != nil {
			src = deps.Source()
		} else {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", errNoSource)
			return
		}

		runID, err := deps.Runner.Start(req.Account, src)
		if err != nil {
			switch {
			case errors.Is(err, errs.ErrRunInProgress):
				httpError(w, http.StatusConflict, "already_running", "%v", err)
				return
			case errors.Is(err, runner.ErrShuttingDown):
				httpError(w, http.StatusServiceUnavailable, "shutting_down", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start run: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, RunResponse{RunID: runID, Account: req.Account})
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, deps.Runner.Status())
	}
}

func handleListAccounts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def := deps.Registry.DefaultID()
		parts := deps.Registry.List()
		out := make([]AccountView, 0, len(parts))
		for _, p := range parts {
			out = append(out, AccountView{Partition: p, Default: p.ID == def})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// partitionStore resolves the {id} parameter. Unknown accounts are a 404 on
// read endpoints rather than silently showing the default partition.
func partitionStore(deps Deps, w http.ResponseWriter, r *http.Request) (accounts.Partition, *store.Store, bool) {
	id := chi.URLParam(r, "id")
	if !deps.Registry.IsKnown(id) {
		httpError(w, http.StatusNotFound, "not_found_error", "unknown account %q", id)
		return accounts.Partition{}, nil, false
	}
	p := deps.Registry.Resolve(id)
	st, err := deps.Stores.Open(p)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to open store: %v", err)
		return p, nil, false
	}
	return p, st, true
}

func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, st, ok := partitionStore(deps, w, r)
		if !ok {
			return
		}
		stats, err := st.Stats(r.Context(), p.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get stats: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleRecords(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, st, ok := partitionStore(deps, w, r)
		if !ok {
			return
		}

		var category models.Category
		if c := r.URL.Query().Get("category"); c != "" {
			parsed, err := models.ParseCategory(c)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			category = parsed
		}
		var since time.Time
		if v := r.URL.Query().Get("since"); v != "" {
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid since %q: want RFC3339", v)
				return
			}
			since = parsed
		}
		limit := parseIntParam(r, "limit", defaultPageSize, maxPageSize)
		offset := parseIntParam(r, "offset", 0, 0)

		total, err := st.Count(r.Context(), p.ID, store.Filter{Category: category, Since: since})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count records: %v", err)
			return
		}
		records, err := st.List(r.Context(), p.ID, store.ListOptions{Category: category, Since: since, Limit: limit, Offset: offset})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list records: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, RecordsPage{
			Account: p.ID,
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			Records: records,
		})
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format, err := export.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		p, st, ok := partitionStore(deps, w, r)
		if !ok {
			return
		}

		records, err := st.All(r.Context(), p.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to load records: %v", err)
			return
		}

		filename := fmt.Sprintf("%s_export_%s%s", p.ID, time.Now().Format("20060102_150405"), format.Extension())
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		if err := export.Write(w, format, records); err != nil {
			// Headers are already sent.
			deps.Logger.WithError(err).WarnWithFields("Export interrupted", map[string]interface{}{
				"account": p.ID,
			})
		}
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

var errNoSource = errors.New("no snapshot source configured")
