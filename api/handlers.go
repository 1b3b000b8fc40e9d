package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacentio/carte/store"
)

// WelcomeMessage is served at the root path.
const WelcomeMessage = "Добро пожаловать на сервер!"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 2 << 20

// API serves the menu hierarchy over HTTP.
type API struct {
	store   *store.Store
	logger  *slog.Logger
	metrics *metrics
}

// New creates the API. A nil logger falls back to slog.Default(); a nil
// registry disables metrics.
func New(s *store.Store, logger *slog.Logger, reg *prometheus.Registry) *API {
	if logger == nil {
		logger = slog.Default()
	}
	a := &API{store: s, logger: logger}
	if reg != nil {
		a.metrics = newMetrics(reg)
	}
	return a
}

// paramName returns the path parameter naming an entity of kind (e.g., "menuId").
func paramName(kind store.Kind) string {
	return string(kind) + "Id"
}

// Handler returns the routed, instrumented HTTP handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.Welcome)

	for _, kind := range store.Kinds() {
		base := "/" + kind.Plural()
		item := base + "/{" + paramName(kind) + "}"

		mux.HandleFunc("GET "+base, a.List(kind))
		mux.HandleFunc("POST "+base, a.Create(kind))
		mux.HandleFunc("GET "+item, a.Get(kind))
		mux.HandleFunc("PUT "+item, a.Update(kind))
		mux.HandleFunc("DELETE "+item, a.Delete(kind))
	}

	for _, rel := range a.store.Registry().AllRelationships() {
		parent := rel.ParentKind
		path := "/" + parent.Plural() + "/{" + paramName(parent) + "}/" + rel.ChildKind.Plural()
		mux.HandleFunc("GET "+path, a.Children(rel))
	}

	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.handler())
		return a.logRequests(a.metrics.instrument(mux))
	}
	return a.logRequests(mux)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, msg)
}

// writeError maps store errors to HTTP outcomes.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var nf *store.NotFoundError
	switch {
	case errors.As(err, &nf):
		writeText(w, http.StatusNotFound, nf.Error())
	case errors.Is(err, store.ErrInvalidField):
		writeText(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrImmutableField):
		writeText(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrDuplicateKey):
		writeText(w, http.StatusConflict, err.Error())
	default:
		a.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeText(w, http.StatusInternalServerError, "internal error")
	}
}

// readFields decodes the request body as a JSON object. An empty body is {}.
func readFields(w http.ResponseWriter, r *http.Request) (*store.Fields, int, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, err
		}
		return nil, http.StatusBadRequest, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return store.NewFields(), 0, nil
	}
	fields, err := store.ParseFields(body)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	return fields, 0, nil
}

// Welcome answers the root path.
func (a *API) Welcome(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, WelcomeMessage)
}

// List returns every entity of kind.
func (a *API) List(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := a.store.List(r.Context(), kind)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if recs == nil {
			recs = []*store.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// Get returns one entity of kind.
func (a *API) Get(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := a.store.Get(r.Context(), kind, r.PathValue(paramName(kind)))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// Children returns the children of one parent along rel.
func (a *API) Children(rel store.Relationship) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := a.store.Children(r.Context(), rel.ParentKind, r.PathValue(paramName(rel.ParentKind)))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		out := make([]*store.Record, 0, len(recs))
		for _, rec := range recs {
			if rec.Kind == rel.ChildKind {
				out = append(out, rec)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Create stores a new entity of kind from the request body.
func (a *API) Create(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, code, err := readFields(w, r)
		if err != nil {
			writeText(w, code, "bad body: "+err.Error())
			return
		}
		rec, err := a.store.Create(r.Context(), kind, body)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

// Update merges the request body into an entity of kind.
func (a *API) Update(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue(paramName(kind))
		// Resolve the entity before looking at the body so a missing id is
		// always reported as not found.
		if _, err := a.store.Get(r.Context(), kind, id); err != nil {
			a.writeError(w, r, err)
			return
		}
		patch, code, err := readFields(w, r)
		if err != nil {
			writeText(w, code, "bad body: "+err.Error())
			return
		}
		rec, err := a.store.Update(r.Context(), kind, id, patch)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// Delete removes an entity of kind and its descendants.
func (a *API) Delete(kind store.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		plan, err := a.store.Delete(r.Context(), kind, r.PathValue(paramName(kind)))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if a.metrics != nil {
			a.metrics.observeCascade(plan)
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
