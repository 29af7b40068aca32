package demo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/rshade/tablesync/internal/logging"
	"github.com/rshade/tablesync/internal/pagination"
	"github.com/rshade/tablesync/internal/remote"
)

// Server defaults.
const (
	DefaultRoute         = "admin.products"
	DefaultDataKey       = "products"
	DefaultPerPage       = pagination.DefaultPerPage
	DefaultAPIVersion    = "1.4.0"
	DefaultMutationLimit = 60

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
	maxBodyBytes      = 1 << 20
)

// Messages returned to clients.
const (
	msgForbiddenDelete = "You may not delete these products."
	msgNoSelection     = "No records selected."
)

// ServerConfig configures a demo Server.
type ServerConfig struct {
	// Route is the dotted list route ("admin.products").
	Route string

	// DataKey is the props field holding rows.
	DataKey string

	// PollInterval is announced to clients in the polling block. Zero omits it.
	PollInterval time.Duration

	// APIVersion is sent in the X-Api-Version header.
	APIVersion string

	// MutationLimit caps bulk requests per client IP per minute.
	MutationLimit int

	// LockedIDs cannot be deleted; a delete touching one is rejected with 403.
	LockedIDs []int

	Logger zerolog.Logger
}

// Server is the demo list server.
type Server struct {
	store  *Store
	cfg    ServerConfig
	logger zerolog.Logger
	locked map[int]bool
}

// NewServer creates a server over store.
func NewServer(store *Store, cfg ServerConfig) *Server {
	if cfg.Route == "" {
		cfg.Route = DefaultRoute
	}
	if cfg.DataKey == "" {
		cfg.DataKey = DefaultDataKey
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.MutationLimit <= 0 {
		cfg.MutationLimit = DefaultMutationLimit
	}
	locked := make(map[int]bool, len(cfg.LockedIDs))
	for _, id := range cfg.LockedIDs {
		locked[id] = true
	}
	return &Server{
		store:  store,
		cfg:    cfg,
		logger: logging.ComponentLogger(cfg.Logger, "demo"),
		locked: locked,
	}
}

// Store returns the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer,
		hlog.NewHandler(s.logger),
		hlog.CustomHeaderHandler("request_id", remote.HeaderRequestID),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := httprate.Limit(s.cfg.MutationLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
	r.Route(remote.RoutePath(s.cfg.Route), func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Group(func(r chi.Router) {
			r.Use(limiter)
			r.Delete("/bulk", s.handleBulkDelete)
			r.Patch("/bulk-status", s.handleBulkStatus)
		})
	})
	return r
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Str("route", remote.RoutePath(s.cfg.Route)).
		Int("records", s.store.Len()).
		Msg("demo server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down demo server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q, fieldErrs := parseListQuery(r)
	if len(fieldErrs) > 0 {
		writeError(w, http.StatusUnprocessableEntity, "The given data was invalid.", fieldErrs)
		return
	}

	res := s.store.List(q)
	lastUpdated := s.store.Watermark()
	hasMore := res.CurrentPage < res.LastPage

	want := partialKeys(r.Header.Get(remote.HeaderPartialData))
	props := map[string]any{}
	if want.includes(s.cfg.DataKey) {
		props[s.cfg.DataKey] = map[string]any{
			"data":         res.Rows,
			"current_page": res.CurrentPage,
			"last_page":    res.LastPage,
			"per_page":     res.PerPage,
			"total":        res.Total,
		}
	}
	if want.includes(remote.MetaKey) {
		props[remote.MetaKey] = pagination.Meta{
			CurrentPage:  res.CurrentPage,
			LastPage:     res.LastPage,
			PerPage:      res.PerPage,
			Total:        res.Total,
			HasMorePages: &hasMore,
			LastUpdated:  pagination.Watermark(lastUpdated),
		}
	}
	if s.cfg.PollInterval > 0 && want.includes(remote.PollingKey) {
		props[remote.PollingKey] = remote.PollingConfig{IntervalMS: int(s.cfg.PollInterval / time.Millisecond)}
	}

	w.Header().Set(remote.HeaderAPIVersion, s.cfg.APIVersion)
	writeJSON(w, http.StatusOK, map[string]any{"props": props})
}

type bulkRequest struct {
	IDs    []json.RawMessage `json:"ids"`
	Status string            `json:"status"`
}

func (s *Server) decodeBulk(w http.ResponseWriter, r *http.Request) (bulkRequest, []int, bool) {
	var req bulkRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body.", nil)
		return req, nil, false
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusUnprocessableEntity, msgNoSelection,
			map[string][]string{"ids": {"The ids field is required."}})
		return req, nil, false
	}
	ids, err := parseIDs(req.IDs)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "The given data was invalid.",
			map[string][]string{"ids": {err.Error()}})
		return req, nil, false
	}
	return req, ids, true
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	_, ids, ok := s.decodeBulk(w, r)
	if !ok {
		return
	}
	if slices.ContainsFunc(ids, func(id int) bool { return s.locked[id] }) {
		writeError(w, http.StatusForbidden, msgForbiddenDelete, nil)
		return
	}

	n := s.store.Delete(ids)
	hlog.FromRequest(r).Info().
		Str("operation", "bulk_delete").
		Int("requested", len(ids)).
		Int("affected", n).
		Msg("products deleted")
	writeJSON(w, http.StatusOK, remote.MutationResult{
		Message:  fmt.Sprintf("%d products deleted.", n),
		Affected: n,
	})
}

func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	req, ids, ok := s.decodeBulk(w, r)
	if !ok {
		return
	}
	if req.Status != StatusActive && req.Status != StatusInactive {
		writeError(w, http.StatusUnprocessableEntity, "The given data was invalid.",
			map[string][]string{"status": {"The selected status is invalid."}})
		return
	}

	n := s.store.SetStatus(ids, req.Status)
	hlog.FromRequest(r).Info().
		Str("operation", "bulk_status").
		Str("status", req.Status).
		Int("affected", n).
		Msg("product status updated")
	writeJSON(w, http.StatusOK, remote.MutationResult{
		Message:  fmt.Sprintf("%d products marked %s.", n, req.Status),
		Affected: n,
	})
}

// parseListQuery reads list parameters. Problems are reported per field.
func parseListQuery(r *http.Request) (ListQuery, map[string][]string) {
	v := r.URL.Query()
	errs := map[string][]string{}
	q := ListQuery{
		Search:    strings.TrimSpace(v.Get(pagination.ParamSearch)),
		Status:    v.Get("status"),
		Category:  v.Get("category"),
		Sort:      v.Get(pagination.ParamSort),
		Direction: v.Get(pagination.ParamDirection),
		Page:      pagination.DefaultPage,
		PerPage:   DefaultPerPage,
	}

	if q.Sort != "" && !slices.Contains(SortColumns, q.Sort) {
		errs[pagination.ParamSort] = append(errs[pagination.ParamSort], "The selected sort is invalid.")
	}
	if q.Direction != "" && q.Direction != pagination.SortOrderAsc && q.Direction != pagination.SortOrderDesc {
		errs[pagination.ParamDirection] = append(errs[pagination.ParamDirection], "The direction must be asc or desc.")
	}
	if raw := v.Get(pagination.ParamPage); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || pagination.ValidatePage(page) != nil {
			errs[pagination.ParamPage] = append(errs[pagination.ParamPage], "The page must be at least 1.")
		} else {
			q.Page = page
		}
	}
	if raw := v.Get(pagination.ParamPerPage); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage < 1 || pagination.ValidatePerPage(perPage) != nil {
			errs[pagination.ParamPerPage] = append(errs[pagination.ParamPerPage],
				fmt.Sprintf("The per page must be between 1 and %d.", pagination.MaxPerPage))
		} else {
			q.PerPage = perPage
		}
	}
	for key, dst := range map[string]**float64{"price[min]": &q.PriceMin, "price[max]": &q.PriceMax} {
		raw := v.Get(key)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs["price"] = append(errs["price"], "The price range must be numeric.")
			continue
		}
		*dst = &f
	}
	return q, errs
}

// parseIDs accepts numeric ids sent as JSON numbers or strings.
func parseIDs(raw []json.RawMessage) ([]int, error) {
	ids := make([]int, 0, len(raw))
	for _, item := range raw {
		var n int
		if err := json.Unmarshal(item, &n); err == nil {
			ids = append(ids, n)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return nil, fmt.Errorf("invalid id %s", item)
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// partialSet is the set of props named by X-Partial-Data. Nil means all.
type partialSet map[string]bool

func partialKeys(header string) partialSet {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	set := partialSet{}
	for _, k := range strings.Split(header, ",") {
		if k = strings.TrimSpace(k); k != "" {
			set[k] = true
		}
	}
	return set
}

func (p partialSet) includes(key string) bool {
	return p == nil || p[key]
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, fieldErrs map[string][]string) {
	body := map[string]any{"message": message}
	if len(fieldErrs) > 0 {
		body["errors"] = fieldErrs
	}
	writeJSON(w, status, body)
}
