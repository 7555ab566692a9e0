// Package api serves the read-only dashboard API: merged and priced option
// chains, screens, derived metrics and the change log.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/metrics"
	"options-data-lab/internal/observability"
	"options-data-lab/internal/screening"
	"options-data-lab/internal/storage"
)

// PricedReader returns the priced option view, optionally filtered by symbol.
type PricedReader interface {
	GetPriced(ctx context.Context, symbol string) ([]*domain.PricedOption, error)
}

// Readers groups the stores the API reads from.
type Readers struct {
	Merged     storage.MergedOptionReader
	Priced     PricedReader // nil prices Merged rows in process
	IVStats    storage.IVStatStore
	Volatility storage.VolatilityStore
	Streaks    storage.DividendStreakStore
	MasterData storage.MasterDataStore
	ChangeLog  storage.ChangeLogStore
}

// Server is the HTTP API.
type Server struct {
	readers    Readers
	marriedPut screening.MarriedPutParams
	hub        *Hub
	logger     *zap.SugaredLogger
	now        func() time.Time
}

// New creates an API server. hub may be nil to disable /ws/events.
func New(readers Readers, marriedPut screening.MarriedPutParams, hub *Hub, logger *zap.SugaredLogger) *Server {
	if readers.Priced == nil {
		readers.Priced = metrics.PricedView{Merged: readers.Merged}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Server{
		readers:    readers,
		marriedPut: marriedPut,
		hub:        hub,
		logger:     logger,
		now:        time.Now,
	}
}

// Handler returns the routed handler with request metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, "GET /health", s.handleHealth)
	s.handle(mux, "GET /api/options/merged", s.handleMerged)
	s.handle(mux, "GET /api/options/priced", s.handlePriced)
	s.handle(mux, "GET /api/screens/married-puts", s.handleMarriedPuts)
	s.handle(mux, "GET /api/screens/credit-spreads", s.handleCreditSpreads)
	s.handle(mux, "GET /api/screens/iv", s.handleIVFilter)
	s.handle(mux, "GET /api/iv/{symbol}", s.handleIVStats)
	s.handle(mux, "GET /api/volatility/{symbol}", s.handleVolatility)
	s.handle(mux, "GET /api/dividends/streaks", s.handleStreaks)
	s.handle(mux, "GET /api/master/{table}", s.handleMasterData)
	s.handle(mux, "GET /api/changelog", s.handleChangeLog)
	if s.hub != nil {
		mux.Handle("GET /ws/events", s.hub)
	}
	mux.Handle("GET /metrics", observability.Handler())

	return mux
}

func (s *Server) handle(mux *http.ServeMux, pattern string, h func(http.ResponseWriter, *http.Request) (any, error)) {
	route := pattern[strings.IndexByte(pattern, ' ')+1:]
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		data, err := h(w, r)
		code := http.StatusOK
		if err != nil {
			code = statusOf(err)
			if code >= 500 {
				s.logger.Errorw("request failed", "route", route, "error", err)
			}
			writeJSON(w, code, map[string]string{"error": err.Error()})
		} else {
			writeJSON(w, code, data)
		}
		observability.RecordHTTPRequest(route, code)
	})
}

// errBadRequest marks a parameter error.
type errBadRequest struct{ err error }

func (e errBadRequest) Error() string { return e.err.Error() }
func (e errBadRequest) Unwrap() error { return e.err }

func badRequest(err error) error { return errBadRequest{err: err} }

func statusOf(err error) int {
	var bad errBadRequest
	switch {
	case errors.As(err, &bad), errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusServiceUnavailable
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// listResponse is the envelope of every list endpoint. An empty list
// carries a "no data" message instead of an error.
type listResponse[T any] struct {
	Count   int    `json:"count"`
	Message string `json:"message,omitempty"`
	Data    []T    `json:"data"`
}

func list[T any](data []T) listResponse[T] {
	if len(data) == 0 {
		return listResponse[T]{Message: "no data", Data: []T{}}
	}
	return listResponse[T]{Count: len(data), Data: data}
}

func symbolParam(r *http.Request) (string, error) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if len(symbol) > 6 {
		return "", badRequest(errors.New("symbol: at most 6 characters"))
	}
	return symbol, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, badRequest(errors.New(name + ": not a number"))
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest(errors.New(name + ": not an integer"))
	}
	return v, nil
}

func dateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, badRequest(errors.New(name + ": expected YYYY-MM-DD"))
	}
	return t, nil
}
