package api

import (
	"errors"
	"net/http"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/screening"
)

type healthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}

func (s *Server) handleHealth(_ http.ResponseWriter, _ *http.Request) (any, error) {
	return healthResponse{Status: "ok", Time: s.now().UTC()}, nil
}

func (s *Server) handleMerged(_ http.ResponseWriter, r *http.Request) (any, error) {
	symbol, err := symbolParam(r)
	if err != nil {
		return nil, err
	}
	rows, err := s.readers.Merged.GetMerged(r.Context(), symbol)
	if err != nil {
		return nil, err
	}
	return list(rows), nil
}

func (s *Server) handlePriced(_ http.ResponseWriter, r *http.Request) (any, error) {
	symbol, err := symbolParam(r)
	if err != nil {
		return nil, err
	}
	rows, err := s.readers.Priced.GetPriced(r.Context(), symbol)
	if err != nil {
		return nil, err
	}
	return list(rows), nil
}

func (s *Server) handleMarriedPuts(_ http.ResponseWriter, r *http.Request) (any, error) {
	p := s.marriedPut
	var err error
	if p.Symbol, err = symbolParam(r); err != nil {
		return nil, err
	}
	if p.MinOpenInterest, err = intParam(r, "min_open_interest", p.MinOpenInterest); err != nil {
		return nil, err
	}
	minDTE, err := intParam(r, "min_dte", int64(p.MinDTE))
	if err != nil {
		return nil, err
	}
	p.MinDTE = int(minDTE)
	if p.MinStrikeRatio, err = floatParam(r, "min_strike_ratio", p.MinStrikeRatio); err != nil {
		return nil, err
	}
	if p.MaxStrikeRatio, err = floatParam(r, "max_strike_ratio", p.MaxStrikeRatio); err != nil {
		return nil, err
	}
	topN, err := intParam(r, "top_n", int64(p.TopN))
	if err != nil {
		return nil, err
	}
	p.TopN = int(topN)
	if err := p.Validate(); err != nil {
		return nil, badRequest(err)
	}

	rows, err := s.readers.Priced.GetPriced(r.Context(), p.Symbol)
	if err != nil {
		return nil, err
	}
	cands, err := screening.MarriedPuts(rows, p)
	if err != nil {
		return nil, err
	}
	return list(cands), nil
}

func (s *Server) handleCreditSpreads(_ http.ResponseWriter, r *http.Request) (any, error) {
	var p screening.SpreadParams
	var err error
	if p.Symbol, err = symbolParam(r); err != nil {
		return nil, err
	}
	if p.ExpirationDate, err = dateParam(r, "expiration"); err != nil {
		return nil, err
	}
	p.OptionType = domain.ContractType(r.URL.Query().Get("type"))
	if p.DeltaTarget, err = floatParam(r, "delta", 0.3); err != nil {
		return nil, err
	}
	if p.SpreadWidth, err = floatParam(r, "width", 5); err != nil {
		return nil, err
	}
	if p.MinOpenInterest, err = intParam(r, "min_open_interest", 0); err != nil {
		return nil, err
	}
	if p.MinDayVolume, err = intParam(r, "min_volume", 0); err != nil {
		return nil, err
	}
	if p.MinIVRank, err = floatParam(r, "min_iv_rank", 0); err != nil {
		return nil, err
	}
	if p.MinIVPercentile, err = floatParam(r, "min_iv_percentile", 0); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, badRequest(err)
	}

	rows, err := s.readers.Priced.GetPriced(r.Context(), p.Symbol)
	if err != nil {
		return nil, err
	}
	latest, err := s.readers.IVStats.GetLatest(r.Context())
	if err != nil {
		return nil, err
	}
	bySymbol := make(map[string]*domain.IVStat, len(latest))
	for _, st := range latest {
		bySymbol[st.Symbol] = st
	}

	spreads, err := screening.CreditSpreads(rows, bySymbol, p)
	if err != nil {
		return nil, err
	}
	return list(spreads), nil
}

func (s *Server) handleIVFilter(_ http.ResponseWriter, r *http.Request) (any, error) {
	var p screening.IVFilterParams
	var err error
	if p.MinIVRank, err = floatParam(r, "min_iv_rank", 0); err != nil {
		return nil, err
	}
	if p.MinIVPercentile, err = floatParam(r, "min_iv_percentile", 0); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, badRequest(err)
	}

	latest, err := s.readers.IVStats.GetLatest(r.Context())
	if err != nil {
		return nil, err
	}
	stats, err := screening.IVFilter(latest, p)
	if err != nil {
		return nil, err
	}
	return list(stats), nil
}

func (s *Server) handleIVStats(_ http.ResponseWriter, r *http.Request) (any, error) {
	stats, err := s.readers.IVStats.GetBySymbol(r.Context(), r.PathValue("symbol"))
	if err != nil {
		return nil, err
	}
	return list(stats), nil
}

func (s *Server) handleVolatility(_ http.ResponseWriter, r *http.Request) (any, error) {
	points, err := s.readers.Volatility.GetBySymbol(r.Context(), r.PathValue("symbol"))
	if err != nil {
		return nil, err
	}
	return list(points), nil
}

func (s *Server) handleStreaks(_ http.ResponseWriter, r *http.Request) (any, error) {
	streaks, err := s.readers.Streaks.GetAll(r.Context())
	if err != nil {
		return nil, err
	}
	return list(streaks), nil
}

// masterEntry is a master data row with its history depth as of a date.
type masterEntry struct {
	*domain.MasterDataEntry
	HistoryDepthDays int `json:"history_depth_days"`
}

func (s *Server) handleMasterData(_ http.ResponseWriter, r *http.Request) (any, error) {
	asOf, err := dateParam(r, "as_of")
	if err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		y, m, d := s.now().UTC().Date()
		asOf = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	entries, err := s.readers.MasterData.GetByTable(r.Context(), r.PathValue("table"))
	if err != nil {
		return nil, err
	}
	out := make([]masterEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, masterEntry{MasterDataEntry: e, HistoryDepthDays: e.HistoryDepthDays(asOf)})
	}
	return list(out), nil
}

func (s *Server) handleChangeLog(_ http.ResponseWriter, r *http.Request) (any, error) {
	if runID := r.URL.Query().Get("run_id"); runID != "" {
		entries, err := s.readers.ChangeLog.GetByRunID(r.Context(), runID)
		if err != nil {
			return nil, err
		}
		return list(entries), nil
	}

	since, err := dateParam(r, "since")
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		return nil, badRequest(errors.New("run_id or since is required"))
	}
	entries, err := s.readers.ChangeLog.GetSince(r.Context(), since)
	if err != nil {
		return nil, err
	}
	return list(entries), nil
}
