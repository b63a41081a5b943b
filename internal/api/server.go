// Package api exposes the wagering engine over a JSON HTTP API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"momentum-engine/internal/claim"
	"momentum-engine/internal/domain"
	"momentum-engine/internal/engine"
	"momentum-engine/internal/settlement"
	"momentum-engine/internal/storage"
)

// Server serves engine operations over HTTP.
type Server struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewServer creates an API server around an engine.
func NewServer(eng *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: eng, logger: logger}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /v1/races", s.handleListRaces)
	mux.HandleFunc("GET /v1/races/{id}", s.handleGetRace)
	mux.HandleFunc("GET /v1/races/{id}/preview", s.handlePreview)
	mux.HandleFunc("GET /v1/races/{id}/position", s.handlePosition)
	mux.HandleFunc("GET /v1/races/{id}/wagers", s.handleListWagers)
	mux.HandleFunc("POST /v1/races/{id}/wagers", s.handleRecordWager)
	mux.HandleFunc("GET /v1/races/{id}/settlement", s.handleSettlement)
	mux.HandleFunc("GET /v1/races/{id}/winnings", s.handleWinnings)
	mux.HandleFunc("POST /v1/races/{id}/claims", s.handleClaim)
	mux.HandleFunc("GET /v1/players/{player}/wagers", s.handlePlayerWagers)

	return mux
}

type assetResponse struct {
	Symbol       string   `json:"symbol"`
	Mint         string   `json:"mint"`
	StartPrice   float64  `json:"start_price"`
	CurrentPrice float64  `json:"current_price"`
	EndPrice     *float64 `json:"end_price,omitempty"`
}

type raceResponse struct {
	RaceID           string          `json:"race_id"`
	Pubkey           string          `json:"pubkey"`
	StartTs          int64           `json:"start_ts"`
	LockTs           int64           `json:"lock_ts"`
	SettleTs         int64           `json:"settle_ts"`
	Phase            string          `json:"phase"`
	TimeRemainingSec int64           `json:"time_remaining_sec"`
	Progress         float64         `json:"progress"`
	FeeBps           int64           `json:"fee_bps"`
	TotalPoolMicros  int64           `json:"total_pool_micros"`
	AssetPoolMicros  []int64         `json:"asset_pool_micros"`
	ParticipantCount int64           `json:"participant_count"`
	Assets           []assetResponse `json:"assets"`
}

type previewResponse struct {
	TotalPayoutMicros int64   `json:"total_payout_micros"`
	ProfitMicros      int64   `json:"profit_micros"`
	YourSharePct      float64 `json:"your_share_pct"`
	FieldCutMicros    int64   `json:"field_cut_micros"`
	NetPoolMicros     int64   `json:"net_pool_micros"`
	FeePct            float64 `json:"fee_pct"`
	WinnerPoolMicros  int64   `json:"winner_pool_micros"`
	Note              string  `json:"note,omitempty"`
}

type positionResponse struct {
	AssetIndex            int     `json:"asset_index"`
	AmountMicros          int64   `json:"amount_micros"`
	SharePct              float64 `json:"share_pct"`
	PotentialPayoutMicros int64   `json:"potential_payout_micros"`
	PotentialProfitMicros int64   `json:"potential_profit_micros"`
}

type wagerRequest struct {
	Player       string `json:"player"`
	AssetIndex   int    `json:"asset_index"`
	AmountMicros int64  `json:"amount_micros"`
}

type wagerResponse struct {
	RaceID       string `json:"race_id"`
	Player       string `json:"player"`
	AssetIndex   int    `json:"asset_index"`
	AmountMicros int64  `json:"amount_micros"`
	Claimed      bool   `json:"claimed"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type settlementResponse struct {
	RaceID               string    `json:"race_id"`
	PerformancePct       []float64 `json:"performance_pct"`
	WinningAssetIndices  []int     `json:"winning_asset_indices"`
	InvalidAssets        []int     `json:"invalid_assets,omitempty"`
	FeeMicros            int64     `json:"fee_micros"`
	NetPoolMicros        int64     `json:"net_pool_micros"`
	WinningPoolMicros    int64     `json:"winning_pool_micros"`
	PerformanceSpreadPct float64   `json:"performance_spread_pct"`
	Intensity            string    `json:"intensity"`
}

type claimRequest struct {
	Player string `json:"player"`
}

type claimResponse struct {
	Status       string `json:"status"`
	Signature    string `json:"signature,omitempty"`
	AmountMicros int64  `json:"amount_micros"`
	Kind         string `json:"kind,omitempty"`
	Error        string `json:"error,omitempty"`
}

type winningsResponse struct {
	RaceID       string `json:"race_id"`
	Player       string `json:"player"`
	AmountMicros int64  `json:"amount_micros"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleListRaces(w http.ResponseWriter, r *http.Request) {
	views, err := s.engine.ActiveRaces(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]raceResponse, len(views))
	for i, v := range views {
		out[i] = toRaceResponse(v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRace(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Race(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRaceResponse(view))
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	assetIndex, err := strconv.Atoi(q.Get("asset"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid asset index"})
		return
	}
	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid amount"})
		return
	}

	preview, err := s.engine.PreviewPayout(r.Context(), r.PathValue("id"), q.Get("player"), assetIndex, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{
		TotalPayoutMicros: preview.TotalPayoutMicros,
		ProfitMicros:      preview.ProfitMicros,
		YourSharePct:      preview.YourSharePct,
		FieldCutMicros:    preview.FieldCutMicros,
		NetPoolMicros:     preview.NetPoolMicros,
		FeePct:            preview.FeePct,
		WinnerPoolMicros:  preview.WinnerPoolMicros,
		Note:              preview.Note,
	})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "player is required"})
		return
	}
	pos, err := s.engine.Position(r.Context(), r.PathValue("id"), player)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		AssetIndex:            pos.AssetIndex,
		AmountMicros:          pos.AmountMicros,
		SharePct:              pos.SharePct,
		PotentialPayoutMicros: pos.PotentialPayoutMicros,
		PotentialProfitMicros: pos.PotentialProfitMicros,
	})
}

func (s *Server) handleListWagers(w http.ResponseWriter, r *http.Request) {
	wagers, err := s.engine.Wagers(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWagerResponses(wagers))
}

func (s *Server) handlePlayerWagers(w http.ResponseWriter, r *http.Request) {
	wagers, err := s.engine.PlayerWagers(r.Context(), r.PathValue("player"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toWagerResponses(wagers))
}

func (s *Server) handleRecordWager(w http.ResponseWriter, r *http.Request) {
	var req wagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Player == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "player is required"})
		return
	}

	wager := &domain.Wager{
		RaceID:       r.PathValue("id"),
		Player:       req.Player,
		AssetIndex:   req.AssetIndex,
		AmountMicros: req.AmountMicros,
	}
	if err := s.engine.RecordWager(r.Context(), wager); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWagerResponse(wager))
}

func (s *Server) handleSettlement(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Settle(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementResponse{
		RaceID:               result.RaceID,
		PerformancePct:       result.PerformancePct,
		WinningAssetIndices:  result.WinningAssetIndices,
		InvalidAssets:        result.InvalidAssets,
		FeeMicros:            result.FeeMicros,
		NetPoolMicros:        result.NetPoolMicros,
		WinningPoolMicros:    result.WinningPoolMicros,
		PerformanceSpreadPct: result.PerformanceSpreadPct,
		Intensity:            result.Intensity,
	})
}

func (s *Server) handleWinnings(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")
	if player == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "player is required"})
		return
	}
	raceID := r.PathValue("id")
	amount, err := s.engine.Winnings(r.Context(), raceID, player)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, winningsResponse{RaceID: raceID, Player: player, AmountMicros: amount})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Player == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "player is required"})
		return
	}

	outcome, err := s.engine.Claim(r.Context(), r.PathValue("id"), req.Player)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := claimResponse{
		Status:       string(outcome.Status),
		Signature:    outcome.Signature,
		AmountMicros: outcome.AmountMicros,
	}
	if outcome.Status == claim.StatusFailed {
		resp.Kind = string(outcome.Kind)
		if outcome.Err != nil {
			resp.Error = outcome.Err.Error()
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func toRaceResponse(v *engine.RaceView) raceResponse {
	race := v.Race
	assets := make([]assetResponse, len(race.Assets))
	for i, a := range race.Assets {
		assets[i] = assetResponse{
			Symbol:       a.Symbol,
			Mint:         a.Mint,
			StartPrice:   a.StartPrice,
			CurrentPrice: a.CurrentPrice,
			EndPrice:     a.EndPrice,
		}
	}
	return raceResponse{
		RaceID:           race.RaceID,
		Pubkey:           race.Pubkey,
		StartTs:          race.StartTs,
		LockTs:           race.LockTs,
		SettleTs:         race.SettleTs,
		Phase:            string(v.Phase),
		TimeRemainingSec: v.TimeRemainingSec,
		Progress:         v.Progress,
		FeeBps:           race.FeeBps,
		TotalPoolMicros:  race.TotalPoolMicros,
		AssetPoolMicros:  race.AssetPoolMicros,
		ParticipantCount: race.ParticipantCount,
		Assets:           assets,
	}
}

func toWagerResponse(w *domain.Wager) wagerResponse {
	return wagerResponse{
		RaceID:       w.RaceID,
		Player:       w.Player,
		AssetIndex:   w.AssetIndex,
		AmountMicros: w.AmountMicros,
		Claimed:      w.Claimed,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
}

func toWagerResponses(wagers []*domain.Wager) []wagerResponse {
	out := make([]wagerResponse, len(wagers))
	for i, w := range wagers {
		out[i] = toWagerResponse(w)
	}
	return out
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		status = http.StatusConflict
	case errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, engine.ErrUnknownAsset):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrBettingClosed),
		errors.Is(err, engine.ErrAssetSwitch),
		errors.Is(err, engine.ErrStakeDecrease),
		errors.Is(err, settlement.ErrNotFinal):
		status = http.StatusConflict
	case errors.Is(err, engine.ErrClaimsUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
