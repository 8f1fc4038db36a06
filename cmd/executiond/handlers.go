package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"hftcore/internal/core"
)

type submitTWAPRequest struct {
	Symbol          string  `json:"symbol"`
	Side            string  `json:"side"`
	Qty             float64 `json:"qty"`
	DurationMin     float64 `json:"duration_min"`
	IntervalSec     float64 `json:"interval_sec"`
	RandomizeTiming bool    `json:"randomize_timing"`
	RandomizeSize   bool    `json:"randomize_size"`
}

type submitVWAPRequest struct {
	Symbol            string  `json:"symbol"`
	Side              string  `json:"side"`
	Qty               float64 `json:"qty"`
	DurationMin       float64 `json:"duration_min"`
	ParticipationRate float64 `json:"participation_rate"`
}

type submitIcebergRequest struct {
	Symbol           string  `json:"symbol"`
	Side             string  `json:"side"`
	Qty              float64 `json:"qty"`
	DisplaySize      float64 `json:"display_size"`
	RefreshThreshold float64 `json:"refresh_threshold"`
}

type submitSmartRequest struct {
	Symbol          string  `json:"symbol"`
	Side            string  `json:"side"`
	Qty             float64 `json:"qty"`
	MaxVenues       int     `json:"max_venues"`
	CostSensitivity float64 `json:"cost_sensitivity"`
}

type submitResponse struct {
	ParentID uint64 `json:"parent_id"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

func (s *service) respondSubmit(w http.ResponseWriter, parent *core.ParentOrder, err error) {
	if err != nil {
		s.telem.ParentsRejected.Inc()
		writeJSON(w, submitResponse{ParentID: parent.ID, Status: string(parent.Status), Error: err.Error()})
		return
	}
	s.telem.ParentsSubmitted.Inc()
	writeJSON(w, submitResponse{ParentID: parent.ID, Status: string(parent.Status)})
}

func (s *service) handleSubmitTWAP(w http.ResponseWriter, r *http.Request) {
	var req submitTWAPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	parent, err := s.engine.SubmitTWAP(req.Symbol, core.Side(req.Side), req.Qty, req.DurationMin, req.IntervalSec, req.RandomizeTiming, req.RandomizeSize, time.Now().UnixNano())
	s.respondSubmit(w, parent, err)
}

func (s *service) handleSubmitVWAP(w http.ResponseWriter, r *http.Request) {
	var req submitVWAPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	parent, err := s.engine.SubmitVWAP(req.Symbol, core.Side(req.Side), req.Qty, req.DurationMin, req.ParticipationRate, time.Now().UnixNano())
	s.respondSubmit(w, parent, err)
}

func (s *service) handleSubmitIceberg(w http.ResponseWriter, r *http.Request) {
	var req submitIcebergRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	parent, err := s.engine.SubmitIceberg(req.Symbol, core.Side(req.Side), req.Qty, req.DisplaySize, req.RefreshThreshold, time.Now().UnixNano())
	s.respondSubmit(w, parent, err)
}

func (s *service) handleSubmitSmart(w http.ResponseWriter, r *http.Request) {
	var req submitSmartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	parent, err := s.engine.SubmitSmart(req.Symbol, core.Side(req.Side), req.Qty, req.MaxVenues, req.CostSensitivity, time.Now().UnixNano())
	s.respondSubmit(w, parent, err)
}

func (s *service) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParentID uint64 `json:"parent_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	err := s.engine.Cancel(req.ParentID)
	resp := submitResponse{ParentID: req.ParentID}
	if err != nil {
		resp.Error = err.Error()
	} else {
		s.telem.ParentsCancelled.Inc()
		resp.Status = "CANCELLED"
	}
	writeJSON(w, resp)
}

type statusResponse struct {
	ParentID                uint64  `json:"parent_id"`
	Status                  string  `json:"status"`
	Filled                  float64 `json:"filled"`
	Remaining               float64 `json:"remaining"`
	AvgPrice                float64 `json:"avg_price"`
	ImplementationShortfall float64 `json:"implementation_shortfall_bps"`
}

func (s *service) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.URL.Query().Get("parent_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid parent_id", http.StatusBadRequest)
		return
	}
	st, ok := s.engine.Status(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, statusResponse{
		ParentID:                st.ParentID,
		Status:                  string(st.Status),
		Filled:                  st.Filled,
		Remaining:               st.Remaining,
		AvgPrice:                st.AvgPrice,
		ImplementationShortfall: st.ImplementationShortfall,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
