package api

import (
	"errors"
	"net/http"

	"github.com/tamzrod/panel-keeper/internal/keeper"
	"github.com/tamzrod/panel-keeper/internal/schedule"
	"github.com/tamzrod/panel-keeper/internal/status"
)

type resultResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type forceCheckResponse struct {
	Success bool            `json:"success"`
	Status  status.Snapshot `json:"status"`
	Message string          `json:"message"`
}

type toggleRequest struct {
	Active *bool `json:"active"`
}

type intervalRequest struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ready": s.ctl.Ready()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.ctl.Status(r.Context()))
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctl.Start(r.Context())
	respondResult(w, statusFor(err), res)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctl.Stop(r.Context())
	respondResult(w, statusFor(err), res)
}

func (s *Server) handleToggleAutoCheck(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if code, err := decodeJSONBody(w, r, &req); err != nil {
		respondResult(w, code, keeper.Result{Message: err.Error()})
		return
	}
	if req.Active == nil {
		respondResult(w, http.StatusBadRequest, keeper.Result{Message: "active is required"})
		return
	}

	res, err := s.ctl.SetAutoCheck(r.Context(), *req.Active)
	respondResult(w, statusFor(err), res)
}

func (s *Server) handleSetCheckInterval(w http.ResponseWriter, r *http.Request) {
	var req intervalRequest
	if code, err := decodeJSONBody(w, r, &req); err != nil {
		respondResult(w, code, keeper.Result{Message: err.Error()})
		return
	}
	if req.Min == nil || req.Max == nil {
		respondResult(w, http.StatusBadRequest, keeper.Result{Message: "min and max are required"})
		return
	}

	res, err := s.ctl.SetInterval(r.Context(), schedule.Bounds{MinMinutes: *req.Min, MaxMinutes: *req.Max})
	respondResult(w, statusFor(err), res)
}

func (s *Server) handleForceCheck(w http.ResponseWriter, r *http.Request) {
	snap, res, err := s.ctl.ForceCheck(r.Context())
	respondJSON(w, statusFor(err), forceCheckResponse{
		Success: res.Success,
		Status:  snap,
		Message: res.Message,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	res, err := s.ctl.Reset(r.Context())
	respondResult(w, statusFor(err), res)
}

// statusFor maps controller errors onto HTTP codes. Dispatch failures
// are not errors: they come back as success=false with 200.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, keeper.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, keeper.ErrInvalidInterval):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondResult(w http.ResponseWriter, code int, res keeper.Result) {
	respondJSON(w, code, resultResponse{Success: res.Success, Message: res.Message})
}
