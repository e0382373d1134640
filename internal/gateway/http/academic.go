package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/redgumnet/edgegate/internal/gateway/academic"
	"github.com/redgumnet/edgegate/pkg/httpx"
	"github.com/redgumnet/edgegate/pkg/slogx"
)

// AcademicHandler exposes the academic-credential flows.
type AcademicHandler struct {
	Service *academic.Service
}

type academicVerifyRequest struct {
	StudentID string `json:"student_id"`
	Password  string `json:"password"`
}

type academicVerifyResponse struct {
	Valid bool `json:"valid"`
}

type academicResetRequest struct {
	StudentID   string `json:"student_id"`
	Password    string `json:"password"`
	NewPassword string `json:"new_password"`
}

// HandleVerify checks a student credential against the portal.
func (h *AcademicHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req academicVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.StudentID == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "student_id and password are required")
		return
	}

	valid, err := h.Service.VerifyCredential(r.Context(), req.StudentID, req.Password)
	if err != nil {
		log.Error("academic portal check failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "academic portal unavailable")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, academicVerifyResponse{Valid: valid})
}

// HandleReset runs the credential-gated password reset chain.
func (h *AcademicHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req academicResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.StudentID == "" || req.Password == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "student_id, password and new_password are required")
		return
	}

	err := h.Service.ResetPassword(r.Context(), req.StudentID, req.Password, req.NewPassword)
	switch {
	case errors.Is(err, academic.ErrInvalidCredential):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid academic credential")
	case err != nil:
		log.Error("password reset failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "password reset failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
