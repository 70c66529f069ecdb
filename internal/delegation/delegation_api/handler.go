package delegation_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-ledger/internal/auth"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/utils"

	"github.com/go-chi/chi/v5"
)

type DelegationService interface {
	Reassign(ctx context.Context, caller, eventID string, req models.ReassignRequest) (*models.ReassignResult, error)
	ClaimDelegated(ctx context.Context, caller, eventID, delegator string) error
	Delegation(ctx context.Context, eventID, delegator string) (*models.Delegation, error)
	Delegations(ctx context.Context, eventID string) ([]models.Delegation, error)
}

type Handler struct {
	Service DelegationService
	Logger  *logger.Logger
}

func NewHandler(service DelegationService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events/{eventID}/reassign", h.Reassign)
	r.Get("/events/{eventID}/delegations", h.ListDelegations)
	r.Get("/events/{eventID}/delegations/{delegator}", h.GetDelegation)
	r.Post("/events/{eventID}/delegations/{delegator}/claim", h.ClaimDelegated)
}

func (h *Handler) Reassign(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	caller := auth.UserID(r.Context())

	var req models.ReassignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", err)
		return
	}

	result, err := h.Service.Reassign(r.Context(), caller, eventID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Reassign: event=%s caller=%s: %v", eventID, caller, err))
		utils.WriteError(w, "Reassignment rejected", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tickets reassigned", result)
}

func (h *Handler) ClaimDelegated(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	delegator := chi.URLParam(r, "delegator")
	caller := auth.UserID(r.Context())

	if err := h.Service.ClaimDelegated(r.Context(), caller, eventID, delegator); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ClaimDelegated: event=%s caller=%s delegator=%s: %v", eventID, caller, delegator, err))
		utils.WriteError(w, "Claim rejected", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket claimed", nil)
}

func (h *Handler) GetDelegation(w http.ResponseWriter, r *http.Request) {
	delegation, err := h.Service.Delegation(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "delegator"))
	if err != nil {
		utils.WriteError(w, "Delegation lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Delegation retrieved", delegation)
}

func (h *Handler) ListDelegations(w http.ResponseWriter, r *http.Request) {
	delegations, err := h.Service.Delegations(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		utils.WriteError(w, "Delegation lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Delegations retrieved", delegations)
}
