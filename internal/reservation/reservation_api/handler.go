package reservation_api

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

type ReservationService interface {
	Purchase(ctx context.Context, purchaser, eventID string, req models.PurchaseRequest) (*models.PurchaseResult, error)
	RefundUnclaimed(ctx context.Context, eventID string, req models.RefundRequest) (*models.RefundResult, error)
	Tally(ctx context.Context, eventID string, weight uint64, purchaser string) (*models.WalletTally, error)
}

type Handler struct {
	Service ReservationService
	Logger  *logger.Logger
}

func NewHandler(service ReservationService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events/{eventID}/reservations", h.Purchase)
	r.Post("/events/{eventID}/refunds", h.RefundUnclaimed)
	r.Get("/events/{eventID}/tiers/{weight}/tally/{purchaser}", h.Tally)
}

// Purchase reserves tickets for the caller. With group atomicity a failed
// group still returns the committed part of the result alongside the error.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	purchaser := auth.UserID(r.Context())

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Purchase: failed to decode request body: %v", err))
		utils.WriteBadRequest(w, "Invalid request body", err)
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("Purchase: event=%s purchaser=%s groups=%d", eventID, purchaser, len(req.Groups)))

	result, err := h.Service.Purchase(r.Context(), purchaser, eventID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Purchase: event=%s purchaser=%s: %v", eventID, purchaser, err))
		status, resp := utils.ErrorFor("Purchase rejected", err)
		if result != nil {
			resp.Data = result
		}
		utils.WriteJSON(w, status, resp)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Tickets reserved", result)
}

func (h *Handler) RefundUnclaimed(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req models.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", err)
		return
	}

	result, err := h.Service.RefundUnclaimed(r.Context(), eventID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("RefundUnclaimed: event=%s: %v", eventID, err))
		utils.WriteError(w, "Refund failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Refund processed", result)
}

func (h *Handler) Tally(w http.ResponseWriter, r *http.Request) {
	weight, err := utils.UintParam(r, "weight")
	if err != nil {
		utils.WriteBadRequest(w, "Invalid tier weight", err)
		return
	}

	tally, err := h.Service.Tally(r.Context(), chi.URLParam(r, "eventID"), weight, chi.URLParam(r, "purchaser"))
	if err != nil {
		utils.WriteError(w, "Tally lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tally retrieved", tally)
}
