package event_api

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

type EventService interface {
	Initialize(ctx context.Context, caller string, req models.InitializeRequest) (*models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	Tiers(ctx context.Context, eventID string, descending bool) ([]models.Tier, error)
	Tier(ctx context.Context, eventID string, weight uint64) (*models.Tier, error)
	PaymentOptions(ctx context.Context, eventID string) ([]models.PaymentOption, error)
	Segments(ctx context.Context, eventID string, descending bool) ([]models.Segment, error)
	Segment(ctx context.Context, eventID string, ordinal uint64) (*models.Segment, error)
	Counter(ctx context.Context, eventID string, weight uint64) (*models.ReservationCounter, error)
	Balances(ctx context.Context, eventID string) ([]models.EventBalance, error)
	UpdateUshers(ctx context.Context, caller, eventID string, add []models.Member, remove []string) error
	ClaimProceeds(ctx context.Context, caller, eventID string) ([]models.Transfer, error)
}

type Handler struct {
	Service EventService
	Logger  *logger.Logger
}

func NewHandler(service EventService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

// RegisterRoutes mounts event setup and query routes under /events.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events", h.Initialize)
	r.Get("/events/{eventID}", h.GetEvent)
	r.Get("/events/{eventID}/tiers", h.ListTiers)
	r.Get("/events/{eventID}/tiers/{weight}", h.GetTier)
	r.Get("/events/{eventID}/tiers/{weight}/counter", h.GetCounter)
	r.Get("/events/{eventID}/payment-options", h.PaymentOptions)
	r.Get("/events/{eventID}/segments", h.ListSegments)
	r.Get("/events/{eventID}/segments/{ordinal}", h.GetSegment)
	r.Get("/events/{eventID}/balances", h.Balances)
	r.Put("/events/{eventID}/ushers", h.UpdateUshers)
	r.Post("/events/{eventID}/proceeds", h.ClaimProceeds)
}

func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req models.InitializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Initialize: failed to decode request body: %v", err))
		utils.WriteBadRequest(w, "Invalid request body", err)
		return
	}

	event, err := h.Service.Initialize(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Initialize: %v", err))
		utils.WriteError(w, "Event setup rejected", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Event initialized", event)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.Service.GetEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		utils.WriteError(w, "Event lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Event retrieved", event)
}

func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.Service.Tiers(r.Context(), chi.URLParam(r, "eventID"), utils.Descending(r))
	if err != nil {
		utils.WriteError(w, "Tier lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tiers retrieved", tiers)
}

func (h *Handler) GetTier(w http.ResponseWriter, r *http.Request) {
	weight, err := utils.UintParam(r, "weight")
	if err != nil {
		utils.WriteBadRequest(w, "Invalid tier weight", err)
		return
	}
	tier, err := h.Service.Tier(r.Context(), chi.URLParam(r, "eventID"), weight)
	if err != nil {
		utils.WriteError(w, "Tier lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tier retrieved", tier)
}

func (h *Handler) GetCounter(w http.ResponseWriter, r *http.Request) {
	weight, err := utils.UintParam(r, "weight")
	if err != nil {
		utils.WriteBadRequest(w, "Invalid tier weight", err)
		return
	}
	counter, err := h.Service.Counter(r.Context(), chi.URLParam(r, "eventID"), weight)
	if err != nil {
		utils.WriteError(w, "Counter lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Counter retrieved", counter)
}

func (h *Handler) PaymentOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.Service.PaymentOptions(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		utils.WriteError(w, "Payment option lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Payment options retrieved", options)
}

func (h *Handler) ListSegments(w http.ResponseWriter, r *http.Request) {
	segments, err := h.Service.Segments(r.Context(), chi.URLParam(r, "eventID"), utils.Descending(r))
	if err != nil {
		utils.WriteError(w, "Segment lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Segments retrieved", segments)
}

func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	ordinal, err := utils.UintParam(r, "ordinal")
	if err != nil {
		utils.WriteBadRequest(w, "Invalid segment id", err)
		return
	}
	segment, err := h.Service.Segment(r.Context(), chi.URLParam(r, "eventID"), ordinal)
	if err != nil {
		utils.WriteError(w, "Segment lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Segment retrieved", segment)
}

func (h *Handler) Balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Service.Balances(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		utils.WriteError(w, "Balance lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Balances retrieved", balances)
}

type updateUshersRequest struct {
	Add    []models.Member `json:"add"`
	Remove []string        `json:"remove"`
}

func (h *Handler) UpdateUshers(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req updateUshersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", err)
		return
	}

	if err := h.Service.UpdateUshers(r.Context(), auth.UserID(r.Context()), eventID, req.Add, req.Remove); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateUshers: event=%s: %v", eventID, err))
		utils.WriteError(w, "Usher update rejected", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ushers updated", nil)
}

func (h *Handler) ClaimProceeds(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	transfers, err := h.Service.ClaimProceeds(r.Context(), auth.UserID(r.Context()), eventID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ClaimProceeds: event=%s: %v", eventID, err))
		utils.WriteError(w, "Proceeds claim rejected", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Proceeds claimed", transfers)
}
