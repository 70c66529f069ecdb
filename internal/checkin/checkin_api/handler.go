package checkin_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"ms-ledger/internal/auth"
	"ms-ledger/internal/checkin/qr"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/utils"

	"github.com/go-chi/chi/v5"
)

type CheckInService interface {
	CheckIn(ctx context.Context, usher, eventID string, claim models.CheckInClaim) (*models.CheckInResult, error)
	Attendance(ctx context.Context, eventID, ticket string, segmentID uint64) (*models.AttendanceStatus, error)
	TicketAttendance(ctx context.Context, eventID, ticket string) ([]models.AttendanceStatus, error)
}

type Handler struct {
	Service     CheckInService
	QRGenerator *qr.Generator
	Logger      *logger.Logger
}

func NewHandler(service CheckInService, log *logger.Logger) *Handler {
	return &Handler{
		Service:     service,
		QRGenerator: qr.NewGenerator(),
		Logger:      log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/events/{eventID}/checkins", h.CheckIn)
	r.Post("/events/{eventID}/checkins/scan", h.Scan)
	r.Get("/events/{eventID}/attendance/{ticket}", h.Attendance)
	r.Post("/events/{eventID}/claims/qr", h.ClaimQR)
}

// CheckIn marks attendance for a claim presented to the calling usher.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var claim models.CheckInClaim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckIn: failed to decode request body: %v", err))
		utils.WriteBadRequest(w, "Invalid request body", err)
		return
	}
	h.checkIn(w, r, claim)
}

// Scan accepts the raw text read from a claim QR code.
// Expected POST request body: {"qr": "<scanned text>"}
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QR string `json:"qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", err)
		return
	}

	claim, err := qr.ParsePayload(body.QR)
	if err != nil {
		utils.WriteError(w, "Unreadable claim", err)
		return
	}
	h.checkIn(w, r, claim)
}

func (h *Handler) checkIn(w http.ResponseWriter, r *http.Request, claim models.CheckInClaim) {
	eventID := chi.URLParam(r, "eventID")
	usher := auth.UserID(r.Context())

	result, err := h.Service.CheckIn(r.Context(), usher, eventID, claim)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CheckIn: event=%s ticket=%s usher=%s: %v", eventID, claim.TicketAddress, usher, err))
		utils.WriteError(w, "Check-in rejected", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Guest checked in", result)
}

// Attendance returns one segment status with ?segment=N, or every segment.
func (h *Handler) Attendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	ticket := chi.URLParam(r, "ticket")

	if raw := r.URL.Query().Get("segment"); raw != "" {
		segmentID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			utils.WriteBadRequest(w, "Invalid segment id", err)
			return
		}
		status, err := h.Service.Attendance(r.Context(), eventID, ticket, segmentID)
		if err != nil {
			utils.WriteError(w, "Attendance lookup failed", err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, "Attendance retrieved", status)
		return
	}

	statuses, err := h.Service.TicketAttendance(r.Context(), eventID, ticket)
	if err != nil {
		utils.WriteError(w, "Attendance lookup failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Attendance retrieved", statuses)
}

// ClaimQR renders a signed claim as a PNG for the guest to present.
func (h *Handler) ClaimQR(w http.ResponseWriter, r *http.Request) {
	var claim models.CheckInClaim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		utils.WriteBadRequest(w, "Invalid request body", err)
		return
	}

	png, err := h.QRGenerator.PNG(claim)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ClaimQR: failed to render: %v", err))
		utils.WriteError(w, "QR rendering failed", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ClaimQR: failed to write response: %v", err))
	}
}
