package checkin_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ms-ledger/internal/auth"
	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"
	"ms-ledger/internal/sse"
	"ms-ledger/internal/utils"

	"github.com/go-chi/chi/v5"
)

// UsherChecker reports usher membership for an event.
type UsherChecker interface {
	IsUsher(ctx context.Context, eventID, addr string) (bool, error)
}

// SSEHandler streams live check-ins of an event to its ushers.
type SSEHandler struct {
	Logger  *logger.Logger
	Emitter *sse.AttendanceEmitter
	Ushers  UsherChecker
}

func NewSSEHandler(log *logger.Logger, emitter *sse.AttendanceEmitter, ushers UsherChecker) *SSEHandler {
	return &SSEHandler{Logger: log, Emitter: emitter, Ushers: ushers}
}

func (h *SSEHandler) RegisterRoutes(r chi.Router) {
	r.Get("/events/{eventID}/checkins/stream", h.HandleEventCheckIns)
}

func (h *SSEHandler) HandleEventCheckIns(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	caller := auth.UserID(r.Context())

	ok, err := h.Ushers.IsUsher(r.Context(), eventID, caller)
	if err != nil {
		utils.WriteError(w, "Event lookup failed", err)
		return
	}
	if !ok {
		h.Logger.LogSecurity("SSE", fmt.Sprintf("%s denied check-in stream of %s", caller, eventID))
		utils.WriteError(w, "Unauthorized access", models.ErrNotAnUsher)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h.setupSSEHeaders(w)
	ctx := r.Context()
	events := h.Emitter.Subscribe(ctx, eventID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"eventID\":%q}\n\n", eventID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Usher %s connected to check-ins of %s", caller, eventID))

	for {
		select {
		case result, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(result)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize check-in: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: checkin\ndata: %s\n\n", data)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Usher %s disconnected from %s", caller, eventID))
			return
		}
	}
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
