package handler

import (
	"net/http"
	"strconv"

	"rentdesk/internal/service"
)

// EventHandler exposes the security event log to administrators.
type EventHandler struct {
	events *service.EventService
}

func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.events.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, events)
}
