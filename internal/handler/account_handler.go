package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rentdesk/internal/model"
	"rentdesk/internal/service"
	"rentdesk/pkg/apierror"
)

type AccountHandler struct {
	service *service.AccountService
}

func NewAccountHandler(service *service.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// ChangeRole applies a role transition. The orchestrator revokes every
// session of the subject before this returns, so the old-role tokens are
// dead by the time the caller sees success.
func (h *AccountHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if userID == "" {
		writeError(w, apierror.New("BAD_REQUEST", "user_id is required", "", http.StatusBadRequest))
		return
	}

	var payload model.ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	user, err := h.service.ChangeRole(r.Context(), userID, strings.ToLower(strings.TrimSpace(payload.Role)))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}
