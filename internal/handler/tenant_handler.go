package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"rentdesk/internal/middleware"
	"rentdesk/internal/model"
	"rentdesk/internal/service"
	"rentdesk/pkg/apierror"
)

// TenantHandler serves tenant profile reads and writes. The sensitive fields
// are encrypted at the repository boundary; by the time a profile reaches
// this layer it holds plaintext, or nil where the ciphertext was unreadable.
type TenantHandler struct {
	tenants service.TenantProfileStore
}

func NewTenantHandler(tenants service.TenantProfileStore) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// Get returns a tenant profile. Tenants only see their own record; managers
// and admins can read any.
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if !h.authorize(r, userID) {
		writeError(w, model.ErrForbidden)
		return
	}

	profile, err := h.tenants.FindByUserID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile)
}

func (h *TenantHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
	if !h.authorize(r, userID) {
		writeError(w, model.ErrForbidden)
		return
	}

	var payload model.TenantUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.New("BAD_REQUEST", "invalid JSON body", "", http.StatusBadRequest))
		return
	}

	profile := model.TenantProfile{
		UserID:      userID,
		FullName:    strings.TrimSpace(payload.FullName),
		Notes:       payload.Notes,
		BankAccount: payload.BankAccount,
	}

	if err := h.tenants.Upsert(r.Context(), profile); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"updated": true})
}

func (h *TenantHandler) authorize(r *http.Request, userID string) bool {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok || userID == "" {
		return false
	}

	switch claims.Role {
	case model.RoleAdmin, model.RoleManager:
		return true
	case model.RoleTenant:
		return claims.UserID == userID
	}
	return false
}
