package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/lineage/internal/auth"
	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/store"
	ws "github.com/dukerupert/lineage/internal/websocket"
)

// FamilyHandler serves the administrator's family management routes.
type FamilyHandler struct {
	families *store.FamilyStore
	hub      *ws.Hub
	logger   *slog.Logger
}

func NewFamilyHandler(fs *store.FamilyStore, hub *ws.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: fs, hub: hub, logger: logger}
}

// List handles GET /api/families
func (h *FamilyHandler) List(w http.ResponseWriter, r *http.Request) {
	families, err := h.families.List()
	if err != nil {
		writeError(w, h.logger, "list families", err)
		return
	}
	if families == nil {
		families = []model.FamilySummary{}
	}
	writeJSON(w, http.StatusOK, families)
}

type createFamilyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Create handles POST /api/families
func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFamilyRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	}

	accountID := auth.AccountID(r.Context())
	f, err := h.families.Create(name, &accountID)
	if err != nil {
		writeError(w, h.logger, "create family", err)
		return
	}
	h.logger.Info("family created", "family_id", f.ID, "slug", f.Slug)
	writeJSON(w, http.StatusCreated, f)
}

// Delete handles DELETE /api/families/{family_id}. Members, their accounts
// and the family go in one transaction.
func (h *FamilyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid family id")
		return
	}
	ok, err := h.families.Exists(familyID)
	if err != nil {
		writeError(w, h.logger, "get family", err)
		return
	}
	if !ok {
		writeMessage(w, http.StatusNotFound, "family not found")
		return
	}

	if err := h.families.Delete(familyID); err != nil {
		writeError(w, h.logger, "delete family", err)
		return
	}
	h.hub.Broadcast(ws.NewMessage("family", "deleted", familyID, familyID, nil))
	h.logger.Info("family deleted", "family_id", familyID)
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/stats
func (h *FamilyHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.families.Statistics()
	if err != nil {
		writeError(w, h.logger, "statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AccountHandler manages login accounts. Administrators only.
type AccountHandler struct {
	accounts *store.AccountStore
	members  *store.MemberStore
	logger   *slog.Logger
}

func NewAccountHandler(as *store.AccountStore, ms *store.MemberStore, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: as, members: ms, logger: logger}
}

type createAccountRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	UserType string `json:"user_type" validate:"omitempty,oneof=admin member"`
	MemberID *int64 `json:"member_id" validate:"omitempty,gt=0"`
}

// Create handles POST /api/accounts. A member account is tied to a member
// and takes its family from it.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	na := store.NewAccount{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		UserType: req.UserType,
	}
	if na.UserType == "" {
		na.UserType = model.UserTypeMember
	}

	if na.UserType == model.UserTypeMember {
		if req.MemberID == nil {
			writeMessage(w, http.StatusBadRequest, "member_id is required for member accounts")
			return
		}
		m, err := h.members.GetByID(*req.MemberID)
		if err != nil {
			writeError(w, h.logger, "get member", err)
			return
		}
		if m == nil {
			writeMessage(w, http.StatusNotFound, "member not found")
			return
		}
		na.MemberID = &m.ID
		na.FamilyID = &m.FamilyID
	}

	existing, err := h.accounts.GetByUsername(na.Username)
	if err != nil {
		writeError(w, h.logger, "get account", err)
		return
	}
	if existing != nil {
		writeMessage(w, http.StatusConflict, "username already taken")
		return
	}

	acct, err := h.accounts.Create(na)
	if err != nil {
		writeError(w, h.logger, "create account", err)
		return
	}
	h.logger.Info("account created", "account_id", acct.ID, "user_type", acct.UserType)
	writeJSON(w, http.StatusCreated, acct)
}

// ListByFamily handles GET /api/families/{family_id}/accounts
func (h *AccountHandler) ListByFamily(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid family id")
		return
	}
	accounts, err := h.accounts.ListByFamily(familyID)
	if err != nil {
		writeError(w, h.logger, "list accounts", err)
		return
	}
	if accounts == nil {
		accounts = []model.Account{}
	}
	writeJSON(w, http.StatusOK, accounts)
}

// Unblock handles POST /api/accounts/{id}/unblock
func (h *AccountHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	acct, err := h.accounts.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get account", err)
		return
	}
	if acct == nil {
		writeMessage(w, http.StatusNotFound, "account not found")
		return
	}
	if err := h.accounts.Unblock(id); err != nil {
		writeError(w, h.logger, "unblock account", err)
		return
	}
	h.logger.Info("account unblocked", "account_id", id)

	acct, err = h.accounts.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get account", err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}
