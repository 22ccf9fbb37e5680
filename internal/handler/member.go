package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/lineage/internal/auth"
	"github.com/dukerupert/lineage/internal/family"
	"github.com/dukerupert/lineage/internal/metrics"
	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/store"
	ws "github.com/dukerupert/lineage/internal/websocket"
)

// TreeConfig holds the tunables of the family tree endpoints.
type TreeConfig struct {
	ParentRoles       []string
	BirthdayWindow    int
	MaxBirthdayWindow int
}

type MemberHandler struct {
	members  *store.MemberStore
	families *store.FamilyStore
	hub      *ws.Hub
	cfg      TreeConfig
	now      func() time.Time
	logger   *slog.Logger
}

func NewMemberHandler(ms *store.MemberStore, fs *store.FamilyStore, hub *ws.Hub, cfg TreeConfig, logger *slog.Logger) *MemberHandler {
	if cfg.BirthdayWindow <= 0 {
		cfg.BirthdayWindow = family.DefaultBirthdayWindow
	}
	if cfg.MaxBirthdayWindow <= 0 {
		cfg.MaxBirthdayWindow = 366
	}
	return &MemberHandler{members: ms, families: fs, hub: hub, cfg: cfg, now: time.Now, logger: logger}
}

type memberRequest struct {
	FirstName string      `json:"first_name" validate:"required,max=100"`
	LastName  string      `json:"last_name" validate:"max=100"`
	BirthDate *model.Date `json:"birth_date"`
	Gender    string      `json:"gender" validate:"max=20"`
	Role      string      `json:"role" validate:"max=50"`
	ParentID  *int64      `json:"parent_id" validate:"omitempty,gt=0"`
	Email     string      `json:"email" validate:"omitempty,email"`
	Phone     string      `json:"phone" validate:"max=30"`
	Address   string      `json:"address" validate:"max=255"`
	PhotoURL  string      `json:"photo_url" validate:"max=2048"`
}

// apply copies the profile fields onto m. Role is left to applyRole.
func (req memberRequest) apply(m *model.Member) {
	m.FirstName = strings.TrimSpace(req.FirstName)
	m.LastName = strings.TrimSpace(req.LastName)
	m.BirthDate = req.BirthDate
	m.Gender = req.Gender
	m.Email = req.Email
	m.Phone = req.Phone
	m.Address = req.Address
	m.PhotoURL = req.PhotoURL
}

// applyRole sets m.Role from the request. Only administrators may change a
// role; anyone else gets false unless the request leaves it as it is.
func (req memberRequest) applyRole(r *http.Request, m *model.Member) bool {
	role := strings.TrimSpace(req.Role)
	if role == "" || role == m.Role {
		return true
	}
	if !auth.IsAdmin(r.Context()) {
		return false
	}
	m.Role = role
	return true
}

// snapshot loads the family named in the path. It writes the error response
// itself and reports false when the request cannot continue.
func (h *MemberHandler) snapshot(w http.ResponseWriter, r *http.Request) (*family.Snapshot, int64, bool) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid family id")
		return nil, 0, false
	}
	f, err := h.families.GetByID(familyID)
	if err != nil {
		writeError(w, h.logger, "get family", err)
		return nil, 0, false
	}
	if f == nil {
		writeMessage(w, http.StatusNotFound, "family not found")
		return nil, 0, false
	}
	snap, err := h.members.Snapshot(familyID)
	if err != nil {
		writeError(w, h.logger, "load family", err)
		return nil, 0, false
	}
	return snap, familyID, true
}

// member resolves the {id} path value inside snap.
func (h *MemberHandler) member(w http.ResponseWriter, r *http.Request, snap *family.Snapshot) (model.Member, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return model.Member{}, false
	}
	m, ok := snap.Member(id)
	if !ok {
		writeError(w, h.logger, "get member", family.ErrNotFound)
		return model.Member{}, false
	}
	return m, true
}

func nonNil(members []model.Member) []model.Member {
	if members == nil {
		return []model.Member{}
	}
	return members
}

// List handles GET /api/families/{family_id}/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(snap.Members()))
}

// Get handles GET /api/families/{family_id}/members/{id}
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	m, ok := h.member(w, r, snap)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Create handles POST /api/families/{family_id}/members. Administrators may
// place the new member anywhere; other members may only add their own
// children, and only when their role allows it.
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	snap, familyID, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	if !auth.IsAdmin(r.Context()) {
		ac, _ := auth.FromContext(r.Context())
		actor, found := snap.Member(ac.MemberID)
		if !found || req.ParentID == nil || *req.ParentID != actor.ID || !family.CanAddChildren(actor.Role, h.cfg.ParentRoles) {
			writeMessage(w, http.StatusForbidden, "you may only add your own children")
			return
		}
	}

	m := model.Member{FamilyID: familyID, ParentID: req.ParentID, Role: model.DefaultRole}
	req.apply(&m)
	if !req.applyRole(r, &m) {
		writeMessage(w, http.StatusForbidden, "only administrators may assign roles")
		return
	}

	created, err := h.members.Create(m)
	if err != nil {
		writeError(w, h.logger, "create member", err)
		return
	}

	h.hub.Broadcast(ws.NewMessage("member", "created", familyID, created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

// Update handles PUT /api/families/{family_id}/members/{id}. The parent link
// is not touched here; see Reparent.
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	snap, familyID, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	target, ok := h.member(w, r, snap)
	if !ok {
		return
	}

	if !auth.IsAdmin(r.Context()) {
		ac, _ := auth.FromContext(r.Context())
		actor, found := snap.Member(ac.MemberID)
		if !found || (actor.ID != target.ID && !family.CanEditMember(actor, target)) {
			writeMessage(w, http.StatusForbidden, "you may only edit yourself and your children")
			return
		}
	}

	var req memberRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	req.apply(&target)
	if !req.applyRole(r, &target) {
		writeMessage(w, http.StatusForbidden, "only administrators may assign roles")
		return
	}

	updated, err := h.members.Update(target)
	if err != nil {
		writeError(w, h.logger, "update member", err)
		return
	}
	h.hub.Broadcast(ws.NewMessage("member", "updated", familyID, updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// Hierarchy handles GET /api/families/{family_id}/hierarchy
func (h *MemberHandler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Hierarchy())
}

// Ancestors handles GET /api/families/{family_id}/members/{id}/ancestors
func (h *MemberHandler) Ancestors(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	m, ok := h.member(w, r, snap)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nonNil(snap.AncestorChain(m.ID)))
}

// Descendants handles GET /api/families/{family_id}/members/{id}/descendants
func (h *MemberHandler) Descendants(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	m, ok := h.member(w, r, snap)
	if !ok {
		return
	}
	var out []model.Member
	for _, id := range snap.Descendants(m.ID).Sorted() {
		d, _ := snap.Member(id)
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, nonNil(out))
}

// PotentialParents handles GET /api/families/{family_id}/members/{id}/potential-parents
func (h *MemberHandler) PotentialParents(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	m, ok := h.member(w, r, snap)
	if !ok {
		return
	}
	parents, err := snap.PotentialParents(m.ID)
	if err != nil {
		writeError(w, h.logger, "potential parents", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(parents))
}

type deletionPlanResponse struct {
	family.DeletionPlan
	Members []model.Member `json:"members"`
}

// DeletionPlan handles GET /api/families/{family_id}/members/{id}/deletion-plan.
// It previews what DELETE would remove.
func (h *MemberHandler) DeletionPlan(w http.ResponseWriter, r *http.Request) {
	snap, _, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	m, ok := h.member(w, r, snap)
	if !ok {
		return
	}
	plan, err := snap.PlanDeletion(m.ID)
	if err != nil {
		writeError(w, h.logger, "plan deletion", err)
		return
	}
	resp := deletionPlanResponse{DeletionPlan: plan}
	for _, id := range plan.Order {
		d, _ := snap.Member(id)
		resp.Members = append(resp.Members, d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reparent handles PUT /api/families/{family_id}/members/{id}/parent with
// {"parent_id": <id or null>}.
func (h *MemberHandler) Reparent(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid family id")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		ParentID *int64 `json:"parent_id" validate:"omitempty,gt=0"`
	}
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.members.ApplyReparent(familyID, id, req.ParentID); err != nil {
		metrics.TreeRejections.WithLabelValues("reparent", string(family.KindOf(err))).Inc()
		writeError(w, h.logger, "reparent", err)
		return
	}

	updated, err := h.members.GetByID(id)
	if err != nil {
		writeError(w, h.logger, "get member", err)
		return
	}
	h.hub.Broadcast(ws.NewMessage("member", "reparented", familyID, id, map[string]any{"parent_id": req.ParentID}))
	h.logger.Info("member reparented", "family_id", familyID, "member_id", id, "parent_id", req.ParentID)
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/families/{family_id}/members/{id}. The member
// and every descendant are removed, deepest first.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	familyID, err := parseFamilyID(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid family id")
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	plan, err := h.members.DeleteSubtree(familyID, id)
	if err != nil {
		metrics.TreeRejections.WithLabelValues("delete", string(family.KindOf(err))).Inc()
		writeError(w, h.logger, "delete member", err)
		return
	}

	metrics.MembersDeleted.Add(float64(plan.Count))
	h.hub.Broadcast(ws.NewMessage("member", "deleted", familyID, id, map[string]any{"ids": plan.Order}))
	h.logger.Info("members deleted", "family_id", familyID, "member_id", id, "count", plan.Count)
	writeJSON(w, http.StatusOK, plan)
}

type birthdayResponse struct {
	family.UpcomingBirthday
	Name string `json:"name"`
}

// Birthdays handles GET /api/families/{family_id}/birthdays?days=N
func (h *MemberHandler) Birthdays(w http.ResponseWriter, r *http.Request) {
	days := h.cfg.BirthdayWindow
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > h.cfg.MaxBirthdayWindow {
			writeMessage(w, http.StatusBadRequest, "days must be between 0 and "+strconv.Itoa(h.cfg.MaxBirthdayWindow))
			return
		}
		days = n
	}

	snap, _, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	out := []birthdayResponse{}
	for _, b := range snap.UpcomingBirthdays(family.Today(h.now()), days) {
		m, _ := snap.Member(b.MemberID)
		out = append(out, birthdayResponse{UpcomingBirthday: b, Name: m.FullName()})
	}
	writeJSON(w, http.StatusOK, out)
}
