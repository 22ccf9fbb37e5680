package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dukerupert/lineage/internal/auth"
	"github.com/dukerupert/lineage/internal/model"
	"github.com/dukerupert/lineage/internal/push"
	"github.com/dukerupert/lineage/internal/store"
)

// PushService is the part of push.Service the handler needs.
type PushService interface {
	push.Sender
	VAPIDPublicKey() string
}

type PushHandler struct {
	pushStore *store.PushStore
	service   PushService
	logger    *slog.Logger
}

func NewPushHandler(ps *store.PushStore, svc PushService, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint" validate:"required,url"`
	P256dh     string `json:"p256dh" validate:"required"`
	Auth       string `json:"auth" validate:"required"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

// Subscribe handles POST /api/push/subscribe
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if ac.FamilyID == 0 {
		writeMessage(w, http.StatusBadRequest, "only family members can subscribe to notifications")
		return
	}

	var req subscribeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	sub, err := h.pushStore.CreateSubscription(ac.AccountID, ac.FamilyID, req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}

	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.pushStore.DeleteSubscription(id, auth.AccountID(r.Context())); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeMessage(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByAccount(auth.AccountID(r.Context()))
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// GetVAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) GetVAPIDKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// TestNotification handles POST /api/push/test
func (h *PushHandler) TestNotification(w http.ResponseWriter, r *http.Request) {
	subs, err := h.pushStore.ListByAccount(auth.AccountID(r.Context()))
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	payload := push.Payload{
		Title: "Test Notification",
		Body:  "Push notifications are working!",
		URL:   "/",
		Tag:   "test",
	}

	sent := 0
	for _, sub := range subs {
		if err := h.service.Send(&sub, payload); err != nil {
			if errors.Is(err, push.ErrExpired) {
				h.pushStore.DeleteByEndpoint(sub.Endpoint)
				continue
			}
			h.logger.Error("test push send", "error", err)
			continue
		}
		sent++
	}

	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
