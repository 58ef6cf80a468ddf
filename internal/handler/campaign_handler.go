// Package handler serves the recipient-facing and provider-facing endpoints
// and the event stream.
package handler

import (
	"net/http"
	"net/url"

	"github.com/unclebandit/campaign-mailer/internal/controller"
	"github.com/unclebandit/campaign-mailer/internal/service"
)

// CampaignHandler holds the dependencies for tracking, suppression and webhook handlers.
type CampaignHandler struct {
	Service *service.CampaignService
}

func NewCampaignHandler(svc *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{Service: svc}
}

// 1x1 transparent GIF
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00,
	0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackOpen handles GET /track/open/{recipientID}. The pixel is served even
// when the open is not recorded.
func (h *CampaignHandler) TrackOpen(w http.ResponseWriter, r *http.Request) {
	id, err := controller.IDParam(r, "recipientID")
	if err != nil {
		controller.WriteError(w, r, err)
		return
	}
	if _, err := h.Service.TrackOpen(r.Context(), id); err != nil {
		controller.WriteError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(pixel)
}

// TrackClick handles GET /track/click/{recipientID}?url=... and redirects
// to url when it is an absolute http(s) link.
func (h *CampaignHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	id, err := controller.IDParam(r, "recipientID")
	if err != nil {
		controller.WriteError(w, r, err)
		return
	}
	if _, err := h.Service.TrackClick(r.Context(), id); err != nil {
		controller.WriteError(w, r, err)
		return
	}
	if target, ok := redirectTarget(r.URL.Query().Get("url")); ok {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func redirectTarget(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// Unsubscribe handles POST /unsubscribe/{recipientID}.
func (h *CampaignHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := controller.IDParam(r, "recipientID")
	if err != nil {
		controller.WriteError(w, r, err)
		return
	}
	if err := h.Service.Unsubscribe(r.Context(), id); err != nil {
		controller.WriteError(w, r, err)
		return
	}
	controller.WriteJSON(w, http.StatusOK, map[string]any{
		"recipient_id": id,
		"status":       "unsubscribed",
	})
}

func (h *CampaignHandler) DeliveryFailure(w http.ResponseWriter, r *http.Request) {
	var body service.DeliveryFailure
	if err := controller.Decode(r, &body); err != nil {
		controller.WriteError(w, r, err)
		return
	}
	if err := h.Service.HandleDeliveryFailure(r.Context(), body); err != nil {
		controller.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *CampaignHandler) Inbound(w http.ResponseWriter, r *http.Request) {
	var body service.InboundMessage
	if err := controller.Decode(r, &body); err != nil {
		controller.WriteError(w, r, err)
		return
	}
	if err := h.Service.Inbound(r.Context(), body); err != nil {
		controller.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
