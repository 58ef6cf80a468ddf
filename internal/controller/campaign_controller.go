// Package controller serves the campaign command and status endpoints.
package controller

import (
	"net/http"

	"github.com/unclebandit/campaign-mailer/internal/model"
	"github.com/unclebandit/campaign-mailer/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) campaignCommand(w http.ResponseWriter, r *http.Request, run func(*http.Request, int64) error, status string) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if err := run(r, id); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{
		"campaign_id": id,
		"status":      status,
	})
}

// SendCampaign handles POST /campaigns/{id}/send.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	c.campaignCommand(w, r, func(r *http.Request, id int64) error {
		return c.CampaignService.EnqueueCampaign(r.Context(), id)
	}, "queued")
}

func (c *CampaignController) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	c.campaignCommand(w, r, func(r *http.Request, id int64) error {
		return c.CampaignService.PauseCampaign(r.Context(), id)
	}, string(model.CampaignPaused))
}

func (c *CampaignController) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	c.campaignCommand(w, r, func(r *http.Request, id int64) error {
		return c.CampaignService.ResumeCampaign(r.Context(), id)
	}, "queued")
}

func (c *CampaignController) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	id, err := IDParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	stats, err := c.CampaignService.GetCampaignStats(r.Context(), id)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"campaign_id": id,
		"stats":       stats,
	})
}

func (c *CampaignController) GetQueueStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, c.CampaignService.GetQueueStatus())
}

// SendDirect handles POST /send. A delivery failure is reported as 502.
func (c *CampaignController) SendDirect(w http.ResponseWriter, r *http.Request) {
	var body service.DirectSendRequest
	if err := Decode(r, &body); err != nil {
		WriteError(w, r, err)
		return
	}
	out, err := c.CampaignService.SendDirect(r.Context(), body)
	if err != nil {
		if out.Reason == model.ReasonSendFailed {
			WriteJSON(w, http.StatusBadGateway, map[string]any{
				"error":      out.Reason,
				"account_id": out.AccountID,
			})
			return
		}
		WriteError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"sent":       true,
		"account_id": out.AccountID,
	})
}

// BlockAddress handles POST /blocklist.
func (c *CampaignController) BlockAddress(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string `json:"address"`
		Reason  string `json:"reason"`
	}
	if err := Decode(r, &body); err != nil {
		WriteError(w, r, err)
		return
	}
	if err := c.CampaignService.BlockAddress(r.Context(), body.Address, body.Reason); err != nil {
		WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
