package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unclebandit/campaign-mailer/internal/controller"
	"github.com/unclebandit/campaign-mailer/internal/logger"
)

// NewRouter wires every HTTP route. metrics may be nil.
func NewRouter(ctrl *controller.CampaignController, h *CampaignHandler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	// Campaign routes
	r.Post("/campaigns/{id}/send", ctrl.SendCampaign)
	r.Post("/campaigns/{id}/pause", ctrl.PauseCampaign)
	r.Post("/campaigns/{id}/resume", ctrl.ResumeCampaign)
	r.Get("/campaigns/{id}/stats", ctrl.GetCampaignStats)
	r.Get("/queue/status", ctrl.GetQueueStatus)
	r.Post("/send", ctrl.SendDirect)
	r.Post("/blocklist", ctrl.BlockAddress)

	r.Get("/events", h.Events)
	r.Get("/track/open/{recipientID}", h.TrackOpen)
	r.Get("/track/click/{recipientID}", h.TrackClick)
	r.Post("/unsubscribe/{recipientID}", h.Unsubscribe)
	r.Post("/webhooks/delivery-failure", h.DeliveryFailure)
	r.Post("/webhooks/inbound", h.Inbound)

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logger.Logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
