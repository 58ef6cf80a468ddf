package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/unclebandit/campaign-mailer/internal/logger"
)

// KeepAlive is the interval between comment lines on an idle stream.
var KeepAlive = 15 * time.Second

// Events handles GET /events as a server-sent event stream. The optional
// topics query parameter is a comma-separated filter.
func (h *CampaignHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var topics []string
	if q := r.URL.Query().Get("topics"); q != "" {
		for _, t := range strings.Split(q, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}
	sub := h.Service.SubscribeToEvents(topics...)
	defer sub.Close()

	log := logger.Component("sse")
	log.Debug().Str("subscription", sub.ID).Strs("topics", topics).Msg("stream opened")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(KeepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug().Str("subscription", sub.ID).Msg("stream closed")
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				log.Error().Err(err).Str("topic", ev.Topic).Msg("failed to encode event")
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Topic, data)
			flusher.Flush()
		}
	}
}
