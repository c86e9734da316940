package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/promptdeck/prism/internal/fault"
	"github.com/promptdeck/prism/internal/httputil"
	"github.com/promptdeck/prism/internal/provider"
	"github.com/promptdeck/prism/internal/session"
	"github.com/promptdeck/prism/internal/types"
)

// streamChunk is one SSE data payload sent to the client.
type streamChunk struct {
	Delta string `json:"delta,omitempty"`
	Done  bool   `json:"done,omitempty"`

	// Set on the final chunk only.
	SessionID        string       `json:"session_id,omitempty"`
	Usage            *types.Usage `json:"usage,omitempty"`
	EstimatedCostUSD float64      `json:"estimated_cost_usd,omitempty"`

	// Set when the provider fails mid-stream. Deltas already delivered
	// stay with the client.
	Error string `json:"error,omitempty"`
}

// handleChatStream relays incremental chat output to the client as SSE.
// The session window is only updated after the stream completes cleanly.
func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request, reqID string, req chatRequest, spec *types.RequestSpec, client provider.Client, sess *session.Session, receivedAt time.Time) {
	streamer, ok := client.(provider.StreamClient)
	if !ok {
		httputil.WriteBadRequestError(w, reqID, "Model does not support streaming")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, reqID, "Streaming not supported")
		return
	}

	spec.Stream = true
	stream, err := streamer.Stream(r.Context(), spec)
	if err != nil {
		h.writeProviderFault(w, reqID, client.Name(), req.Model, types.OpChat, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Request-ID", reqID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var full string
	var streamErr error
	for ev := range stream.Events() {
		switch {
		case ev.Err != nil:
			streamErr = ev.Err
			writeSSE(w, flusher, streamChunk{Error: providerFaultMessage(fault.Classify(ev.Err))})
		case ev.Done:
			// Final chunk follows after the loop, once usage is valid.
		case ev.Delta != "":
			full += ev.Delta
			writeSSE(w, flusher, streamChunk{Delta: ev.Delta})
		}
	}

	if streamErr != nil {
		kind := fault.Classify(streamErr)
		slog.Error("stream failed",
			"request_id", reqID,
			"provider", client.Name(),
			"kind", string(kind),
			"delivered_chars", len(full),
			"error", streamErr,
		)
		if kind == fault.ConnectionFailed || kind == fault.ProviderError {
			h.health.RecordFailure(client.Name())
		}
		if h.metrics != nil {
			h.metrics.RecordProviderFault(client.Name(), string(kind))
		}
		fmt.Fprintf(w, "data: [DONE]\n\n")
		flusher.Flush()
		return
	}

	h.health.RecordSuccess(client.Name())

	usage := stream.Usage()
	cost := h.normalizer.EstimateCost(stream.Model(), usage)

	sess.Window.AppendExchange(req.Message, full)
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		slog.Error("session save failed", "request_id", reqID, "session_id", sess.ID, "error", err)
	}
	h.recordSpend(r, sess.ID, cost)

	h.finishRequest(reqID, req.Model, types.OpChat, &types.Result{
		Kind:             types.KindText,
		Text:             full,
		Provider:         client.Name(),
		Model:            stream.Model(),
		Usage:            usage,
		EstimatedCostUSD: cost,
	}, receivedAt)

	writeSSE(w, flusher, streamChunk{
		Done:             true,
		SessionID:        sess.ID,
		Usage:            &usage,
		EstimatedCostUSD: cost,
	})
	fmt.Fprintf(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, chunk streamChunk) {
	raw, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", raw)
	flusher.Flush()
}
