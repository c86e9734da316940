// Package gateway exposes the HTTP surface: request decoding, session
// bookkeeping, provider dispatch, and response shaping.
package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/promptdeck/prism/internal/archive"
	"github.com/promptdeck/prism/internal/config"
	"github.com/promptdeck/prism/internal/extract"
	"github.com/promptdeck/prism/internal/fault"
	"github.com/promptdeck/prism/internal/httputil"
	"github.com/promptdeck/prism/internal/normalize"
	"github.com/promptdeck/prism/internal/provider"
	"github.com/promptdeck/prism/internal/ratelimit"
	"github.com/promptdeck/prism/internal/request"
	"github.com/promptdeck/prism/internal/session"
	"github.com/promptdeck/prism/internal/telemetry"
	"github.com/promptdeck/prism/internal/types"
)

// Handler holds dependencies for the gateway HTTP handlers.
type Handler struct {
	registry   *provider.Registry
	health     *provider.HealthTracker
	modelsCfg  func() *config.ModelsConfig
	cfg        func() *config.Config
	sessions   *session.Manager
	normalizer *normalize.Normalizer
	limiter    *ratelimit.Limiter
	spend      *ratelimit.SpendTracker
	inflight   *ratelimit.InflightGate
	posts      *archive.Archive
	extractor  *extract.Extractor
	metrics    *telemetry.Metrics
}

type HandlerOptions struct {
	Registry   *provider.Registry
	Health     *provider.HealthTracker
	ModelsCfg  func() *config.ModelsConfig
	Cfg        func() *config.Config
	Sessions   *session.Manager
	Normalizer *normalize.Normalizer
	Limiter    *ratelimit.Limiter
	Spend      *ratelimit.SpendTracker
	Posts      *archive.Archive
	Extractor  *extract.Extractor
	Metrics    *telemetry.Metrics
}

func NewHandler(opts HandlerOptions) *Handler {
	return &Handler{
		registry:   opts.Registry,
		health:     opts.Health,
		modelsCfg:  opts.ModelsCfg,
		cfg:        opts.Cfg,
		sessions:   opts.Sessions,
		normalizer: opts.Normalizer,
		limiter:    opts.Limiter,
		spend:      opts.Spend,
		inflight:   ratelimit.NewInflightGate(),
		posts:      opts.Posts,
		extractor:  opts.Extractor,
		metrics:    opts.Metrics,
	}
}

type chatRequest struct {
	SessionID   string   `json:"session_id"`
	Persona     string   `json:"persona"`
	Message     string   `json:"message"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

type chatResponse struct {
	SessionID        string      `json:"session_id"`
	Text             string      `json:"text"`
	Model            string      `json:"model"`
	Provider         string      `json:"provider"`
	Usage            types.Usage `json:"usage"`
	EstimatedCostUSD float64     `json:"estimated_cost_usd"`
}

// Chat handles POST /v1/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	if req.Message == "" {
		httputil.WriteBadRequestError(w, reqID, "message is required")
		return
	}
	if req.Model == "" {
		httputil.WriteBadRequestError(w, reqID, "model is required")
		return
	}
	persona, ok := request.ParsePersona(req.Persona)
	if !ok {
		httputil.WriteBadRequestError(w, reqID, "unknown persona: "+req.Persona)
		return
	}

	sess, err := h.sessions.GetOrCreate(r.Context(), req.SessionID)
	if err != nil {
		slog.Error("session load failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load session")
		return
	}

	// One turn at a time per conversation. A second request while a
	// provider call is in flight is rejected, not queued.
	if !h.inflight.TryAcquire(sess.ID) {
		httputil.WriteRateLimitError(w, reqID, "A request for this session is already in flight")
		return
	}
	defer h.inflight.Release(sess.ID)

	if !h.admit(w, r, reqID, sess.ID) {
		return
	}

	client, providerModel, err := h.resolve(w, reqID, req.Model, types.OpChat)
	if err != nil {
		return
	}

	opts := types.Options{Model: providerModel, Temperature: req.Temperature, MaxTokens: req.MaxTokens}
	spec, err := request.Chat(client.Name(), persona, sess.Window.Snapshot(), req.Message, opts)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	spec.RequestID = reqID
	spec.SessionID = sess.ID

	if req.Stream {
		h.handleChatStream(w, r, reqID, req, spec, client, sess, receivedAt)
		return
	}

	res, err := client.Invoke(r.Context(), spec)
	if err != nil {
		h.writeProviderFault(w, reqID, client.Name(), req.Model, types.OpChat, err)
		return
	}
	h.health.RecordSuccess(client.Name())
	h.normalizer.Apply(res)

	// The window only grows on success; a failed turn leaves it untouched.
	sess.Window.AppendExchange(req.Message, res.Text)
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		slog.Error("session save failed", "request_id", reqID, "session_id", sess.ID, "error", err)
	}
	h.recordSpend(r, sess.ID, res.EstimatedCostUSD)

	h.finishRequest(reqID, req.Model, types.OpChat, res, receivedAt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResponse{
		SessionID:        sess.ID,
		Text:             res.Text,
		Model:            req.Model,
		Provider:         res.Provider,
		Usage:            res.Usage,
		EstimatedCostUSD: res.EstimatedCostUSD,
	})
}

type imageRequest struct {
	Prompt  string `json:"prompt"`
	Model   string `json:"model"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

// Images handles POST /v1/images. The generated image is returned as the
// raw response body; cost and usage travel in headers.
func (h *Handler) Images(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	var req imageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	if req.Prompt == "" {
		httputil.WriteBadRequestError(w, reqID, "prompt is required")
		return
	}
	if req.Model == "" {
		httputil.WriteBadRequestError(w, reqID, "model is required")
		return
	}

	client, providerModel, err := h.resolve(w, reqID, req.Model, types.OpImage)
	if err != nil {
		return
	}

	opts := types.Options{Model: providerModel, Size: req.Size, Quality: req.Quality, Style: req.Style}
	spec, err := request.Image(client.Name(), req.Prompt, opts)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	spec.RequestID = reqID

	res, err := client.Invoke(r.Context(), spec)
	if err != nil {
		h.writeProviderFault(w, reqID, client.Name(), req.Model, types.OpImage, err)
		return
	}
	h.health.RecordSuccess(client.Name())
	h.normalizer.Apply(res)
	h.finishRequest(reqID, req.Model, types.OpImage, res, receivedAt)

	h.writeBinary(w, res)
}

type speechRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
	Voice string `json:"voice,omitempty"`
}

// Speech handles POST /v1/speech.
func (h *Handler) Speech(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	if req.Input == "" {
		httputil.WriteBadRequestError(w, reqID, "input is required")
		return
	}
	if req.Model == "" {
		httputil.WriteBadRequestError(w, reqID, "model is required")
		return
	}

	client, providerModel, err := h.resolve(w, reqID, req.Model, types.OpSpeech)
	if err != nil {
		return
	}

	spec, err := request.Speech(client.Name(), req.Input, types.Options{Model: providerModel, Voice: req.Voice})
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	spec.RequestID = reqID

	res, err := client.Invoke(r.Context(), spec)
	if err != nil {
		h.writeProviderFault(w, reqID, client.Name(), req.Model, types.OpSpeech, err)
		return
	}
	h.health.RecordSuccess(client.Name())
	h.normalizer.Apply(res)
	h.finishRequest(reqID, req.Model, types.OpSpeech, res, receivedAt)

	h.writeBinary(w, res)
}

type summarizeResponse struct {
	Summary          string      `json:"summary"`
	Pages            int         `json:"pages"`
	PagesRead        int         `json:"pages_read"`
	Truncated        bool        `json:"truncated"`
	Model            string      `json:"model"`
	Provider         string      `json:"provider"`
	Usage            types.Usage `json:"usage"`
	EstimatedCostUSD float64     `json:"estimated_cost_usd"`
}

// Summarize handles POST /v1/summarize: a multipart upload with a "file"
// part and a "model" form field.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()
	cfg := h.cfg()

	r.Body = http.MaxBytesReader(w, r.Body, cfg.Limits.UploadMaxBytes)
	if err := r.ParseMultipartForm(cfg.Limits.UploadMaxBytes); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid upload: "+err.Error())
		return
	}

	model := r.FormValue("model")
	if model == "" {
		httputil.WriteBadRequestError(w, reqID, "model is required")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "file part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read upload: "+err.Error())
		return
	}

	doc, err := h.extractor.FromUpload(data)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Cannot extract document: "+err.Error())
		return
	}

	client, providerModel, err := h.resolve(w, reqID, model, types.OpSummarize)
	if err != nil {
		return
	}

	spec, err := request.Summarize(client.Name(), doc.Text, types.Options{Model: providerModel})
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	spec.RequestID = reqID

	res, err := client.Invoke(r.Context(), spec)
	if err != nil {
		h.writeProviderFault(w, reqID, client.Name(), model, types.OpSummarize, err)
		return
	}
	h.health.RecordSuccess(client.Name())
	h.normalizer.Apply(res)
	h.finishRequest(reqID, model, types.OpSummarize, res, receivedAt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summarizeResponse{
		Summary:          res.Text,
		Pages:            doc.Pages,
		PagesRead:        doc.PagesRead,
		Truncated:        doc.Truncated,
		Model:            model,
		Provider:         res.Provider,
		Usage:            res.Usage,
		EstimatedCostUSD: res.EstimatedCostUSD,
	})
}

type postRequest struct {
	Platform string `json:"platform"`
	Topic    string `json:"topic"`
	Model    string `json:"model"`
}

type postResponse struct {
	Record           archive.Record `json:"record"`
	Usage            types.Usage    `json:"usage"`
	EstimatedCostUSD float64        `json:"estimated_cost_usd"`
}

// CreatePost handles POST /v1/posts: generate a social post and archive it.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	if req.Platform == "" || req.Topic == "" {
		httputil.WriteBadRequestError(w, reqID, "platform and topic are required")
		return
	}
	if req.Model == "" {
		httputil.WriteBadRequestError(w, reqID, "model is required")
		return
	}

	client, providerModel, err := h.resolve(w, reqID, req.Model, types.OpChat)
	if err != nil {
		return
	}

	spec, err := request.SocialPost(client.Name(), req.Platform, req.Topic, types.Options{Model: providerModel})
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	spec.RequestID = reqID

	res, err := client.Invoke(r.Context(), spec)
	if err != nil {
		h.writeProviderFault(w, reqID, client.Name(), req.Model, types.OpChat, err)
		return
	}
	h.health.RecordSuccess(client.Name())
	h.normalizer.Apply(res)

	rec, err := h.posts.Append(client.Name(), req.Platform, req.Topic, res.Text)
	if err != nil {
		slog.Error("archive append failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to archive post")
		return
	}
	h.finishRequest(reqID, req.Model, types.OpChat, res, receivedAt)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(postResponse{
		Record:           rec,
		Usage:            res.Usage,
		EstimatedCostUSD: res.EstimatedCostUSD,
	})
}

// ListPosts handles GET /v1/posts.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	records, err := h.posts.List()
	if err != nil {
		slog.Error("archive read failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to read archive")
		return
	}
	if records == nil {
		records = []archive.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"posts": records})
}

type modelInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Provider    string   `json:"provider"`
	Operations  []string `json:"operations"`
}

// ListModels handles GET /v1/models.
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	modelsCfg := h.modelsCfg()

	models := make([]modelInfo, 0, len(modelsCfg.Models))
	for name, m := range modelsCfg.Models {
		models = append(models, modelInfo{
			Name:        name,
			DisplayName: m.DisplayName,
			Provider:    m.Provider,
			Operations:  m.Operations,
		})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"models": models})
}

// ResetSession handles POST /v1/sessions/{id}/reset.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	id := chi.URLParam(r, "id")
	if id == "" {
		httputil.WriteBadRequestError(w, reqID, "session id is required")
		return
	}

	// Reset competes with chat turns for the same session state, so it
	// goes through the same gate instead of clearing mid-turn.
	if !h.inflight.TryAcquire(id) {
		httputil.WriteRateLimitError(w, reqID, "A request for this session is already in flight")
		return
	}
	defer h.inflight.Release(id)

	if err := h.sessions.Reset(r.Context(), id); err != nil {
		slog.Error("session reset failed", "request_id", reqID, "session_id", id, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to reset session")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"session_id": id, "status": "reset"})
}

// Health handles GET /prism/v1/health with per-provider breaker states.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	providers := make(map[string]string)
	for _, name := range h.registry.Names() {
		providers[name] = h.health.State(name).String()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"providers": providers,
	})
}

// admit runs the per-session rate and spend gates. It writes the refusal
// response itself and returns false when the request must not proceed.
func (h *Handler) admit(w http.ResponseWriter, r *http.Request, reqID, sessionID string) bool {
	cfg := h.cfg()

	if h.limiter != nil && cfg.Limits.RequestsPerMinute > 0 {
		result, _ := h.limiter.Check(r.Context(), "session:"+sessionID, int64(cfg.Limits.RequestsPerMinute), time.Minute)
		if !result.Allowed {
			if h.metrics != nil {
				h.metrics.RecordRateLimitHit("rpm")
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
			httputil.WriteRateLimitError(w, reqID,
				fmt.Sprintf("Rate limit exceeded: %d requests per minute", cfg.Limits.RequestsPerMinute))
			return false
		}
	}

	if h.spend != nil && cfg.Limits.DailySpendLimitUSD > 0 {
		result, _ := h.spend.CheckDailySpend(r.Context(), sessionID, cfg.Limits.DailySpendLimitUSD)
		if !result.Allowed {
			if h.metrics != nil {
				h.metrics.RecordRateLimitHit("spend")
			}
			httputil.WriteBudgetExceededError(w, reqID,
				fmt.Sprintf("Daily spend limit exceeded: $%.4f of $%.2f", result.SpentUSD, result.LimitUSD))
			return false
		}
	}
	return true
}

// resolve maps a public model name to a provider client, refusing when its
// breaker is open. On failure it writes the response and returns an error
// purely as a control-flow signal.
func (h *Handler) resolve(w http.ResponseWriter, reqID, model string, op types.Operation) (provider.Client, string, error) {
	client, providerModel, err := provider.Resolve(h.modelsCfg(), h.registry, model, op)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return nil, "", err
	}
	if !h.health.Available(client.Name()) {
		httputil.WriteServiceUnavailableError(w, reqID,
			fmt.Sprintf("Provider %s is temporarily unavailable", client.Name()))
		return nil, "", fmt.Errorf("provider %s unavailable", client.Name())
	}
	return client, providerModel, nil
}

func (h *Handler) writeProviderFault(w http.ResponseWriter, reqID, providerName, model string, op types.Operation, err error) {
	kind := fault.Classify(err)

	slog.Error("provider call failed",
		"request_id", reqID,
		"provider", providerName,
		"model", model,
		"operation", string(op),
		"kind", string(kind),
		"error", err,
	)

	// Outage-shaped failures trip the breaker; a rejected request does not.
	if kind == fault.ConnectionFailed || kind == fault.ProviderError {
		h.health.RecordFailure(providerName)
	}
	if h.metrics != nil {
		h.metrics.RecordProviderFault(providerName, string(kind))
	}
	httputil.WriteFault(w, reqID, kind, providerFaultMessage(kind))
}

func providerFaultMessage(kind fault.Kind) string {
	switch kind {
	case fault.Unauthenticated:
		return "The provider rejected the configured API key"
	case fault.RateLimited:
		return "The provider is rate limiting requests; try again shortly"
	case fault.InvalidRequest:
		return "The provider rejected the request as invalid"
	case fault.ProviderError:
		return "The provider returned an internal error"
	case fault.ConnectionFailed:
		return "Could not reach the provider"
	default:
		return "The request failed unexpectedly"
	}
}

func (h *Handler) recordSpend(r *http.Request, sessionID string, costUSD float64) {
	if h.spend == nil {
		return
	}
	if err := h.spend.RecordSpend(r.Context(), sessionID, costUSD); err != nil {
		slog.Warn("spend record failed", "session_id", sessionID, "error", err)
	}
}

func (h *Handler) finishRequest(reqID, model string, op types.Operation, res *types.Result, receivedAt time.Time) {
	duration := time.Since(receivedAt)

	slog.Info("request completed",
		"request_id", reqID,
		"operation", string(op),
		"model_requested", model,
		"model_served", res.Model,
		"provider", res.Provider,
		"prompt_tokens", res.Usage.PromptTokens,
		"completion_tokens", res.Usage.CompletionTokens,
		"total_tokens", res.Usage.TotalTokens,
		"estimated_cost_usd", res.EstimatedCostUSD,
		"duration_ms", duration.Milliseconds(),
	)

	if h.metrics != nil {
		h.metrics.RecordRequest(telemetry.RequestLabels{
			Operation:        string(op),
			Model:            model,
			Provider:         res.Provider,
			Status:           "200",
			DurationMs:       float64(duration.Milliseconds()),
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			CostUSD:          res.EstimatedCostUSD,
		})
	}
}

func (h *Handler) writeBinary(w http.ResponseWriter, res *types.Result) {
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Binary)))
	w.WriteHeader(http.StatusOK)
	w.Write(res.Binary)
}
