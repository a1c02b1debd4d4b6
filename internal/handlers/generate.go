package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"llmbridge/internal/cache"
	"llmbridge/internal/gemini"
	"llmbridge/internal/llm"
	"llmbridge/internal/metrics"
	"llmbridge/internal/translate"
	"llmbridge/pkg/logging/logging"
)

// GenerateHandler holds dependencies for the translated generation endpoints.
type GenerateHandler struct {
	Cache     cache.ExactCache
	CacheTTL  time.Duration
	VersionID string
	ProxyName string
	Model     string
	LLM       llm.Client
}

func NewGenerateHandler(
	c cache.ExactCache,
	ttl time.Duration,
	versionID string,
	proxyName string,
	model string,
	client llm.Client,
) *GenerateHandler {
	return &GenerateHandler{
		Cache:     c,
		CacheTTL:  ttl,
		VersionID: versionID,
		ProxyName: proxyName,
		Model:     model,
		LLM:       client,
	}
}

// Generate handles POST on Gemini generation paths. It translates the
// inbound request into the upstream schema, forwards it, and translates the
// response back. Non-generation paths get 404 before any translation runs.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	if !IsGenerationPath(r.URL.Path) {
		writeError(w, http.StatusNotFound, "not a recognized generation endpoint", "NOT_FOUND")
		return
	}

	var req gemini.GenerateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_ARGUMENT")
		return
	}

	if IsStreamingPath(r.URL.Path, r.URL.Query()) {
		metrics.TranslationsTotal.WithLabelValues("stream").Inc()
		h.generateStream(w, r, req)
		return
	}
	metrics.TranslationsTotal.WithLabelValues("generate").Inc()

	// ---- Exact cache lookup ----
	var cacheKey string
	if h.Cache != nil {
		key, err := cache.BuildExactCacheKey(req, h.Model, h.VersionID)
		if err != nil {
			logger.Warn("key_builder_error", zap.Error(err))
		} else {
			cacheKey = key.String()
			if cached, hit, cacheErr := h.Cache.Get(ctx, cacheKey); cacheErr != nil {
				// Cache is best-effort; log and treat as miss.
				logger.Warn("exact_cache_get_error", zap.Error(cacheErr))
			} else if hit {
				var cachedResp gemini.GenerateContentResponse
				if err := json.Unmarshal(cached, &cachedResp); err != nil {
					logger.Warn("exact_cache_unmarshal_error", zap.Error(err))
				} else {
					logger.Info("generation served from cache",
						zap.String("model", h.Model),
						zap.Duration("total_latency_ms", time.Since(start)),
					)
					writeJSON(w, cachedResp)
					return
				}
			}
		}
	}

	// ---- Translate and forward ----
	chatReq := translate.ToChatRequest(req, h.Model)

	upstreamStart := time.Now()
	chatResp, err := h.LLM.ChatCompletion(ctx, &chatReq)
	if err != nil {
		metrics.UpstreamErrorsTotal.Inc()
		logger.Error("upstream call failed",
			zap.String("model", h.Model),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Proxy error: "+err.Error(), "INTERNAL_ERROR")
		return
	}

	resp := translate.FromChatResponse(chatResp)

	if h.Cache != nil && cacheKey != "" {
		if respBytes, err := json.Marshal(resp); err == nil {
			if err := h.Cache.Set(ctx, cacheKey, respBytes, h.CacheTTL); err != nil {
				logger.Warn("exact_cache_set_error", zap.Error(err))
			}
		}
	}

	logger.Info("generation completed",
		zap.String("model", h.Model),
		zap.Int("messages", len(chatReq.Messages)),
		zap.Duration("upstream_latency_ms", time.Since(upstreamStart)),
		zap.Duration("total_latency_ms", time.Since(start)),
	)

	writeJSON(w, resp)
}

// generateStream relays the upstream SSE stream as Gemini-shaped chunks as
// they arrive. The finish chunk is held back until the provider's usage
// accounting chunk lands so the last event carries real token counts.
func (h *GenerateHandler) generateStream(w http.ResponseWriter, r *http.Request, req gemini.GenerateContentRequest) {
	ctx := r.Context()
	logger := logging.L(ctx)

	chatReq := translate.ToChatRequest(req, h.Model)

	results, err := h.LLM.ChatCompletionStream(ctx, &chatReq)
	if err != nil {
		metrics.UpstreamErrorsTotal.Inc()
		logger.Error("upstream stream connect failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Proxy error: "+err.Error(), "INTERNAL_ERROR")
		return
	}

	flusher, _ := w.(http.Flusher)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	started := false
	usage := gemini.UsageMetadata{}
	var pendingFinish *llm.StreamChunk

	emit := func(chunk gemini.GenerateContentResponse) {
		payload, err := json.Marshal(chunk)
		if err != nil {
			logger.Warn("marshal stream chunk", zap.Error(err))
			return
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		if flusher != nil {
			flusher.Flush()
		}
		started = true
	}

	for result := range results {
		if result.Err != nil {
			metrics.UpstreamErrorsTotal.Inc()
			if !started {
				logger.Error("upstream stream failed", zap.Error(result.Err))
				writeError(w, http.StatusInternalServerError, "Proxy error: "+result.Err.Error(), "INTERNAL_ERROR")
			} else {
				logger.Error("upstream stream failed mid-flight", zap.Error(result.Err))
			}
			return
		}

		chunk := result.Chunk
		if chunk == nil {
			continue
		}

		if chunk.Usage != nil {
			usage = gemini.UsageMetadata{
				PromptTokenCount:     chunk.Usage.PromptTokens,
				CandidatesTokenCount: chunk.Usage.CompletionTokens,
				TotalTokenCount:      chunk.Usage.TotalTokens,
			}
			continue
		}

		if chunk.FinishReason != "" && chunk.Delta == "" {
			pendingFinish = chunk
			continue
		}

		usage.CandidatesTokenCount += estimateTokens(chunk.Delta)
		usage.TotalTokenCount = usage.PromptTokenCount + usage.CandidatesTokenCount
		emit(translate.FromStreamChunk(chunk, usage))

		if chunk.FinishReason != "" {
			pendingFinish = nil
		}
	}

	if pendingFinish != nil {
		emit(translate.FromStreamChunk(pendingFinish, usage))
	}

	logger.Info("stream completed",
		zap.String("model", h.Model),
		zap.Int("candidate_tokens", usage.CandidatesTokenCount),
	)
}

// estimateTokens is a rough chars/4 heuristic used for running counts until
// the provider's accounting chunk arrives.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// writeJSON sends a JSON response consistently.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends a Gemini-shaped error envelope.
func writeError(w http.ResponseWriter, code int, message, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(gemini.ErrorResponse{
		Error: gemini.ErrorDetail{
			Code:    code,
			Message: message,
			Status:  status,
		},
	})
}
