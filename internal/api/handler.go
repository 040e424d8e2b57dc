package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/cogito/internal/agent"
	"github.com/nidhogg/cogito/internal/config"
	"github.com/nidhogg/cogito/internal/rag"
	"github.com/nidhogg/cogito/internal/service"
	"github.com/nidhogg/cogito/internal/session"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions  *session.Manager
	knowledge *rag.Orchestrator
	services  *service.Registry
	agentCfg  config.AgentConfig
	ragCfg    config.RAGConfig
	logger    *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(sessions *session.Manager, knowledge *rag.Orchestrator, services *service.Registry, agentCfg config.AgentConfig, ragCfg config.RAGConfig, logger *zap.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		knowledge: knowledge,
		services:  services,
		agentCfg:  agentCfg,
		ragCfg:    ragCfg,
		logger:    logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", h.root)
	r.Get("/health", h.healthCheck)
	r.Post("/chat", h.chat)
	r.Post("/knowledge", h.addKnowledge)
	r.Get("/status", h.status)
	r.Get("/services", h.listServices)
	r.Post("/explain", h.explain)
	r.Get("/conversation-history", h.getHistory)
	r.Delete("/conversation-history", h.clearHistory)

	return r
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message      string         `json:"message"`
	Context      map[string]any `json:"context,omitempty"`
	SessionID    string         `json:"session_id,omitempty"`
	ShowThinking bool           `json:"show_thinking"`
	UseRAG       bool           `json:"use_rag"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Answer         string                `json:"answer"`
	ThinkingSteps  []agent.ThinkingStep  `json:"thinking_steps,omitempty"`
	ServicesUsed   []string              `json:"services_used"`
	RAGContextUsed bool                  `json:"rag_context_used"`
	SessionID      string                `json:"session_id"`
	ProcessingTime float64               `json:"processing_time"`
	Timestamp      string                `json:"timestamp"`
	Metadata       map[string]any        `json:"metadata"`
}

// KnowledgeAddRequest is the body of POST /knowledge.
type KnowledgeAddRequest struct {
	Content  string            `json:"content"`
	Source   string            `json:"source"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ErrorResponse is the shape of every error body.
type ErrorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Cogito Thinking Agent API",
		"version": "1.0.0",
		"status":  "running",
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"timestamp":   time.Now().Format(time.RFC3339),
		"agent_ready": "true",
	})
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error(), "BAD_REQUEST")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "", "BAD_REQUEST")
		return
	}

	h.logger.Info("processing chat request",
		zap.String("session", req.SessionID),
		zap.Int("message_len", len(req.Message)))

	resp, sessionID, err := h.sessions.Process(r.Context(), req.SessionID, req.Message, req.Context)
	if err != nil {
		h.logger.Error("chat processing failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError,
			"failed to process chat request", err.Error(), "GENERATION_ERROR")
		return
	}

	out := ChatResponse{
		Answer:         resp.FinalAnswer,
		ServicesUsed:   resp.ServicesUsed,
		RAGContextUsed: resp.RAGContextUsed,
		SessionID:      sessionID,
		ProcessingTime: resp.TotalTime,
		Timestamp:      time.Now().Format(time.RFC3339),
		Metadata:       resp.Metadata,
	}
	if req.ShowThinking {
		out.ThinkingSteps = resp.ThinkingSteps
	}
	if out.ServicesUsed == nil {
		out.ServicesUsed = []string{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) addKnowledge(w http.ResponseWriter, r *http.Request) {
	var req KnowledgeAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error(), "BAD_REQUEST")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required", "", "BAD_REQUEST")
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	h.logger.Info("adding knowledge", zap.String("source", req.Source))

	if err := h.knowledge.AddKnowledge(r.Context(), req.Content, req.Source, req.Metadata); err != nil {
		h.logger.Error("knowledge add failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError,
			"failed to add knowledge", err.Error(), "KNOWLEDGE_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Knowledge added successfully",
		"document_id": fmt.Sprintf("doc_%d", time.Now().UnixMilli()),
	})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	stats := h.knowledge.KnowledgeStats(r.Context())

	services := h.services.List()
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ready",
		"knowledge_base_stats": stats,
		"available_services":   names,
		"configuration": map[string]any{
			"response_model":   h.agentCfg.ResponseModel,
			"thinking_model":   h.agentCfg.ThinkingModel,
			"default_provider": h.agentCfg.Provider,
			"thinking_enabled": true,
			"rag_enabled":      true,
			"max_tokens":       h.agentCfg.MaxTokens,
			"chunk_size":       h.ragCfg.ChunkSize,
		},
	})
}

func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	services := h.services.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"services":    services,
		"total_count": len(services),
	})
}

func (h *Handler) explain(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error(), "BAD_REQUEST")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required", "", "BAD_REQUEST")
		return
	}

	explanation, sessionID, err := h.sessions.Explain(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.logger.Error("explain failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError,
			"failed to explain reasoning", err.Error(), "GENERATION_ERROR")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":       req.Message,
		"explanation": explanation,
		"session_id":  sessionID,
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	history := h.sessions.History(r.Context(), sessionID)

	writeJSON(w, http.StatusOK, map[string]any{
		"history":         history,
		"total_exchanges": len(history) / 2,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	h.sessions.ClearHistory(r.Context(), sessionID)

	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Conversation history cleared successfully",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, detail, code string) {
	writeJSON(w, status, ErrorResponse{
		Error:     msg,
		Detail:    detail,
		ErrorCode: code,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
