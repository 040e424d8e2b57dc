package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nidhogg/cogito/internal/provider"
	"github.com/nidhogg/cogito/internal/rag"
	"github.com/nidhogg/cogito/internal/service"
	"go.uber.org/zap"
)

// Settings tunes generation for the two model roles.
type Settings struct {
	ThinkingTemperature float64
	ResponseTemperature float64
	MaxTokens           int
}

// ThinkingAgent answers queries through a fixed four-step pipeline: plan,
// gather, synthesize, respond. The thinking model drives the first three
// steps; the response model produces the final answer. Failures inside
// gathering are absorbed into the trace; generation failures abort the
// query.
type ThinkingAgent struct {
	responder provider.Provider
	thinker   provider.Provider
	knowledge *rag.Orchestrator
	services  *service.Registry
	settings  Settings
	logger    *zap.Logger

	mu      sync.Mutex
	history []provider.Message
}

// NewThinkingAgent wires an agent and registers document retrieval over the
// knowledge orchestrator with the service registry.
func NewThinkingAgent(responder, thinker provider.Provider, knowledge *rag.Orchestrator, services *service.Registry, settings Settings, logger *zap.Logger) *ThinkingAgent {
	services.Register(service.NewDocumentRetrieval(knowledge))
	return &ThinkingAgent{
		responder: responder,
		thinker:   thinker,
		knowledge: knowledge,
		services:  services,
		settings:  settings,
		logger:    logger,
	}
}

// ProcessQuery runs the full pipeline and returns the final answer with its
// thinking trace. The conversation history grows by one exchange on
// success.
func (a *ThinkingAgent) ProcessQuery(ctx context.Context, query string, queryContext map[string]any) (*Response, error) {
	start := time.Now()

	planStep, err := a.plan(ctx, query, queryContext)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}
	steps := []ThinkingStep{planStep}

	gatherStep, gathered, usedServices := a.gather(ctx, query, planStep.Reasoning)
	steps = append(steps, gatherStep)

	synthStep, err := a.synthesize(ctx, query, gathered, planStep.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	steps = append(steps, synthStep)

	answer, err := a.respond(ctx, query, steps, gathered, queryContext)
	if err != nil {
		return nil, fmt.Errorf("final response: %w", err)
	}
	steps = append(steps, ThinkingStep{
		StepNumber: 4,
		Thought:    "Final Response Generation",
		Reasoning:  preview(answer, 200),
		Timestamp:  time.Now(),
	})

	elapsed := time.Since(start).Seconds()

	a.mu.Lock()
	a.history = append(a.history,
		provider.Message{Role: "user", Content: query},
		provider.Message{Role: "assistant", Content: answer},
	)
	a.mu.Unlock()

	return &Response{
		FinalAnswer:    answer,
		ThinkingSteps:  steps,
		ServicesUsed:   usedServices,
		RAGContextUsed: gathered != "",
		Metadata: map[string]any{
			"query":               query,
			"context":             queryContext,
			"timestamp":           time.Now().Format(time.RFC3339),
			"model_used":          a.responder.Model(),
			"thinking_model_used": a.thinker.Model(),
		},
		TotalTime: elapsed,
	}, nil
}

// plan is step one: analyze the query and produce an approach.
func (a *ThinkingAgent) plan(ctx context.Context, query string, queryContext map[string]any) (ThinkingStep, error) {
	prompt := fmt.Sprintf(planningPromptTemplate, query, formatContext(queryContext, "None provided"))

	resp, err := a.thinker.Generate(ctx, &provider.GenerateRequest{
		Messages: []provider.Message{
			{Role: "system", Content: planningSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: a.settings.ThinkingTemperature,
		MaxTokens:   a.settings.MaxTokens,
	})
	if err != nil {
		return ThinkingStep{}, err
	}

	return ThinkingStep{
		StepNumber: 1,
		Thought:    "Query Analysis and Planning",
		Reasoning:  resp.Content,
		Timestamp:  time.Now(),
	}, nil
}

// gather is step two: ask the thinking model which sources to consult, then
// consult them. Everything that can go wrong here is absorbed: a malformed
// decision falls back to recommendations, and a broken knowledge base or a
// failed service becomes a note in the gathered text.
func (a *ThinkingAgent) gather(ctx context.Context, query, planning string) (ThinkingStep, string, []string) {
	decision := a.decideSources(ctx, query, planning)

	var parts []string
	var used []string

	if decision.UseRAG {
		ragContext, err := a.knowledge.GetContextForQuery(ctx, query)
		switch {
		case err != nil:
			parts = append(parts, fmt.Sprintf("Knowledge base unavailable: %v", err))
		case strings.TrimSpace(ragContext) != "":
			parts = append(parts, "Knowledge Base Information:\n"+ragContext)
		}
	}

	for _, name := range decision.ServicesToUse {
		resp := a.services.RouteRequest(ctx, &service.Request{
			Query:   query,
			Context: map[string]any{"source": "thinking_agent"},
		}, name)
		if !resp.Success {
			a.logger.Debug("service failed during gathering",
				zap.String("service", name), zap.String("error", resp.ErrorMessage))
			parts = append(parts, fmt.Sprintf("Service %s error: %s", name, resp.ErrorMessage))
			continue
		}
		parts = append(parts, fmt.Sprintf("Service (%s) Information:\n%s", name, resp.Content))
		used = append(used, name)
	}

	gathered := strings.Join(parts, "\n\n---\n\n")

	step := ThinkingStep{
		StepNumber:   2,
		Thought:      "Information Gathering",
		Reasoning:    fmt.Sprintf("Decision: %s\n\nGathered:\n%s", decision.Reasoning, preview(gathered, 500)),
		Action:       fmt.Sprintf("Used RAG: %t, Services: %v", decision.UseRAG, decision.ServicesToUse),
		ActionResult: fmt.Sprintf("Retrieved %d information sources", len(parts)),
		Timestamp:    time.Now(),
	}
	return step, gathered, dedupeNames(used)
}

// decideSources asks the thinking model for a gathering strategy. Any
// failure, from generation to JSON parsing, yields a deterministic
// fallback: use the knowledge base plus the top service recommendation.
func (a *ThinkingAgent) decideSources(ctx context.Context, query, planning string) gatherDecision {
	names := a.serviceNames()
	prompt := fmt.Sprintf(decisionPromptTemplate, query, planning, "["+strings.Join(names, ", ")+"]")

	fallback := gatherDecision{
		UseRAG:    true,
		Reasoning: "Fallback decision due to parsing error",
	}
	if recs := a.services.Recommendations(query); len(recs) > 0 {
		fallback.ServicesToUse = recs[:1]
	}

	resp, err := a.thinker.Generate(ctx, &provider.GenerateRequest{
		Messages: []provider.Message{
			{Role: "system", Content: decisionSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: a.settings.ThinkingTemperature,
		MaxTokens:   a.settings.MaxTokens,
	})
	if err != nil {
		a.logger.Debug("gathering decision generation failed", zap.Error(err))
		return fallback
	}

	text := strings.TrimSpace(resp.Content)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.ReplaceAll(text, "```", "")
		text = strings.TrimSpace(text)
	}

	var decision gatherDecision
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		a.logger.Debug("gathering decision unparseable", zap.Error(err))
		return fallback
	}
	return decision
}

// synthesize is step three: reason over the gathered information.
func (a *ThinkingAgent) synthesize(ctx context.Context, query, gathered, planning string) (ThinkingStep, error) {
	prompt := fmt.Sprintf(synthesisPromptTemplate, query, planning, gathered)

	resp, err := a.thinker.Generate(ctx, &provider.GenerateRequest{
		Messages: []provider.Message{
			{Role: "system", Content: synthesisSystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: a.settings.ThinkingTemperature,
		MaxTokens:   a.settings.MaxTokens,
	})
	if err != nil {
		return ThinkingStep{}, err
	}

	return ThinkingStep{
		StepNumber: 3,
		Thought:    "Information Synthesis and Reasoning",
		Reasoning:  resp.Content,
		Timestamp:  time.Now(),
	}, nil
}

// respond is step four: produce the final answer with the response model,
// carrying the last two exchanges of history plus the thinking summary.
func (a *ThinkingAgent) respond(ctx context.Context, query string, steps []ThinkingStep, gathered string, queryContext map[string]any) (string, error) {
	var summary strings.Builder
	for _, step := range steps {
		fmt.Fprintf(&summary, "Step %d: %s\n%s\n", step.StepNumber, step.Thought, preview(step.Reasoning, 200))
	}

	info := "No external information gathered"
	if gathered != "" {
		info = preview(gathered, 2000)
	}

	prompt := fmt.Sprintf(responsePromptTemplate, query, formatContext(queryContext, "None"), summary.String(), info)

	a.mu.Lock()
	history := a.history
	if len(history) > 4 {
		history = history[len(history)-4:]
	}
	messages := append([]provider.Message(nil), history...)
	a.mu.Unlock()

	messages = append(messages,
		provider.Message{Role: "system", Content: responseSystemPrompt},
		provider.Message{Role: "user", Content: prompt},
	)

	resp, err := a.responder.Generate(ctx, &provider.GenerateRequest{
		Messages:    messages,
		Temperature: a.settings.ResponseTemperature,
		MaxTokens:   a.settings.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// AddKnowledge feeds content into the agent's knowledge base.
func (a *ThinkingAgent) AddKnowledge(ctx context.Context, content, source string, metadata map[string]string) error {
	if source == "" {
		source = "user"
	}
	return a.knowledge.AddKnowledge(ctx, content, source, metadata)
}

// ExplainReasoning runs only the planning step and describes how the agent
// would approach the query, without executing the pipeline or touching the
// conversation history.
func (a *ThinkingAgent) ExplainReasoning(ctx context.Context, query string) (string, error) {
	planStep, err := a.plan(ctx, query, nil)
	if err != nil {
		return "", fmt.Errorf("planning: %w", err)
	}

	stats := a.knowledge.KnowledgeStats(ctx)
	return fmt.Sprintf(`**Query Analysis:**
%s

**Recommended Services:**
%s

**Available Knowledge Base:**
%d documents from sources %v in %s store

**Approach:**
I would gather information from the most relevant sources, synthesize the findings, and provide a comprehensive response based on the analysis above.
`, planStep.Reasoning, strings.Join(a.services.Recommendations(query), ", "),
		stats.TotalDocuments, stats.Sources, stats.VectorStoreType), nil
}

// History returns a copy of the conversation history.
func (a *ThinkingAgent) History() []provider.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]provider.Message(nil), a.history...)
}

// SetHistory replaces the conversation history, used when restoring a
// persisted session.
func (a *ThinkingAgent) SetHistory(history []provider.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append([]provider.Message(nil), history...)
}

// ClearHistory drops the conversation history.
func (a *ThinkingAgent) ClearHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

// Services exposes the registry for listing endpoints.
func (a *ThinkingAgent) Services() *service.Registry { return a.services }

// Knowledge exposes the orchestrator for status endpoints.
func (a *ThinkingAgent) Knowledge() *rag.Orchestrator { return a.knowledge }

func (a *ThinkingAgent) serviceNames() []string {
	list := a.services.List()
	names := make([]string, 0, len(list))
	for name := range list {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func formatContext(m map[string]any, empty string) string {
	if len(m) == 0 {
		return empty
	}
	b, err := json.Marshal(m)
	if err != nil {
		return empty
	}
	return string(b)
}

// preview truncates s to at most n bytes, backing up to a rune boundary so
// multi-byte characters are never split.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

func dedupeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
