package agent

import "time"

// ThinkingStep records one step of the agent's reasoning trace.
type ThinkingStep struct {
	StepNumber   int       `json:"step_number"`
	Thought      string    `json:"thought"`
	Reasoning    string    `json:"reasoning"`
	Action       string    `json:"action,omitempty"`
	ActionResult string    `json:"action_result,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Response is the complete outcome of one query, including the full
// thinking trace.
type Response struct {
	FinalAnswer    string         `json:"final_answer"`
	ThinkingSteps  []ThinkingStep `json:"thinking_steps"`
	ServicesUsed   []string       `json:"services_used"`
	RAGContextUsed bool           `json:"rag_context_used"`
	Metadata       map[string]any `json:"metadata"`
	TotalTime      float64        `json:"total_time"`
}

// gatherDecision is the thinking model's verdict on which information
// sources to consult.
type gatherDecision struct {
	UseRAG        bool     `json:"use_rag"`
	ServicesToUse []string `json:"services_to_use"`
	Reasoning     string   `json:"reasoning"`
}
