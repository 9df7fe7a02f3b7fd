package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a model call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for one external recognition call.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
	Failed    bool
}

// Track measures a call started at start and fills in latency and failure state.
func Track(agent string, start time.Time, usage TokenUsage, err error) AgentMeta {
	return AgentMeta{
		AgentName: agent,
		Usage:     usage,
		Latency:   time.Since(start),
		Failed:    err != nil,
	}
}
