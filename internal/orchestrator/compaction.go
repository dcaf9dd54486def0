package orchestrator

import (
	"context"
	"fmt"

	"github.com/nexuscore/agentd/internal/compaction"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// Compactor generates a real summary for the history applyContextWindow
// would otherwise replace with a static marker, grounded on the teacher's
// internal/compaction chunked-summarization helpers. It implements
// compaction.Summarizer by routing the summarization prompt through the
// same LLMAdapter the executor already uses, at the ROUTER role (cheap,
// no tools).
type Compactor struct {
	llm LLMAdapter
	cfg *compaction.SummarizationConfig
}

// NewCompactor builds a Compactor. cfg may be nil to use
// compaction.DefaultSummarizationConfig.
func NewCompactor(llm LLMAdapter, cfg *compaction.SummarizationConfig) *Compactor {
	if cfg == nil {
		cfg = compaction.DefaultSummarizationConfig()
	}
	return &Compactor{llm: llm, cfg: cfg}
}

// GenerateSummary implements compaction.Summarizer.
func (c *Compactor) GenerateSummary(ctx context.Context, messages []chatmodel.Message, cfg *compaction.SummarizationConfig) (string, error) {
	if len(messages) == 0 {
		return compaction.DefaultSummaryFallback, nil
	}
	prompt := chatmodel.Message{
		Role: chatmodel.RoleUser,
		Content: "Summarize the following conversation history concisely, preserving facts, " +
			"decisions, and open questions a continuation would need:\n\n" + compaction.FormatMessagesForSummary(messages),
	}
	resp, err := c.llm.Complete(ctx, router.RoleRouter, []chatmodel.Message{prompt}, nil)
	if err != nil {
		return "", fmt.Errorf("orchestrator: compaction summary: %w", err)
	}
	if resp.Content == "" {
		return compaction.DefaultSummaryFallback, nil
	}
	return resp.Content, nil
}

// Summarize replaces the dropped middle segment of a session with a
// generated summary, falling back to compaction.DefaultSummaryFallback on
// any error so a flaky summarizer never blocks the request.
func (c *Compactor) Summarize(ctx context.Context, dropped []chatmodel.Message) string {
	if len(dropped) == 0 {
		return ""
	}
	summary, err := compaction.SummarizeWithFallback(ctx, dropped, c, c.cfg)
	if err != nil {
		return compaction.DefaultSummaryFallback
	}
	return summary
}
