package adapters

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nexuscore/agentd/internal/config"
	"github.com/nexuscore/agentd/internal/models"
	"github.com/nexuscore/agentd/internal/orchestrator"
	"github.com/nexuscore/agentd/internal/router"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

// FallbackAdapter implements orchestrator.LLMAdapter by trying a chain of
// per-provider adapters in order, advancing to the next provider only when
// the failure is failover-eligible (rate limit, timeout, upstream 5xx).
// Grounded on the teacher's internal/models.RunWithModelFallback, re-targeted
// from provider/model candidates to provider-only candidates since role ->
// model resolution already happens inside each wrapped adapter.
type FallbackAdapter struct {
	primary  string
	chain    []string
	adapters map[string]orchestrator.LLMAdapter
	log      *slog.Logger
}

// NewFallbackAdapter builds a FallbackAdapter from config.LLMConfig. adapters
// must contain an entry for DefaultProvider and every name in FallbackChain;
// entries missing from adapters are skipped rather than treated as fatal, so
// a provider without configured credentials simply drops out of the chain.
func NewFallbackAdapter(cfg config.LLMConfig, adapterByProvider map[string]orchestrator.LLMAdapter, log *slog.Logger) (*FallbackAdapter, error) {
	if _, ok := adapterByProvider[cfg.DefaultProvider]; !ok {
		return nil, fmt.Errorf("adapters: no adapter configured for default provider %q", cfg.DefaultProvider)
	}
	if log == nil {
		log = slog.Default()
	}
	return &FallbackAdapter{
		primary:  cfg.DefaultProvider,
		chain:    cfg.FallbackChain,
		adapters: adapterByProvider,
		log:      log,
	}, nil
}

// Complete implements orchestrator.LLMAdapter.
func (a *FallbackAdapter) Complete(ctx context.Context, role router.ModelRole, messages []chatmodel.Message, toolDefs []orchestrator.ToolDefinitionJSON) (orchestrator.LLMResponse, error) {
	fbCfg := &models.FallbackConfig{
		PrimaryProvider: a.primary,
		PrimaryModel:    "-",
	}
	for _, provider := range a.chain {
		if provider == a.primary {
			continue
		}
		if _, ok := a.adapters[provider]; !ok {
			continue
		}
		fbCfg.Fallbacks = append(fbCfg.Fallbacks, provider+"/-")
	}

	run := func(ctx context.Context, provider, _ string) (orchestrator.LLMResponse, error) {
		adapter, ok := a.adapters[provider]
		if !ok {
			return orchestrator.LLMResponse{}, models.NewFailoverError(fmt.Errorf("no adapter for provider %q", provider), provider, "", "not_configured")
		}
		resp, err := adapter.Complete(ctx, role, messages, toolDefs)
		if err != nil {
			return orchestrator.LLMResponse{}, models.CoerceToFailoverError(err, provider, "")
		}
		return resp, nil
	}

	onError := func(provider, model string, err error, attempt, total int) {
		kind := models.CoerceToFailoverError(err, provider, model).Kind()
		a.log.Warn("llm completion attempt failed",
			"provider", provider, "attempt", attempt, "of", total, "kind", kind, "error", err)
	}

	result, err := models.RunWithModelFallback(ctx, fbCfg, run, onError)
	if err != nil {
		return orchestrator.LLMResponse{}, fmt.Errorf("adapters: all providers exhausted: %w", err)
	}
	return result.Result, nil
}
