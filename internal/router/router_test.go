package router

import (
	"context"
	"testing"
	"time"

	"github.com/nexuscore/agentd/pkg/chatmodel"
)

func TestRouteChannelOverrides(t *testing.T) {
	r := New(Config{})
	got := r.Route(context.Background(), chatmodel.ChannelCodeTask, "hello")
	if got.TargetModel != RoleCoding {
		t.Fatalf("expected CODE_TASK to force CODING, got %s", got.TargetModel)
	}
	got = r.Route(context.Background(), chatmodel.ChannelSystemHealth, "hello")
	if got.TargetModel != RoleStandard {
		t.Fatalf("expected SYSTEM_HEALTH to force STANDARD, got %s", got.TargetModel)
	}
}

func TestRouteHeuristicCoding(t *testing.T) {
	r := New(Config{})
	got := r.Route(context.Background(), chatmodel.ChannelChat, "please refactor this: ```go\nfunc foo() {}\n```")
	if got.TargetModel != RoleCoding {
		t.Fatalf("expected code markers to route to CODING, got %s", got.TargetModel)
	}
}

func TestRouteReasoningDisabledFallsBackToStandard(t *testing.T) {
	r := New(Config{ReasoningEnabled: false})
	got := r.Route(context.Background(), chatmodel.ChannelChat, "please analyze deeply and prove this theorem rigorously")
	if got.TargetModel != RoleStandard {
		t.Fatalf("expected REASONING to map to STANDARD when disabled, got %s", got.TargetModel)
	}
}

func TestRouteLowConfidenceFallsBackToHeuristicOnConfirmTimeout(t *testing.T) {
	r := New(Config{
		ConfidenceThreshold: 0.95, // force confirm path even for strong heuristic matches
		ConfirmTimeout:      10 * time.Millisecond,
		Confirm: func(ctx context.Context, userMessage string) (ModelRole, float64, string, error) {
			<-ctx.Done()
			return "", 0, "", ctx.Err()
		},
	})
	got := r.Route(context.Background(), chatmodel.ChannelChat, "Hello")
	if got.TargetModel != RoleStandard {
		t.Fatalf("expected timeout to fall back to heuristic STANDARD, got %s", got.TargetModel)
	}
}

func TestRouteMissingTargetModelIsParseFailureNotDefaulted(t *testing.T) {
	called := false
	r := New(Config{
		ConfidenceThreshold: 0.95,
		Confirm: func(ctx context.Context, userMessage string) (ModelRole, float64, string, error) {
			called = true
			return "", 0.9, "missing target_model", nil
		},
	})
	got := r.Route(context.Background(), chatmodel.ChannelChat, "Hello")
	if !called {
		t.Fatal("expected Confirm to be invoked")
	}
	if got.Reason == "missing target_model" {
		t.Fatal("missing target_model must not be accepted as a confirmed result")
	}
}
