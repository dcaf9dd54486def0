package governance

import (
	"testing"
	"time"

	"github.com/nexuscore/agentd/internal/mode"
)

func TestValidatePathForbiddenWinsOverAllowed(t *testing.T) {
	policy, err := NewToolPolicy(ToolPolicy{
		Name:           "read_file",
		ForbiddenPaths: []string{"/etc/**"},
		AllowedPaths:   []string{"/etc/motd", "/home/**"},
	})
	if err != nil {
		t.Fatalf("NewToolPolicy: %v", err)
	}
	got := ValidatePath("/etc/motd", policy)
	if got.Allowed {
		t.Fatal("expected forbidden_paths to deny even when allowed_paths also matches")
	}
}

func TestValidatePathRequiresMatchWhenAllowedListNonEmpty(t *testing.T) {
	policy, err := NewToolPolicy(ToolPolicy{
		Name:         "read_file",
		AllowedPaths: []string{"/home/**"},
	})
	if err != nil {
		t.Fatalf("NewToolPolicy: %v", err)
	}
	if ValidatePath("/home/user/notes.txt", policy).Allowed != true {
		t.Fatal("expected path under allowed_paths to be allowed")
	}
	if ValidatePath("/var/log/syslog", policy).Allowed {
		t.Fatal("expected path outside allowed_paths to be denied")
	}
}

func TestCheckToolAllowedDeniesOutsideAllowedModes(t *testing.T) {
	policy, _ := NewToolPolicy(ToolPolicy{
		Name:           "sandbox",
		AllowedInModes: map[mode.Mode]bool{mode.Normal: true},
	})
	store := NewStore([]*ToolPolicy{policy})

	if d := store.CheckToolAllowed("sandbox", mode.Normal, "caller-1"); !d.Allowed {
		t.Fatalf("expected allowed in NORMAL, got %+v", d)
	}
	if d := store.CheckToolAllowed("sandbox", mode.Degraded, "caller-1"); d.Allowed {
		t.Fatalf("expected denied in DEGRADED, got %+v", d)
	}
}

func TestCheckToolAllowedEnforcesRateLimit(t *testing.T) {
	policy, _ := NewToolPolicy(ToolPolicy{
		Name:      "websearch",
		RateLimit: &RateLimitSpec{N: 2, Window: time.Minute},
	})
	store := NewStore([]*ToolPolicy{policy})

	if d := store.CheckToolAllowed("websearch", mode.Normal, "caller-1"); !d.Allowed {
		t.Fatalf("1st call should be allowed, got %+v", d)
	}
	if d := store.CheckToolAllowed("websearch", mode.Normal, "caller-1"); !d.Allowed {
		t.Fatalf("2nd call should be allowed, got %+v", d)
	}
	d := store.CheckToolAllowed("websearch", mode.Normal, "caller-1")
	if d.Allowed || !d.RateLimited {
		t.Fatalf("3rd call should be rate limited, got %+v", d)
	}
	// Different caller has an independent window.
	if d := store.CheckToolAllowed("websearch", mode.Normal, "caller-2"); !d.Allowed {
		t.Fatalf("other caller should be unaffected, got %+v", d)
	}
}
