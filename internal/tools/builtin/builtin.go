// Package builtin wires the concrete file and exec tool families into a
// tools.Registry. Kept separate from package tools itself to avoid an
// import cycle (files and exec both depend on tools.Definition).
package builtin

import (
	"github.com/nexuscore/agentd/internal/models"
	"github.com/nexuscore/agentd/internal/tools"
	"github.com/nexuscore/agentd/internal/tools/exec"
	"github.com/nexuscore/agentd/internal/tools/files"
	modelstool "github.com/nexuscore/agentd/internal/tools/models"
)

// Config configures the built-in tool set registered at startup.
type Config struct {
	Workspace    string
	MaxReadBytes int
	// Catalog backs the "models" introspection tool. Nil skips registration.
	Catalog *models.Catalog
}

// Register registers the file, exec, and model-catalog tool families into r.
func Register(r *tools.Registry, cfg Config) {
	fcfg := files.Config{Workspace: cfg.Workspace, MaxReadBytes: cfg.MaxReadBytes}
	r.Register(files.NewReadTool(fcfg))
	r.Register(files.NewWriteTool(fcfg))
	r.Register(files.NewEditTool(fcfg))
	r.Register(files.NewApplyPatchTool(fcfg))

	mgr := exec.NewManager(cfg.Workspace)
	r.Register(exec.NewExecTool("exec", mgr))
	r.Register(exec.NewProcessTool(mgr))

	if cfg.Catalog != nil {
		r.Register(modelstool.NewTool(cfg.Catalog))
	}
}
