package scheduler

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/nexuscore/agentd/internal/mode"
	"github.com/nexuscore/agentd/internal/sensor"
)

// DiskUsageConfig configures the hourly disk-usage check.
type DiskUsageConfig struct {
	TelemetryRoot string
	AlertPercent  float64
	// DiskUsageStat reports used-percent for TelemetryRoot; defaults to a
	// gopsutil-backed reader matching the Sensor Daemon's disk collector.
	DiskUsageStat func(path string) (usedPercent float64, err error)
}

// NewDiskUsageJob computes usage of the telemetry root and emits
// lifecycle_disk_alert (via the caller's counts map, surfaced by the
// Scheduler's completion event) when usage is at or above AlertPercent.
func NewDiskUsageJob(cfg DiskUsageConfig) Job {
	return Job{
		Name:     "disk_usage",
		Schedule: "0 * * * *", // hourly
		Run: func(ctx context.Context) (map[string]int64, error) {
			stat := cfg.DiskUsageStat
			if stat == nil {
				stat = defaultDiskUsageStat
			}
			used, err := stat(cfg.TelemetryRoot)
			if err != nil {
				return nil, fmt.Errorf("disk usage: %w", err)
			}
			counts := map[string]int64{"used_percent": int64(used)}
			if used >= cfg.AlertPercent {
				counts["alert"] = 1
			}
			return counts, nil
		},
	}
}

func defaultDiskUsageStat(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.UsedPercent, nil
}

// ArchiveConfig configures the daily archive job.
type ArchiveConfig struct {
	// SourceRoot holds live per-data-type telemetry, e.g. telemetry/<type>/*.
	SourceRoot string
	// ArchiveRoot is where compressed files land: <ArchiveRoot>/<type>/YYYY-MM/.
	ArchiveRoot string
	// HotExpiry is how old a file must be before it is archived.
	HotExpiry time.Duration
	Now       func() time.Time
}

// NewArchiveJob compresses and moves expired telemetry files into the
// archive tree, removing the originals. It checks ctx between files so a
// cancelled run finishes the file in flight and exits cleanly.
func NewArchiveJob(cfg ArchiveConfig) Job {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:     "archive",
		Schedule: "0 2 * * *", // daily at 02:00 local
		Run: func(ctx context.Context) (map[string]int64, error) {
			return runArchive(ctx, cfg, now)
		},
	}
}

func runArchive(ctx context.Context, cfg ArchiveConfig, now func() time.Time) (map[string]int64, error) {
	var archived int64
	cutoff := now().Add(-cfg.HotExpiry)

	dataTypes, err := listDirs(cfg.SourceRoot)
	if err != nil {
		return nil, err
	}

	for _, dataType := range dataTypes {
		typeDir := filepath.Join(cfg.SourceRoot, dataType)
		entries, err := os.ReadDir(typeDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			select {
			case <-ctx.Done():
				return map[string]int64{"archived": archived}, ctx.Err()
			default:
			}
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			src := filepath.Join(typeDir, entry.Name())
			monthDir := filepath.Join(cfg.ArchiveRoot, dataType, info.ModTime().Format("2006-01"))
			if err := os.MkdirAll(monthDir, 0o755); err != nil {
				return map[string]int64{"archived": archived}, fmt.Errorf("mkdir archive dir: %w", err)
			}
			dst := filepath.Join(monthDir, entry.Name()+".gz")
			if err := gzipFile(src, dst); err != nil {
				return map[string]int64{"archived": archived}, fmt.Errorf("archive %s: %w", src, err)
			}
			if err := os.Remove(src); err != nil {
				return map[string]int64{"archived": archived}, fmt.Errorf("remove original %s: %w", src, err)
			}
			archived++
		}
	}
	return map[string]int64{"archived": archived}, nil
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

func listDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// PurgeConfig configures the weekly purge job.
type PurgeConfig struct {
	ArchiveRoot string
	ColdExpiry  time.Duration
	// DeleteIndex is called with the search-index pattern for a data type
	// past cold expiry (nil means no search-index collaborator is wired).
	DeleteIndex func(ctx context.Context, dataType string, before time.Time) error
	Now         func() time.Time
}

// NewPurgeJob deletes archived files past cold expiry and asks the
// search-index collaborator to drop matching indices.
func NewPurgeJob(cfg PurgeConfig) Job {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return Job{
		Name:     "purge",
		Schedule: "0 3 * * 0", // weekly, Sunday 03:00 local
		Run: func(ctx context.Context) (map[string]int64, error) {
			return runPurge(ctx, cfg, now)
		},
	}
}

func runPurge(ctx context.Context, cfg PurgeConfig, now func() time.Time) (map[string]int64, error) {
	var removed int64
	cutoff := now().Add(-cfg.ColdExpiry)

	dataTypes, err := listDirs(cfg.ArchiveRoot)
	if err != nil {
		return nil, err
	}

	for _, dataType := range dataTypes {
		typeDir := filepath.Join(cfg.ArchiveRoot, dataType)
		err := filepath.WalkDir(typeDir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			info, err := d.Info()
			if err != nil || info.ModTime().After(cutoff) {
				return nil
			}
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
			return nil
		})
		if err != nil {
			return map[string]int64{"removed": removed}, err
		}
		if cfg.DeleteIndex != nil {
			if err := cfg.DeleteIndex(ctx, dataType, cutoff); err != nil {
				return map[string]int64{"removed": removed}, fmt.Errorf("delete index for %s: %w", dataType, err)
			}
		}
	}
	return map[string]int64{"removed": removed}, nil
}

// ConsolidationConfig configures the sensor-driven consolidation trigger.
type ConsolidationConfig struct {
	ModeManager     *mode.Manager
	SensorDaemon    *sensor.Daemon
	CPUThreshold    float64
	MemoryThreshold float64
	IdleThreshold   time.Duration
	LastActivity    func() time.Time
	Consolidate     func(ctx context.Context) (int64, error)
}

// ShouldConsolidate reports whether the NORMAL-mode, low-load, idle-window
// conditions of the consolidation trigger are currently satisfied.
func ShouldConsolidate(cfg ConsolidationConfig) bool {
	if cfg.ModeManager == nil || cfg.SensorDaemon == nil {
		return false
	}
	if cfg.ModeManager.Current() != mode.Normal {
		return false
	}
	latest, ok := cfg.SensorDaemon.Latest()
	if !ok {
		return false
	}
	if latest.CPUPercent >= cfg.CPUThreshold || latest.MemPercent >= cfg.MemoryThreshold {
		return false
	}
	if cfg.LastActivity != nil && time.Since(cfg.LastActivity()) < cfg.IdleThreshold {
		return false
	}
	return true
}

// NewConsolidationJob wraps Consolidate as an on-demand Job (no cron
// schedule; invoked via Scheduler.RunNow once ShouldConsolidate holds).
func NewConsolidationJob(cfg ConsolidationConfig) Job {
	return Job{
		Name: "consolidation",
		Run: func(ctx context.Context) (map[string]int64, error) {
			if cfg.Consolidate == nil {
				return nil, fmt.Errorf("consolidation: no external second-brain adapter configured")
			}
			n, err := cfg.Consolidate(ctx)
			return map[string]int64{"consolidated": n}, err
		},
	}
}
