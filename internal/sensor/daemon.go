// Package sensor polls host resource metrics on a fixed interval and
// publishes them into a bounded ring buffer for the Mode Manager and the
// Request Monitor to read.
package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is one point-in-time resource reading. GPU fields are
// platform-specific, optional, and degrade silently when unavailable.
type Snapshot struct {
	Timestamp    time.Time
	CPUPercent   float64
	MemPercent   float64
	DiskPercent  float64
	GPUPercent   *float64
	GPUPowerW    *float64
	GPUTempC     *float64
}

// GPUReader samples GPU utilisation. Platform-specific implementations may
// be wired in; the zero value (nil) disables GPU sampling entirely.
type GPUReader func() (util, powerW, tempC *float64, err error)

// Config configures the daemon.
type Config struct {
	// PollInterval is the sampling cadence (default 5s).
	PollInterval time.Duration
	// DiskPath is the filesystem root whose usage is sampled.
	DiskPath string
	// BufferSize is the ring buffer capacity (default 720, ~1h at 5s).
	BufferSize int
	// EmitEvery polls between "sensor_poll" telemetry events (default 12, i.e. ~1/min at 5s).
	EmitEvery int
	// GPU is an optional best-effort GPU sampler.
	GPU GPUReader
	// Logger receives per-poll failures; never panics the daemon.
	Logger *slog.Logger
	// OnEvent is called with "sensor_poll" every EmitEvery polls. Optional.
	OnEvent func(name string, fields map[string]any)
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.PollInterval <= 0 {
		out.PollInterval = 5 * time.Second
	}
	if out.DiskPath == "" {
		out.DiskPath = "/"
	}
	if out.BufferSize <= 0 {
		out.BufferSize = 720
	}
	if out.EmitEvery <= 0 {
		out.EmitEvery = 12
	}
	if out.Logger == nil {
		out.Logger = slog.Default().With("component", "sensor")
	}
	return out
}

// Daemon is the background host-metrics poller. Start/Stop are idempotent.
type Daemon struct {
	cfg Config

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	pollCnt  int

	bufMu sync.RWMutex
	buf   []Snapshot // ring buffer, oldest-first after wraparound normalisation
	head  int
	size  int
}

// New creates a daemon. It does not start polling until Start is called.
func New(cfg Config) *Daemon {
	c := cfg.withDefaults()
	return &Daemon{
		cfg: c,
		buf: make([]Snapshot, c.BufferSize),
	}
}

// Start begins polling in a background goroutine. Calling Start while
// already running is a no-op.
func (d *Daemon) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	go d.loop(ctx)
}

// Stop cancels pending polls and waits (with a short grace period) for the
// loop to exit. Calling Stop when not running is a no-op.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	close(d.stopCh)
	done := d.doneCh
	d.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func (d *Daemon) loop(ctx context.Context) {
	defer func() {
		d.mu.Lock()
		d.running = false
		close(d.doneCh)
		d.mu.Unlock()
	}()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

// poll takes one sample. It never panics: any collector error is logged and
// the corresponding field is left at its zero/nil value.
func (d *Daemon) poll(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			d.cfg.Logger.Error("sensor poll panicked", "recover", r)
		}
	}()

	snap := Snapshot{Timestamp: time.Now()}

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		d.cfg.Logger.Warn("cpu sample failed", "error", err)
	} else if len(pcts) > 0 {
		snap.CPUPercent = pcts[0]
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		d.cfg.Logger.Warn("memory sample failed", "error", err)
	} else if vm != nil {
		snap.MemPercent = vm.UsedPercent
	}

	if du, err := disk.UsageWithContext(ctx, d.cfg.DiskPath); err != nil {
		d.cfg.Logger.Warn("disk sample failed", "error", err)
	} else if du != nil {
		snap.DiskPercent = du.UsedPercent
	}

	if d.cfg.GPU != nil {
		if util, power, temp, err := d.cfg.GPU(); err != nil {
			d.cfg.Logger.Debug("gpu sample unavailable", "error", err)
		} else {
			snap.GPUPercent, snap.GPUPowerW, snap.GPUTempC = util, power, temp
		}
	}

	d.push(snap)

	d.mu.Lock()
	d.pollCnt++
	emit := d.pollCnt%d.cfg.EmitEvery == 0
	d.mu.Unlock()

	if emit && d.cfg.OnEvent != nil {
		d.cfg.OnEvent("sensor_poll", map[string]any{
			"cpu_percent":  snap.CPUPercent,
			"memory_percent": snap.MemPercent,
			"disk_percent": snap.DiskPercent,
		})
	}
}

func (d *Daemon) push(s Snapshot) {
	d.bufMu.Lock()
	defer d.bufMu.Unlock()
	n := len(d.buf)
	d.buf[d.head] = s
	d.head = (d.head + 1) % n
	if d.size < n {
		d.size++
	}
}

// Latest returns the most recent snapshot, or false if none exist yet.
func (d *Daemon) Latest() (Snapshot, bool) {
	d.bufMu.RLock()
	defer d.bufMu.RUnlock()
	if d.size == 0 {
		return Snapshot{}, false
	}
	n := len(d.buf)
	idx := (d.head - 1 + n) % n
	return d.buf[idx], true
}

// Window returns a copy of all retained snapshots within the last `dur`,
// ordered oldest-first. It never blocks the producer.
func (d *Daemon) Window(dur time.Duration) []Snapshot {
	d.bufMu.RLock()
	defer d.bufMu.RUnlock()

	n := len(d.buf)
	out := make([]Snapshot, 0, d.size)
	cutoff := time.Now().Add(-dur)
	for i := 0; i < d.size; i++ {
		idx := (d.head - d.size + i + n) % n
		s := d.buf[idx]
		if !s.Timestamp.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}
