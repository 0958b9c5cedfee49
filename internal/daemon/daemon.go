// Package daemon wires the process table, sampler pool, scheduler,
// supervisor, command bus, and audit sink into the running psxd process
// described in spec.md §3 and §7.
package daemon

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/nhdewitt/psx/internal/audit"
	"github.com/nhdewitt/psx/internal/bus"
	"github.com/nhdewitt/psx/internal/pool"
	"github.com/nhdewitt/psx/internal/proctable"
	"github.com/nhdewitt/psx/internal/scheduler"
	"github.com/nhdewitt/psx/internal/sampler"
	"github.com/nhdewitt/psx/internal/supervisor"
)

// Config holds every tunable the daemon reads from the environment,
// mirroring cmd/agent/main.go's loadConfig() pattern of one flat struct
// populated from os.Getenv with hardcoded fallbacks.
type Config struct {
	ShmKey        int
	SemKey        int
	MsgKey        int
	LogPath       string
	StatsPath     string
	PoolWorkers   int
	FullScanEvery time.Duration
	ZombieScan    time.Duration
}

// LoadConfig reads PSX_SHM_KEY, PSX_SEM_KEY, PSX_MSG_KEY, PSX_LOG_PATH,
// PSX_STATS_PATH, and PSX_POOL_WORKERS from the environment, falling back
// to the original's hardcoded common.h constants and a 4 worker pool
// (matching proc_reader.c's default thread_count).
func LoadConfig() Config {
	cfg := Config{
		ShmKey:        0x12345,
		SemKey:        0xABCDE,
		MsgKey:        0x54321,
		LogPath:       "psx_log.txt",
		StatsPath:     "psx_stats.log",
		PoolWorkers:   4,
		FullScanEvery: 2 * time.Second,
		ZombieScan:    5 * time.Second,
	}

	for name, dst := range map[string]*int{
		"PSX_SHM_KEY": &cfg.ShmKey,
		"PSX_SEM_KEY": &cfg.SemKey,
		"PSX_MSG_KEY": &cfg.MsgKey,
	} {
		if v, err := strconv.ParseInt(os.Getenv(name), 0, 64); err == nil {
			*dst = int(v)
		}
	}
	if v := os.Getenv("PSX_LOG_PATH"); v != "" {
		cfg.LogPath = v
	}
	if v := os.Getenv("PSX_STATS_PATH"); v != "" {
		cfg.StatsPath = v
	}
	if v, err := strconv.Atoi(os.Getenv("PSX_POOL_WORKERS")); err == nil && v > 0 {
		cfg.PoolWorkers = v
	}
	return cfg
}

// Daemon bundles every background component and the wiring between them.
type Daemon struct {
	cfg    Config
	table  *proctable.Handle
	audit  *audit.Sink
	queue  bus.Queue
	pool   *pool.Pool
	sched  *scheduler.Scheduler
	super  *supervisor.Supervisor
	server *bus.Server

	// rootCancel cancels the context the caller's main loop is blocked on
	// (see Start), letting a Shutdown command propagate out to main instead
	// of only tearing down the daemon's internal goroutines.
	rootCancel context.CancelFunc

	cancel       context.CancelFunc
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

// New attaches the shared process table and constructs every component,
// but starts nothing yet (see Start).
func New(cfg Config) (*Daemon, error) {
	table, err := proctable.Attach(cfg.ShmKey, cfg.SemKey)
	if err != nil {
		return nil, fmt.Errorf("daemon: attach process table: %w", err)
	}

	sink, err := audit.Open(cfg.LogPath, cfg.StatsPath)
	if err != nil {
		table.Detach()
		return nil, fmt.Errorf("daemon: open audit sink: %w", err)
	}

	queue, err := bus.NewQueue(cfg.MsgKey)
	if err != nil {
		sink.Close()
		table.Detach()
		return nil, fmt.Errorf("daemon: attach command queue: %w", err)
	}

	d := &Daemon{
		cfg:   cfg,
		table: table,
		audit: sink,
		queue: queue,
		pool:  pool.New(table, sink, cfg.PoolWorkers),
		super: supervisor.New(table, supervisor.WaitReaper{}, supervisor.CheckZombie, cfg.ZombieScan),
	}
	d.sched = scheduler.New(table, d.resample)
	d.server = bus.NewServer(queue, d.dispatch)
	return d, nil
}

// resample implements scheduler.SampleFunc by delegating to pool.SampleOne.
func (d *Daemon) resample(ctx context.Context, pid int32) (bool, error) {
	totalRAM, _ := sampler.ReadTotalRAM()
	uptime, _ := sampler.ReadUptimeSeconds()
	return pool.SampleOne(ctx, d.table, d.audit, pid, totalRAM, uptime)
}

// Start launches every background goroutine in the order spec.md §7
// describes: an initial full collection that runs to completion, then the
// periodic sampler pool, scheduler, supervisor, and command server
// concurrently. rootCancel cancels the context the caller's
// own main loop blocks on; a Shutdown command calls it so the process
// actually exits instead of only stopping the daemon's internal goroutines
// (per spec.md §4.3/§4.7: reply, then let the main loop observe and exit).
func (d *Daemon) Start(ctx context.Context, rootCancel context.CancelFunc) {
	d.rootCancel = rootCancel

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.audit.Message("PSX daemon started")

	if err := d.pool.CollectAll(ctx); err != nil {
		d.audit.Message("initial collection failed: %v", err)
	}

	d.wg.Add(3)
	go func() {
		defer d.wg.Done()
		d.pool.Run(ctx, d.cfg.FullScanEvery)
	}()
	go func() {
		defer d.wg.Done()
		d.sched.Run(ctx)
	}()
	go func() {
		defer d.wg.Done()
		d.super.Run(ctx)
	}()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.server.Run(ctx); err != nil {
			d.audit.Message("command server stopped: %v", err)
		}
	}()
}

// Shutdown cancels every background goroutine, waits for them to exit, and
// tears down the queue and audit sink. It detaches from the shared process
// table without destroying it, so the next daemon restart reattaches to the
// same records (per spec.md §4's stale-table preservation behavior; Destroy
// is reserved for explicit teardown).
//
// Shutdown is idempotent: it runs its teardown at most once, so a Shutdown
// command racing a subsequent SIGINT/SIGTERM (or the reverse) never double
// closes the audit sink or command queue.
func (d *Daemon) Shutdown() {
	d.shutdownOnce.Do(func() {
		if d.cancel != nil {
			d.cancel()
		}
		d.wg.Wait()
		d.audit.Message("PSX daemon stopped")
		d.queue.Close()
		d.audit.Close()
		d.table.Detach()
	})
}

// dispatch implements bus.Handler: it resolves a command against the
// process table and issues the corresponding signal, per the original's
// handle_command switch in psx.c.
func (d *Daemon) dispatch(ctx context.Context, req bus.Request) bus.Response {
	switch req.Kind {
	case bus.KindKill:
		return d.signalCommand(ctx, "KILL", req.TargetPid, signalOrDefault(req.Signal, int32(syscall.SIGTERM)))
	case bus.KindSuspend:
		return d.signalCommand(ctx, "SUSPEND", req.TargetPid, int32(syscall.SIGSTOP))
	case bus.KindResume:
		return d.signalCommand(ctx, "RESUME", req.TargetPid, int32(syscall.SIGCONT))
	case bus.KindUpdate:
		if err := d.pool.CollectAll(ctx); err != nil {
			return bus.Response{Text: fmt.Sprintf("Error: update failed: %v", err)}
		}
		return bus.Response{Text: "Success: Process table updated"}
	case bus.KindShutdown:
		// Reply first, then ask the caller's main loop to observe
		// cancellation and run the actual teardown (Shutdown), exactly as
		// it would for a SIGINT/SIGTERM: a Shutdown command must not race
		// its own reply out through a command server that's mid-teardown.
		go func() {
			if d.rootCancel != nil {
				d.rootCancel()
			}
		}()
		return bus.Response{Text: "Success: Shutting down"}
	default:
		return bus.Response{Text: "Error: Unknown command"}
	}
}

func signalOrDefault(sig, fallback int32) int32 {
	if sig > 0 {
		return sig
	}
	return fallback
}

func (d *Daemon) signalCommand(ctx context.Context, op string, pid, sig int32) bus.Response {
	_, found, err := d.table.Get(ctx, pid)
	if err != nil {
		return bus.Response{Text: fmt.Sprintf("Error: table lookup failed: %v", err)}
	}
	if !found {
		result := "Error: Process not found"
		d.audit.Operation(op, pid, result)
		return bus.Response{Text: result}
	}

	proc, err := os.FindProcess(int(pid))
	if err != nil {
		result := fmt.Sprintf("Error: Failed to signal process: %v", err)
		d.audit.Operation(op, pid, result)
		return bus.Response{Text: result}
	}

	if err := proc.Signal(syscall.Signal(sig)); err != nil {
		result := fmt.Sprintf("Error: Failed to signal process: %v", err)
		d.audit.Operation(op, pid, result)
		return bus.Response{Text: result}
	}

	result := fmt.Sprintf("Success: Sent signal %d to process %d", sig, pid)
	d.audit.Operation(op, pid, result)
	return bus.Response{Text: result}
}
