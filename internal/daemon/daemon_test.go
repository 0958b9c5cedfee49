package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nhdewitt/psx/internal/bus"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	base := int(uint32(len(t.Name())))<<20 | 0x500000
	return Config{
		ShmKey:        base,
		SemKey:        base + 1,
		MsgKey:        base + 2,
		LogPath:       filepath.Join(dir, "psx_log.txt"),
		StatsPath:     filepath.Join(dir, "psx_stats.log"),
		PoolWorkers:   2,
		FullScanEvery: 500 * time.Millisecond,
		ZombieScan:    500 * time.Millisecond,
	}
}

func TestDaemon_StartShutdown(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	d.Start(ctx, cancel)
	time.Sleep(100 * time.Millisecond)
	d.Shutdown()

	if _, err := os.Stat(cfg.LogPath); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

// TestDaemon_ShutdownCommandStopsMainLoop verifies a KindShutdown dispatch
// cancels the root context a caller's main loop blocks on (not just the
// daemon's internal context), and that the resulting Shutdown call and a
// concurrent direct Shutdown call don't race or double-close anything.
func TestDaemon_ShutdownCommandStopsMainLoop(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	d.Start(ctx, cancel)

	resp := d.dispatch(ctx, bus.Request{Kind: bus.KindShutdown})
	if resp.Text != "Success: Shutting down" {
		t.Errorf("dispatch(shutdown) = %q", resp.Text)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown command did not cancel the root context")
	}

	// Mirror main's post-ctx.Done() call; must not panic even if the
	// command's own goroutine already triggered a Shutdown.
	d.Shutdown()
}

// TestDaemon_ShutdownIsIdempotent verifies a second Shutdown call (e.g. a
// SIGINT arriving after a Shutdown command already tore the daemon down)
// never double-closes the audit sink or command queue.
func TestDaemon_ShutdownIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	d.Start(ctx, cancel)

	d.Shutdown()
	d.Shutdown()
}

func TestDaemon_KillUnknownPid(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.table.Destroy()

	ctx := context.Background()
	resp := d.dispatch(ctx, bus.Request{Kind: bus.KindKill, TargetPid: 1 << 29, Signal: 15})
	if resp.Text != "Error: Process not found" {
		t.Errorf("dispatch(kill unknown) = %q", resp.Text)
	}
}

func TestDaemon_UpdateCommand(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.table.Destroy()

	ctx := context.Background()
	resp := d.dispatch(ctx, bus.Request{Kind: bus.KindUpdate})
	if resp.Text != "Success: Process table updated" {
		t.Errorf("dispatch(update) = %q", resp.Text)
	}

	if _, found, _ := d.table.Get(ctx, int32(os.Getpid())); !found {
		t.Error("update command did not populate own pid into the table")
	}
}
