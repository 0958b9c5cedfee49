package pool

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/nhdewitt/psx/internal/audit"
	"github.com/nhdewitt/psx/internal/proctable"
)

func testHandle(t *testing.T) *proctable.Handle {
	t.Helper()
	base := int(uint32(len(t.Name())))<<16 | 0x400000
	h, err := proctable.Attach(base, base+1)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { h.Destroy() })
	return h
}

func TestSampleOne_Self(t *testing.T) {
	ctx := context.Background()
	h := testHandle(t)

	pid := int32(os.Getpid())
	ok, err := SampleOne(ctx, h, nil, pid, 0, 0)
	if err != nil {
		t.Fatalf("SampleOne: %v", err)
	}
	if !ok {
		t.Fatal("SampleOne reported own process not found")
	}

	rec, found, err := h.Get(ctx, pid)
	if err != nil || !found {
		t.Fatalf("Get(own pid) found=%v err=%v", found, err)
	}
	if rec.Pid != pid {
		t.Errorf("rec.Pid = %d, want %d", rec.Pid, pid)
	}
}

func TestSampleOne_NonexistentPid(t *testing.T) {
	ctx := context.Background()
	h := testHandle(t)

	ok, err := SampleOne(ctx, h, nil, 1<<30, 0, 0)
	if err != nil {
		t.Fatalf("SampleOne: %v", err)
	}
	if ok {
		t.Error("SampleOne reported success for an implausible pid")
	}
}

func TestPool_CollectAll_FindsSelf(t *testing.T) {
	ctx := context.Background()
	h := testHandle(t)

	p := New(h, nil, 2)
	if err := p.CollectAll(ctx); err != nil {
		t.Fatalf("CollectAll: %v", err)
	}

	if _, found, err := h.Get(ctx, int32(os.Getpid())); err != nil || !found {
		t.Fatalf("own pid not found after CollectAll: found=%v err=%v", found, err)
	}
}

func TestSampleOne_WritesHistoricalStats(t *testing.T) {
	ctx := context.Background()
	h := testHandle(t)

	dir := t.TempDir()
	statsPath := filepath.Join(dir, "psx_stats.log")
	sink, err := audit.Open(filepath.Join(dir, "psx_log.txt"), statsPath)
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}

	pid := int32(os.Getpid())
	ok, err := SampleOne(ctx, h, sink, pid, 0, 0)
	if err != nil {
		t.Fatalf("SampleOne: %v", err)
	}
	if !ok {
		t.Fatal("SampleOne reported own process not found")
	}
	sink.Close()

	content, err := os.ReadFile(statsPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	pidStr := strconv.Itoa(int(pid))
	if !strings.Contains(string(content), "PID="+pidStr) {
		t.Errorf("stats file missing historical line for own pid, got: %q", content)
	}
	if !strings.Contains(string(content), "PID: "+pidStr) {
		t.Errorf("stats file missing resource usage line for own pid, got: %q", content)
	}
}
