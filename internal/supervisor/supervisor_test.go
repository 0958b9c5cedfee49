package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/nhdewitt/psx/internal/proctable"
)

type fakeReaper struct {
	reaped []int32
	drains int
}

func (f *fakeReaper) TryReap(pid int32) (bool, error) {
	f.reaped = append(f.reaped, pid)
	return true, nil
}

func (f *fakeReaper) DrainOwnChildren() {
	f.drains++
}

func testHandle(t *testing.T) *proctable.Handle {
	t.Helper()
	base := int(uint32(len(t.Name())))<<16 | 0x300000
	h, err := proctable.Attach(base, base+1)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { h.Destroy() })
	return h
}

func TestSupervisor_ScanReapsAndRemovesZombies(t *testing.T) {
	ctx := context.Background()
	h := testHandle(t)

	var alive, zombie proctable.Record
	alive.Pid = 10
	alive.SetName("alive")
	zombie.Pid = 20
	zombie.SetName("zombie")
	zombie.State = proctable.Zombie

	_ = h.Upsert(ctx, alive)
	_ = h.Upsert(ctx, zombie)

	reaper := &fakeReaper{}
	checker := func(pid int32) (bool, error) {
		return pid == 20, nil
	}

	s := New(h, reaper, checker, time.Second)
	s.scan(ctx)

	if len(reaper.reaped) != 1 || reaper.reaped[0] != 20 {
		t.Fatalf("reaped = %v, want [20]", reaper.reaped)
	}

	if _, ok, _ := h.Get(ctx, 20); ok {
		t.Error("zombie pid still present in table after scan")
	}
	if _, ok, _ := h.Get(ctx, 10); !ok {
		t.Error("non-zombie pid removed from table by scan")
	}
}

func TestSupervisor_ScanSkipsNonZombies(t *testing.T) {
	ctx := context.Background()
	h := testHandle(t)

	var rec proctable.Record
	rec.Pid = 30
	rec.SetName("healthy")
	_ = h.Upsert(ctx, rec)

	reaper := &fakeReaper{}
	checker := func(pid int32) (bool, error) { return false, nil }

	s := New(h, reaper, checker, time.Second)
	s.scan(ctx)

	if len(reaper.reaped) != 0 {
		t.Errorf("reaped = %v, want none", reaper.reaped)
	}
}
