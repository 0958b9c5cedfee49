// Package pool implements the process sampling workers described in
// spec.md §3.5/§9 (component D): a full periodic enumeration of /proc plus
// a pid-queue worker pool, replacing the original's static pid-range
// partition (see RangeScan for the preserved legacy behavior).
package pool

import (
	"context"
	"log"
	"time"

	"github.com/nhdewitt/psx/internal/audit"
	"github.com/nhdewitt/psx/internal/proctable"
	"github.com/nhdewitt/psx/internal/sampler"
)

// SampleOne reads everything the table needs for one pid and upserts it,
// returning false if the process no longer exists. If sink is non-nil, a
// historical-stats line is appended to psx_stats.log for every successful
// sample, matching the original's log_historical_stats call on every table
// update (proc_reader.c's read_proc_info / scheduler.c's resample path).
func SampleOne(ctx context.Context, table *proctable.Handle, sink *audit.Sink, pid int32, totalRAM uint64, uptime float64) (bool, error) {
	st, name, err := sampler.ReadStat(pid)
	if err != nil {
		return false, nil
	}

	cmdline, err := sampler.ReadCmdline(pid)
	if err != nil {
		cmdline = ""
	}

	// status's Name: line is the canonical name (per the original's
	// read_name); fall back to stat's comm field if status is unreadable.
	if statusName, err := sampler.ReadName(pid); err == nil && statusName != "" {
		name = statusName
	}

	elapsed := sampler.ElapsedSeconds(uptime, st.StartTicks, sampler.ClkTck)
	cpuPct := sampler.DeriveCPUPercent(st.Utime, st.Stime, sampler.ClkTck, elapsed)
	memPct := sampler.DeriveMemPercent(st.RSSPages, sampler.PageSize, totalRAM)

	var rec proctable.Record
	rec.Pid = pid
	rec.PPid = st.PPid
	rec.SetName(name)
	rec.SetCmdline(cmdline)
	rec.State = st.State
	rec.Utime = st.Utime
	rec.Stime = st.Stime
	rec.VSize = st.VSize
	rec.RSS = st.RSSPages * uint64(sampler.PageSize)
	rec.CPUPercent = cpuPct
	rec.MemPercent = memPct
	rec.LastUpdate = time.Now().UnixNano()
	if st.IsZombie {
		rec.IsZombie = 1
	}

	if err := table.Upsert(ctx, rec); err != nil {
		return false, err
	}

	if sink != nil {
		sink.HistoricalStats(pid, name, cpuPct, memPct, int32(st.State))
		sink.ResourceUsage(pid, cpuPct, memPct, rec.VSize, rec.RSS)
	}

	return true, nil
}

// Pool drives a work-queue of pids through a fixed number of goroutines,
// each calling SampleOne. This replaces the original's per-worker static
// pid-range partition (worker i scanning [i*1000, i*1000+1000)), which
// silently ignored any pid at or above workers*1000: a single enumerator
// feeding a shared queue covers every live pid regardless of count or
// numeric range.
type Pool struct {
	table    *proctable.Handle
	sink     *audit.Sink
	workers  int
	totalRAM func() (uint64, error)
	uptime   func() (float64, error)
	listPIDs func() ([]int32, error)
}

// New constructs a Pool with workers goroutines draining a shared pid
// queue. sink may be nil, in which case samples are never logged to
// psx_stats.log (used by tests that don't need an audit sink).
func New(table *proctable.Handle, sink *audit.Sink, workers int) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{
		table:    table,
		sink:     sink,
		workers:  workers,
		totalRAM: sampler.ReadTotalRAM,
		uptime:   sampler.ReadUptimeSeconds,
		listPIDs: sampler.ListPIDs,
	}
}

// CollectAll resets the table and repopulates it from a single /proc
// enumeration fanned out across the pool's workers, matching the
// original's collect_all_processes reset-then-rescan semantics (spec.md
// §4: a full enumeration clears stale entries before repopulating).
func (p *Pool) CollectAll(ctx context.Context) error {
	if err := p.table.Reset(ctx); err != nil {
		return err
	}

	totalRAM, err := p.totalRAM()
	if err != nil {
		log.Printf("pool: read total RAM: %v", err)
	}
	uptime, err := p.uptime()
	if err != nil {
		log.Printf("pool: read uptime: %v", err)
	}

	pids, err := p.listPIDs()
	if err != nil {
		return err
	}

	jobs := make(chan int32)
	done := make(chan struct{})

	for i := 0; i < p.workers; i++ {
		go func() {
			for pid := range jobs {
				if _, err := SampleOne(ctx, p.table, p.sink, pid, totalRAM, uptime); err != nil {
					log.Printf("pool: sample pid %d: %v", pid, err)
				}
				time.Sleep(1 * time.Millisecond)
			}
			done <- struct{}{}
		}()
	}

feed:
	for _, pid := range pids {
		select {
		case jobs <- pid:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)

	for i := 0; i < p.workers; i++ {
		<-done
	}

	return nil
}

// Run calls CollectAll once immediately, then every interval until ctx is
// canceled (the original's full-scan cadence, sleep(2) between passes in
// proc_reader.c's per-worker loop, generalized to the whole-table pass).
func (p *Pool) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	if err := p.CollectAll(ctx); err != nil {
		log.Printf("pool: initial collect: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.CollectAll(ctx); err != nil {
				log.Printf("pool: collect: %v", err)
			}
		}
	}
}

// RangeScan preserves the original's static pid-range partition behavior
// for callers that specifically want it (e.g. a constrained environment
// where enumerating all of /proc is undesirable). It is not used by the
// daemon's default startup path; Run/CollectAll are.
func RangeScan(ctx context.Context, table *proctable.Handle, sink *audit.Sink, startPid int32, count int, totalRAM uint64, uptime float64) {
	for pid := startPid; pid < startPid+int32(count); pid++ {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := SampleOne(ctx, table, sink, pid, totalRAM, uptime); err != nil {
			log.Printf("pool: range scan pid %d: %v", pid, err)
		}
		time.Sleep(1 * time.Millisecond)
	}
}
