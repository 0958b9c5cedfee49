// Package audit writes the daemon's append-only log files: a general
// operation log (psx_log.txt) and a sampled-statistics log (psx_stats.log),
// per spec.md §6.
package audit

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Sink owns both log files and serializes writes to them. A buffered
// channel plus a single draining goroutine keeps callers (the command
// dispatcher and the sampler pool, including the scheduler's re-samples)
// from blocking on disk I/O. The zombie supervisor does not write to the
// sink; its reaps go only to the standard log. The channel design mirrors
// the teacher's send-on-a-channel collector pattern
// (internal/collector.Collector) rather than the original's synchronous
// fprintf-then-fflush calls.
type Sink struct {
	logFile   *os.File
	statsFile *os.File

	mu sync.Mutex

	entries chan entry
	done    chan struct{}
}

type entry struct {
	file *os.File
	line string
}

// Open opens (creating and appending to) the log and stats files at the
// given paths.
func Open(logPath, statsPath string) (*Sink, error) {
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("audit: open log file: %w", err)
	}
	statsFile, err := os.OpenFile(statsPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("audit: open stats file: %w", err)
	}

	s := &Sink{
		logFile:   logFile,
		statsFile: statsFile,
		entries:   make(chan entry, 256),
		done:      make(chan struct{}),
	}
	go s.drain()
	return s, nil
}

func (s *Sink) drain() {
	defer close(s.done)
	for e := range s.entries {
		s.mu.Lock()
		if _, err := e.file.WriteString(e.line); err == nil {
			e.file.Sync()
		}
		s.mu.Unlock()
	}
}

func (s *Sink) enqueue(file *os.File, line string) {
	select {
	case s.entries <- entry{file: file, line: line}:
	default:
		// entries is full; write synchronously rather than drop an audit
		// record.
		s.mu.Lock()
		if _, err := file.WriteString(line); err == nil {
			file.Sync()
		}
		s.mu.Unlock()
	}
}

// Message appends a free-text line to psx_log.txt: "[YYYY-MM-DD HH:MM:SS]
// <text>\n".
func (s *Sink) Message(format string, args ...any) {
	ts := time.Now().Format(timeLayout)
	line := fmt.Sprintf("[%s] %s\n", ts, fmt.Sprintf(format, args...))
	s.enqueue(s.logFile, line)
}

// Operation appends a command-outcome line to psx_log.txt: "[ts]
// Operation: <op>, PID: <pid>, Result: <result>\n", per spec.md §4's
// (operation, pid, result_string) audit tuple.
func (s *Sink) Operation(operation string, pid int32, result string) {
	ts := time.Now().Format(timeLayout)
	line := fmt.Sprintf("[%s] Operation: %s, PID: %d, Result: %s\n", ts, operation, pid, result)
	s.enqueue(s.logFile, line)
}

// ResourceUsage appends a sampled-statistics line to psx_stats.log: "PID:
// <pid>, CPU: <f>%, MEM: <f>%, VSIZE: <u>, RSS: <i>\n".
func (s *Sink) ResourceUsage(pid int32, cpuPercent, memPercent float64, vsize, rss uint64) {
	line := fmt.Sprintf("PID: %d, CPU: %.2f%%, MEM: %.2f%%, VSIZE: %d, RSS: %d\n",
		pid, cpuPercent, memPercent, vsize, rss)
	s.enqueue(s.statsFile, line)
}

// HistoricalStats appends a timestamped snapshot line to psx_stats.log:
// "[ts] PID=<pid>, NAME=<name>, CPU=<f>%, MEM=<f>%, STATE=<0..4>\n".
func (s *Sink) HistoricalStats(pid int32, name string, cpuPercent, memPercent float64, state int32) {
	ts := time.Now().Format(timeLayout)
	line := fmt.Sprintf("[%s] PID=%d, NAME=%s, CPU=%.2f%%, MEM=%.2f%%, STATE=%d\n",
		ts, pid, name, cpuPercent, memPercent, state)
	s.enqueue(s.statsFile, line)
}

// Close drains any pending entries and closes both files.
func (s *Sink) Close() error {
	close(s.entries)
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	err1 := s.logFile.Close()
	err2 := s.statsFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
