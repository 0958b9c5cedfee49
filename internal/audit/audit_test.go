package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(data)
}

func TestSink_Operation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "psx_log.txt")
	s, err := Open(logPath, filepath.Join(dir, "psx_stats.log"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.Operation("KILL", 42, "Success: Sent signal 15 to process 42")
	s.Close()

	content := readFile(t, logPath)
	if !strings.Contains(content, "Operation: KILL, PID: 42, Result: Success: Sent signal 15 to process 42") {
		t.Errorf("log file missing expected operation line, got: %q", content)
	}
	if !strings.HasPrefix(content, "[") {
		t.Errorf("log line should start with a timestamp bracket, got: %q", content)
	}
}

func TestSink_ResourceUsage(t *testing.T) {
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "psx_stats.log")
	s, err := Open(filepath.Join(dir, "psx_log.txt"), statsPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.ResourceUsage(99, 12.5, 3.25, 102400, 4096)
	s.Close()

	content := readFile(t, statsPath)
	want := "PID: 99, CPU: 12.50%, MEM: 3.25%, VSIZE: 102400, RSS: 4096\n"
	if content != want {
		t.Errorf("stats file = %q, want %q", content, want)
	}
}

func TestSink_HistoricalStats(t *testing.T) {
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "psx_stats.log")
	s, err := Open(filepath.Join(dir, "psx_log.txt"), statsPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.HistoricalStats(1, "init", 0.5, 1.2, 0)
	s.Close()

	content := readFile(t, statsPath)
	if !strings.Contains(content, "PID=1, NAME=init, CPU=0.50%, MEM=1.20%, STATE=0") {
		t.Errorf("stats file missing historical line, got: %q", content)
	}
}

func TestSink_Message(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "psx_log.txt")
	s, err := Open(logPath, filepath.Join(dir, "psx_stats.log"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Message("PSX daemon started")
	s.Close()

	content := readFile(t, logPath)
	if !strings.Contains(content, "PSX daemon started") {
		t.Errorf("log file missing message, got: %q", content)
	}
}
