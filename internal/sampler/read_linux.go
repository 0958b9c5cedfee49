//go:build linux

package sampler

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tklauser/go-sysconf"
)

// ClkTck caches the kernel's clock ticks per second, read once at process
// startup via SC_CLK_TCK. 100 is the near-universal Linux default and is
// kept as a fallback if the sysconf call fails.
var ClkTck = 100.0

func init() {
	if sc, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && sc > 0 {
		ClkTck = float64(sc)
	}
}

// PageSize caches the kernel's page size in bytes, used to convert
// /proc/[pid]/stat's rss field (pages) into bytes.
var PageSize = int64(os.Getpagesize())

// ReadStat reads and parses /proc/[pid]/stat for pid.
func ReadStat(pid int32) (Stat, string, error) {
	f, err := os.Open(filepath.Join("/proc", strconv.Itoa(int(pid)), "stat"))
	if err != nil {
		if os.IsNotExist(err) {
			return Stat{}, "", ErrNotFound
		}
		return Stat{}, "", err
	}
	defer f.Close()
	return parseStatFrom(f)
}

// parseStatFrom parses a single /proc/[pid]/stat line. Grounded on the
// teacher's parsePidStatFrom: the comm field is delimited by the first '('
// and last ')' since process names can themselves contain spaces or
// parentheses, and every field after that is whitespace-delimited.
func parseStatFrom(r io.Reader) (Stat, string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Stat{}, "", err
	}
	str := string(data)

	firstParen := strings.Index(str, "(")
	lastParen := strings.LastIndex(str, ")")
	if firstParen == -1 || lastParen == -1 || lastParen <= firstParen {
		return Stat{}, "", fmt.Errorf("sampler: invalid stat format")
	}
	name := str[firstParen+1 : lastParen]

	fields := strings.Fields(str[lastParen+2:])
	if len(fields) < 22 {
		return Stat{}, "", fmt.Errorf("sampler: insufficient stat fields")
	}

	// Indices shifted by removing pid and comm: state(2)->0, ppid(3)->1,
	// utime(13)->11, stime(14)->12, starttime(21)->19, vsize(22)->20,
	// rss(23)->21 (fields are numbered 0-based from pid, i.e. one less than
	// proc(5)'s 1-based numbering, minus the first two already consumed).
	parseUint := func(i int) uint64 {
		v, _ := strconv.ParseUint(fields[i], 10, 64)
		return v
	}
	ppid, _ := strconv.Atoi(fields[1])

	state, isZombie := MapStateChar(fields[0][0])

	st := Stat{
		PPid:       int32(ppid),
		State:      state,
		IsZombie:   isZombie,
		Utime:      parseUint(11),
		Stime:      parseUint(12),
		StartTicks: parseUint(19),
		VSize:      parseUint(20),
		RSSPages:   parseUint(21),
	}
	return st, name, nil
}

// ReadName reads /proc/[pid]/status's "Name:" line. This is the original's
// read_name, which parses status rather than the comm field SampleOne's
// ReadStat call already extracts: status's Name is what the original used
// as the table's canonical name, and unlike comm it is not truncated at the
// same length in every kernel version.
func ReadName(pid int32) (string, error) {
	f, err := os.Open(filepath.Join("/proc", strconv.Itoa(int(pid)), "status"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	defer f.Close()
	return parseNameFrom(f)
}

func parseNameFrom(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Name:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Name:")), nil
		}
	}
	return "", fmt.Errorf("sampler: Name not found in status")
}

// ReadSystemCPU reads /proc/stat's leading "cpu" summary line, the
// kernel-wide CPU time breakdown the original's read_system_stats computed
// (and never consumed, per stats.c) on every scheduler pass.
func ReadSystemCPU() (SystemCPU, error) {
	f, err := os.Open("/proc/stat")
	if err != nil {
		return SystemCPU{}, err
	}
	defer f.Close()
	return parseSystemCPUFrom(f)
}

func parseSystemCPUFrom(r io.Reader) (SystemCPU, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return SystemCPU{}, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 8 || fields[0] != "cpu" {
			continue
		}
		parse := func(i int) uint64 {
			if i >= len(fields) {
				return 0
			}
			v, _ := strconv.ParseUint(fields[i], 10, 64)
			return v
		}
		return SystemCPU{
			User:    parse(1),
			Nice:    parse(2),
			System:  parse(3),
			Idle:    parse(4),
			Iowait:  parse(5),
			Irq:     parse(6),
			SoftIrq: parse(7),
			Steal:   parse(8),
		}, nil
	}
	return SystemCPU{}, fmt.Errorf("sampler: cpu line not found in /proc/stat")
}

// ReadCmdline reads /proc/[pid]/cmdline, joining the NUL-separated argv
// entries with spaces. Falls back to empty string for kernel threads,
// which have no cmdline.
func ReadCmdline(pid int32) (string, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(int(pid)), "cmdline"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	return strings.Join(parts, " "), nil
}

// ReadTotalRAM reads /proc/meminfo's MemTotal field in bytes.
func ReadTotalRAM() (uint64, error) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return parseMemInfoFrom(f)
}

func parseMemInfoFrom(r io.Reader) (uint64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				kb, err := strconv.ParseUint(fields[1], 10, 64)
				if err != nil {
					return 0, err
				}
				return kb * 1024, nil
			}
		}
	}
	return 0, fmt.Errorf("sampler: MemTotal not found")
}

// ReadUptimeSeconds reads /proc/uptime's first field.
func ReadUptimeSeconds() (float64, error) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 1 {
		return 0, fmt.Errorf("sampler: malformed /proc/uptime")
	}
	return strconv.ParseFloat(fields[0], 64)
}

// ListPIDs enumerates every numeric entry directly under /proc, i.e. every
// currently-running process. Order is whatever the kernel/filesystem
// returns and must not be relied on.
func ListPIDs() ([]int32, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	pids := make([]int32, 0, len(entries))
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids, nil
}
