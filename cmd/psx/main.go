// Command psx is the CLI front-end to the psxd daemon: list, show, kill,
// suspend, resume, update, and stats, per spec.md §5's command surface.
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/charmbracelet/x/term"

	"github.com/nhdewitt/psx/internal/bus"
	"github.com/nhdewitt/psx/internal/daemon"
	"github.com/nhdewitt/psx/internal/proctable"
	"github.com/nhdewitt/psx/internal/sampler"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Args[0])
		os.Exit(1)
	}

	cfg := daemon.LoadConfig()

	table, err := proctable.Attach(cfg.ShmKey, cfg.SemKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to access process table: %v\n", err)
		os.Exit(1)
	}
	defer table.Detach()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "list":
		showAll := len(os.Args) > 2 && os.Args[2] == "-a"
		listProcesses(ctx, table, showAll)

	case "show":
		if len(os.Args) < 3 {
			fmt.Println("Error: PID required")
			os.Exit(1)
		}
		pid := mustPid(os.Args[2])
		showProcess(ctx, table, pid)

	case "kill":
		if len(os.Args) < 3 {
			fmt.Println("Error: PID required")
			os.Exit(1)
		}
		pid := mustPid(os.Args[2])
		sig := int32(15) // SIGTERM
		if len(os.Args) > 3 {
			if v, err := strconv.Atoi(os.Args[3]); err == nil {
				sig = int32(v)
			}
		}
		sendCommand(ctx, cfg, bus.KindKill, pid, sig)

	case "suspend":
		if len(os.Args) < 3 {
			fmt.Println("Error: PID required")
			os.Exit(1)
		}
		sendCommand(ctx, cfg, bus.KindSuspend, mustPid(os.Args[2]), 0)

	case "resume":
		if len(os.Args) < 3 {
			fmt.Println("Error: PID required")
			os.Exit(1)
		}
		sendCommand(ctx, cfg, bus.KindResume, mustPid(os.Args[2]), 0)

	case "update":
		sendCommand(ctx, cfg, bus.KindUpdate, 0, 0)

	case "stats":
		printStats(ctx, table)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage(os.Args[0])
		os.Exit(1)
	}
}

func mustPid(s string) int32 {
	v, err := strconv.Atoi(s)
	if err != nil {
		fmt.Printf("Error: invalid PID %q\n", s)
		os.Exit(1)
	}
	return int32(v)
}

func sendCommand(ctx context.Context, cfg daemon.Config, kind bus.Kind, pid, sig int32) {
	queue, err := bus.NewQueue(cfg.MsgKey)
	if err != nil {
		fmt.Printf("Error: Failed to access command bus: %v\n", err)
		os.Exit(1)
	}
	client := bus.NewClient(queue)

	resp, err := client.Do(ctx, kind, pid, sig)
	if err != nil {
		fmt.Printf("Error: command failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp.Text)
}

func listProcesses(ctx context.Context, table *proctable.Handle, showAll bool) {
	records, err := table.Snapshot(ctx)
	if err != nil {
		fmt.Printf("Error: Failed to access process table: %v\n", err)
		return
	}

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 100
	}
	nameWidth := 20
	if width > 120 {
		nameWidth = 20 + (width - 120)
	}

	fmt.Printf("\n%-8s %-8s %-*s %-12s %10s %10s %12s %10s\n",
		"PID", "PPID", nameWidth, "NAME", "STATE", "CPU%", "MEM%", "VSIZE(KB)", "RSS(KB)")
	fmt.Println(dashes(width))

	count := 0
	for _, rec := range records {
		if rec.Pid == 0 {
			continue
		}
		if !showAll && rec.State == proctable.Zombie {
			continue
		}
		fmt.Printf("%-8d %-8d %-*s %-12s %9.2f%% %9.2f%% %12d %10d\n",
			rec.Pid, rec.PPid, nameWidth, rec.GetName(), rec.State,
			rec.CPUPercent, rec.MemPercent, rec.VSize/1024, rec.RSS/1024)
		count++
	}
	fmt.Printf("\nTotal processes: %d\n", count)
}

func showProcess(ctx context.Context, table *proctable.Handle, pid int32) {
	rec, found, err := table.Get(ctx, pid)
	if err != nil {
		fmt.Printf("Error: Failed to access process table: %v\n", err)
		return
	}
	if !found {
		fmt.Printf("Process %d not found\n", pid)
		return
	}

	fmt.Println("\nProcess Details:")
	fmt.Printf("  PID: %d\n", rec.Pid)
	fmt.Printf("  PPID: %d\n", rec.PPid)
	fmt.Printf("  Name: %s\n", rec.GetName())
	fmt.Printf("  Command: %s\n", rec.GetCmdline())
	fmt.Printf("  State: %s\n", rec.State)
	fmt.Printf("  CPU Usage: %.2f%%\n", rec.CPUPercent)
	fmt.Printf("  Memory Usage: %.2f%%\n", rec.MemPercent)
	fmt.Printf("  Virtual Size: %d KB\n", rec.VSize/1024)
	fmt.Printf("  Resident Set Size: %d KB\n", rec.RSS/1024)
	fmt.Printf("  User Time: %d\n", rec.Utime)
	fmt.Printf("  System Time: %d\n", rec.Stime)
	fmt.Println()
}

func printStats(ctx context.Context, table *proctable.Handle) {
	count, err := table.Count(ctx)
	if err != nil {
		fmt.Printf("Error: Failed to access process table: %v\n", err)
		return
	}
	lastSync, _ := table.LastSync(ctx)

	fmt.Println("\nSystem Statistics:")
	fmt.Printf("  Total Processes: %d\n", count)
	fmt.Printf("  Last Sync: %s\n", lastSync.Format("Mon Jan  2 15:04:05 2006"))

	var ms fmtMemStats
	ms.read()
	fmt.Println("\nRuntime Memory:")
	fmt.Printf("  Heap Allocated: %d bytes\n", ms.heapAlloc)
	fmt.Printf("  Total System: %d bytes\n", ms.sys)

	if cpu, err := sampler.ReadSystemCPU(); err == nil {
		fmt.Println("\nSystem CPU (cumulative since boot):")
		fmt.Printf("  Busy: %.2f%%\n", cpu.BusyPercent())
	}
}

// fmtMemStats reports this process's own runtime memory usage for the
// `stats` command, replacing the original's custom allocator totals: psx
// has no in-process pool allocator to report on (see DESIGN.md).
type fmtMemStats struct {
	heapAlloc uint64
	sys       uint64
}

func (m *fmtMemStats) read() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.heapAlloc = ms.HeapAlloc
	m.sys = ms.Sys
}

func dashes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

func printUsage(prog string) {
	fmt.Printf("Usage: %s [COMMAND] [ARGS]\n", prog)
	fmt.Println("\nCommands:")
	fmt.Println("  list              List all processes")
	fmt.Println("  list -a           List all processes (including zombies)")
	fmt.Println("  show <pid>        Show details of a specific process")
	fmt.Println("  kill <pid>        Kill a process (SIGTERM)")
	fmt.Println("  kill <pid> <sig>  Kill a process with specific signal")
	fmt.Println("  suspend <pid>     Suspend a process (SIGSTOP)")
	fmt.Println("  resume <pid>      Resume a process (SIGCONT)")
	fmt.Println("  update            Update process table")
	fmt.Println("  stats             Show system statistics")
}
