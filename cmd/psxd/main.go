// Command psxd is the process-monitoring daemon: it owns the shared
// process table and runs the sampler pool, adaptive scheduler, zombie
// supervisor, and command bus server described in spec.md.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhdewitt/psx/internal/daemon"
)

func main() {
	if !daemon.Supported {
		fmt.Fprintln(os.Stderr, "psxd: this platform has no SysV IPC support; refusing to start")
		os.Exit(1)
	}

	cfg := daemon.LoadConfig()
	fmt.Printf("psxd starting (shm=0x%x sem=0x%x msg=0x%x)\n", cfg.ShmKey, cfg.SemKey, cfg.MsgKey)

	d, err := daemon.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "psxd: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	d.Start(ctx, cancel)
	<-ctx.Done()

	fmt.Println("psxd shutting down...")
	d.Shutdown()
}

func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nreceived termination signal, shutting down")
		cancel()
	}()
}
