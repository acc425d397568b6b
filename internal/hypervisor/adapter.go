// Package hypervisor adapts between typed domain records and the
// hypervisor's CLI tooling (virsh by default). It is the only package that
// shells out to the hypervisor; everything else in the dashboard talks to
// typed Go values.
package hypervisor

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/vmdash/vmdash/internal/domain"
	"github.com/vmdash/vmdash/internal/logger"
)

// Options configures an Adapter. The zero value is not usable; use
// NewOptions or set Binary explicitly.
type Options struct {
	// Binary is the hypervisor CLI executable, e.g. "virsh".
	Binary string
	// Timeout bounds every subprocess invocation.
	Timeout time.Duration
}

// NewOptions returns the dashboard's default options.
func NewOptions() Options {
	return Options{Binary: "virsh", Timeout: 30 * time.Second}
}

// MinSetMemory is the lower bound §4.1 imposes on set_memory's argument.
const MinSetMemory = 256 * 1024 * 1024 // 256 MiB

// Adapter is a HypervisorAdapter: it invokes the CLI and parses its output.
type Adapter struct {
	opts Options
	run  runFunc
	log  *logger.Logger
}

// SetLogger attaches a logger; set_memory logs the change at info level
// once a logger is attached, per §4.1.
func (a *Adapter) SetLogger(l *logger.Logger) { a.log = l }

// runFunc executes a command and returns its captured stdout lines, or an
// error. It is a seam for tests to stub out the subprocess boundary.
type runFunc func(ctx context.Context, timeout time.Duration, name string, args ...string) (stdout string, err error)

// New creates an Adapter that shells out to the real hypervisor CLI.
func New(opts Options) *Adapter {
	return &Adapter{opts: opts, run: execCommand}
}

// newWithRunner is used by tests to inject a fake subprocess runner.
func newWithRunner(opts Options, run runFunc) *Adapter {
	return &Adapter{opts: opts, run: run}
}

func execCommand(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), &domain.CommandError{
			Command: strings.Join(append([]string{name}, args...), " "),
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return stdout.String(), nil
}

// DomainData invokes the statistics subcommand and parses its output into
// one DomainData per domain, per §4.1 and §6.
func (a *Adapter) DomainData(ctx context.Context) (map[string]*domain.DomainData, error) {
	sampledAtMS := time.Now().UnixMilli()

	out, err := a.run(ctx, a.opts.Timeout, a.opts.Binary, "domstats", "--balloon", "--cpu-total", "--block")
	if err != nil {
		return nil, err
	}
	return parseDomstats(out, sampledAtMS)
}

// HostInfo invokes the node-info subcommand and parses the host's CPU
// topology.
func (a *Adapter) HostInfo(ctx context.Context) (domain.HostCPUInfo, error) {
	out, err := a.run(ctx, a.opts.Timeout, a.opts.Binary, "nodeinfo")
	if err != nil {
		return domain.HostCPUInfo{}, err
	}
	return parseNodeInfo(out)
}

// Start asynchronously starts a VM. Per §4.1, start/shutdown may take
// several seconds, so this returns immediately and reports failures only
// via the returned channel (the caller typically discards it, logging any
// error from a goroutine, matching §5's "subprocess threads ... their
// completion is logged but not awaited by the loop").
func (a *Adapter) Start(name string) <-chan error {
	return a.runAsync("start", name)
}

// Shutdown asynchronously requests a graceful guest shutdown.
func (a *Adapter) Shutdown(name string) <-chan error {
	return a.runAsync("shutdown", name)
}

// Reboot synchronously requests a guest reboot, per §4.1 ("reboot/reset run
// synchronously").
func (a *Adapter) Reboot(ctx context.Context, name string) error {
	_, err := a.run(ctx, a.opts.Timeout, a.opts.Binary, "reboot", name)
	return err
}

// Reset synchronously forces a hard reset.
func (a *Adapter) Reset(ctx context.Context, name string) error {
	_, err := a.run(ctx, a.opts.Timeout, a.opts.Binary, "reset", name)
	return err
}

func (a *Adapter) runAsync(subcommand, name string) <-chan error {
	result := make(chan error, 1)
	go func() {
		_, err := a.run(context.Background(), a.opts.Timeout, a.opts.Binary, subcommand, name)
		result <- err
	}()
	return result
}

// SetMemory resizes a running VM's live memory target. bytes must be at
// least MinSetMemory; the hypervisor's memory-resize subcommand takes a
// KiB argument per §4.1's unit convention.
func (a *Adapter) SetMemory(ctx context.Context, name string, bytes uint64) error {
	if bytes < MinSetMemory {
		return &domain.ValidationError{Field: "bytes", Reason: fmt.Sprintf("must be >= %d (256 MiB), got %d", MinSetMemory, bytes)}
	}
	kib := strconv.FormatUint(bytes/1024, 10)
	_, err := a.run(ctx, a.opts.Timeout, a.opts.Binary, "setmem", name, kib, "--live")
	if err == nil && a.log != nil {
		a.log.Info("VM %s: live memory set to %d bytes", name, bytes)
	}
	return err
}
