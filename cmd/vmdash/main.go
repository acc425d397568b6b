// Command vmdash is the dashboard's single executable. Default invocation
// (no flags) runs the interactive TUI exactly as spec.md describes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/vmdash/vmdash/internal/app"
	"github.com/vmdash/vmdash/internal/balloon"
	"github.com/vmdash/vmdash/internal/cache"
	"github.com/vmdash/vmdash/internal/config"
	"github.com/vmdash/vmdash/internal/domain"
	"github.com/vmdash/vmdash/internal/hypervisor"
	"github.com/vmdash/vmdash/internal/logger"
	"github.com/vmdash/vmdash/internal/sysinfo"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cli struct {
	Config     string `default:"" help:"path to the YAML config file (default: ~/.config/vmdash/config.yml)"`
	LogLevel   string `default:"" help:"log level: debug, info, warning, error (overrides the config file)"`
	LogDir     string `default:"" help:"directory for the rotated log file (overrides the config file)"`
	NoBalloon  bool   `default:"false" help:"disable auto-ballooning entirely, regardless of config"`
	Hypervisor string `default:"" help:"hypervisor CLI binary (overrides the config file)"`
}

func main() {
	kong.Parse(&cli, kong.Name("vmdash"), kong.Description("interactive libvirt/QEMU VM dashboard"))

	if err := run(); err != nil {
		var fatal *domain.FatalError
		if errors.As(err, &fatal) {
			fmt.Fprintf(os.Stderr, "vmdash: %v\n", fatal)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "vmdash: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := cli.Config
	if configPath == "" {
		configPath = config.DefaultPath()
	}

	eff := config.DefaultEffective()
	fc, err := config.LoadFile(configPath)
	if err != nil {
		return &domain.FatalError{Reason: "loading config file", Err: err}
	}
	eff = config.ApplyFile(eff, fc)

	if cli.Hypervisor != "" {
		eff.HypervisorBinary = cli.Hypervisor
	}
	if cli.LogLevel != "" {
		eff.LogLevel = cli.LogLevel
	}
	if cli.LogDir != "" {
		eff.LogDir = cli.LogDir
	}
	if cli.NoBalloon {
		eff.BallooningEnabled = false
	}

	log := logger.New(parseLevel(eff.LogLevel), 256)

	if err := os.MkdirAll(eff.LogDir, 0o755); err != nil {
		return &domain.FatalError{Reason: "creating log directory", Err: err}
	}
	fileSink := logger.NewFileSink(log, eff.LogDir+"/vmdash.log", 10, 3, 14)
	defer fileSink.Close()

	if err := hypervisor.Probe(""); err != nil {
		return &domain.FatalError{Reason: "connecting to libvirtd", Err: err}
	}

	hvOpts := hypervisor.NewOptions()
	hvOpts.Binary = eff.HypervisorBinary
	adapter := hypervisor.New(hvOpts)
	adapter.SetLogger(log)

	sysProv := sysinfo.New()

	hostInfoCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	hostCPU, err := adapter.HostInfo(hostInfoCtx)
	cancel()
	if err != nil {
		return &domain.FatalError{Reason: "reading host CPU topology (is " + eff.HypervisorBinary + " installed?)", Err: err}
	}

	c := cache.New(adapter, sysProv, hostCPU.CPUs())
	bc := balloon.New(c, eff.BallooningDefaults, log)
	for name, p := range eff.VMOverrides {
		bc.SetParams(name, p)
	}
	if !eff.BallooningEnabled {
		bc.SetGlobalEnabled(false)
	}

	pollInterval := time.Duration(eff.PollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	ctrl := app.New(c, bc, adapter, log, pollInterval, app.ExecViewerLauncher)

	watcher, err := config.NewWatcher(configPath, eff, log)
	if err == nil {
		stop := make(chan struct{})
		defer close(stop)
		go watcher.Run(stop, ctrl.ApplyConfigReload)
	}

	return ctrl.Run(context.Background())
}

func parseLevel(s string) logger.Level {
	switch strings.ToLower(s) {
	case "debug":
		return logger.LevelDebug
	case "warning", "warn":
		return logger.LevelWarning
	case "error":
		return logger.LevelError
	default:
		return logger.LevelInfo
	}
}
