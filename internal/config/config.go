// Package config loads the dashboard's optional YAML configuration file
// and exposes the resolved, effective settings. Grounded on the teacher's
// daemon/domain/fileconfig.go pointer-field-per-override pattern: every
// file field is a pointer so "unset in the file" is distinguishable from
// "explicitly set to the zero value".
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vmdash/vmdash/internal/balloon"
)

// DefaultPath is the dashboard's default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vmdash/config.yml"
	}
	return filepath.Join(home, ".config", "vmdash", "config.yml")
}

// FileBalloonParams mirrors balloon.Params with every field optional, for
// global defaults and per-VM overrides in the config file.
type FileBalloonParams struct {
	MinActualMiB    *uint64  `yaml:"min_actual_mib,omitempty"`
	TriggerIncrease *float64 `yaml:"trigger_increase,omitempty"`
	IncreaseBy      *int     `yaml:"increase_by,omitempty"`
	TriggerDecrease *float64 `yaml:"trigger_decrease,omitempty"`
	DecreaseBy      *int     `yaml:"decrease_by,omitempty"`
	BackOffSec      *int64   `yaml:"back_off_sec,omitempty"`
	BootBackOffSec  *int64   `yaml:"boot_back_off_sec,omitempty"`
}

// FileConfig is the YAML configuration file structure.
type FileConfig struct {
	HypervisorBinary  *string `yaml:"hypervisor_binary,omitempty"`
	PollIntervalSec   *int    `yaml:"poll_interval_sec,omitempty"`
	LogLevel          *string `yaml:"log_level,omitempty"`
	LogDir            *string `yaml:"log_dir,omitempty"`
	BallooningEnabled *bool   `yaml:"ballooning_enabled,omitempty"`

	Ballooning  *FileBalloonParams           `yaml:"ballooning,omitempty"`
	VMOverrides map[string]FileBalloonParams `yaml:"vm_overrides,omitempty"`
}

// LoadFile reads and parses a YAML config file. Returns nil without error
// if the file does not exist, matching the teacher's LoadConfigFile.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a trusted config file path, not user input
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}

// Effective is the resolved configuration the rest of the program consumes.
type Effective struct {
	HypervisorBinary  string
	PollInterval      int // seconds
	LogLevel          string
	LogDir            string
	BallooningEnabled bool

	BallooningDefaults balloon.Params
	VMOverrides        map[string]balloon.Params
}

// DefaultEffective returns the dashboard's built-in defaults, reproducing
// the original's argument-free behavior exactly when no config file or CLI
// flags are given.
func DefaultEffective() Effective {
	return Effective{
		HypervisorBinary:   "virsh",
		PollInterval:       2,
		LogLevel:           "info",
		LogDir:             "/var/log/vmdash",
		BallooningEnabled:  true,
		BallooningDefaults: balloon.Defaults(),
		VMOverrides:        make(map[string]balloon.Params),
	}
}

// ApplyFile merges a parsed FileConfig's present fields onto eff.
func ApplyFile(eff Effective, fc *FileConfig) Effective {
	if fc == nil {
		return eff
	}
	if fc.HypervisorBinary != nil {
		eff.HypervisorBinary = *fc.HypervisorBinary
	}
	if fc.PollIntervalSec != nil {
		eff.PollInterval = *fc.PollIntervalSec
	}
	if fc.LogLevel != nil {
		eff.LogLevel = *fc.LogLevel
	}
	if fc.LogDir != nil {
		eff.LogDir = *fc.LogDir
	}
	if fc.BallooningEnabled != nil {
		eff.BallooningEnabled = *fc.BallooningEnabled
	}
	eff.BallooningDefaults = applyBalloonOverride(eff.BallooningDefaults, fc.Ballooning)

	if len(fc.VMOverrides) > 0 {
		merged := make(map[string]balloon.Params, len(fc.VMOverrides))
		for name, override := range fc.VMOverrides {
			o := override
			merged[name] = applyBalloonOverride(eff.BallooningDefaults, &o)
		}
		eff.VMOverrides = merged
	}
	return eff
}

func applyBalloonOverride(p balloon.Params, f *FileBalloonParams) balloon.Params {
	if f == nil {
		return p
	}
	if f.MinActualMiB != nil {
		p.MinActual = *f.MinActualMiB * 1024 * 1024
	}
	if f.TriggerIncrease != nil {
		p.TriggerIncrease = *f.TriggerIncrease
	}
	if f.IncreaseBy != nil {
		p.IncreaseBy = *f.IncreaseBy
	}
	if f.TriggerDecrease != nil {
		p.TriggerDecrease = *f.TriggerDecrease
	}
	if f.DecreaseBy != nil {
		p.DecreaseBy = *f.DecreaseBy
	}
	if f.BackOffSec != nil {
		p.BackOffSec = *f.BackOffSec
	}
	if f.BootBackOffSec != nil {
		p.BootBackOffSec = *f.BootBackOffSec
	}
	return p
}
