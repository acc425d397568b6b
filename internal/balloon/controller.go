// Package balloon implements the BallooningController of spec.md §4.4: a
// per-VM closed-loop controller that inflates a running VM's balloon target
// aggressively on guest memory pressure and deflates it gently, subject to
// a cool-down back-off.
package balloon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vmdash/vmdash/internal/domain"
	"github.com/vmdash/vmdash/internal/format"
	"github.com/vmdash/vmdash/internal/logger"
)

// MemorySetter is the subset of the SamplingCache the controller depends on
// to apply a decision.
type MemorySetter interface {
	SetMemory(ctx context.Context, name string, newActual uint64) error
}

// SubController is one VM's ballooning state machine. Construct it with
// newSubController; the zero value is a disabled controller with no history.
type SubController struct {
	params        Params
	enabled       bool
	backOffUntil  time.Time
	lastUpdateSec int64
	hasLastUpdate bool
	status        string
}

func newSubController(p Params) *SubController {
	return &SubController{params: p, enabled: true, status: "sweet spot"}
}

// Status returns the sub-controller's most recent status text.
func (s *SubController) Status() string {
	return s.status
}

// Enabled reports whether this VM's auto-ballooning is switched on.
func (s *SubController) Enabled() bool {
	return s.enabled
}

// SetEnabled toggles auto-ballooning for this VM. Per §4.4, toggling clears
// any active cool-down immediately, reflecting the user's explicit intent.
func (s *SubController) SetEnabled(enabled bool) {
	s.enabled = enabled
	s.backOffUntil = time.Time{}
}

// SetParams replaces this VM's tuning parameters, clearing the back-off.
func (s *SubController) SetParams(p Params) {
	s.params = p
	s.backOffUntil = time.Time{}
}

// tick runs one decision cycle for this VM, per §4.4's numbered algorithm.
func (s *SubController) tick(ctx context.Context, name string, vc domain.VMCache, setter MemorySetter, now time.Time, log *logger.Logger) {
	if !s.enabled {
		s.status = "disabled"
		s.backOffUntil = time.Time{}
		return
	}

	if !vc.Data.HasMemStat || !vc.Data.Running() {
		s.backOffUntil = laterTime(s.backOffUntil, now.Add(time.Duration(s.params.BootBackOffSec)*time.Second))
		s.status = "vm stopped"
		return
	}

	mem := vc.Data.MemStat
	if !mem.HasGuestData {
		s.status = "ballooning unsupported"
		return
	}

	if s.hasLastUpdate && mem.LastUpdatedSec == s.lastUpdateSec {
		s.status = "no new data"
		return
	}

	percentUsed := mem.GuestMem.PercentUsed()

	var delta int
	switch {
	case percentUsed >= s.params.TriggerIncrease:
		delta = s.params.IncreaseBy
	case percentUsed <= s.params.TriggerDecrease:
		if now.Before(s.backOffUntil) {
			remaining := int64(s.backOffUntil.Sub(now).Round(time.Second).Seconds())
			s.status = fmt.Sprintf("backing off for %ds", remaining)
			return
		}
		delta = -s.params.DecreaseBy
	default:
		s.status = "sweet spot"
		return
	}

	info := vc.Data.Info
	newActual, capped, unchanged := clampActual(mem.Actual, delta, s.params.MinActual, info.MaxMemory)

	if err := setter.SetMemory(ctx, name, newActual); err != nil {
		if log != nil {
			log.Warning("balloon: set_memory failed for %s: %v", name, err)
		}
		return
	}

	newEnd := now.Add(time.Duration(s.params.BackOffSec) * time.Second)
	if delta > 0 {
		s.backOffUntil = newEnd // inflate overrides any active back-off
	} else {
		s.backOffUntil = laterTime(s.backOffUntil, newEnd) // idempotent extension only
	}
	s.lastUpdateSec = mem.LastUpdatedSec
	s.hasLastUpdate = true

	switch {
	case unchanged:
		s.status = fmt.Sprintf("capped at %s, actual unchanged", format.Bytes(newActual))
	case capped:
		s.status = fmt.Sprintf("capping actual by %d%% to %s", delta, format.Bytes(newActual))
	default:
		s.status = fmt.Sprintf("updating actual by %d%% to %s", delta, format.Bytes(newActual))
	}
}

// clampActual computes the new balloon target for a relative delta percent
// and reports whether the bound clamp altered the raw result (capped) and
// whether the clamped result equals the VM's current actual (unchanged).
func clampActual(actual uint64, deltaPercent int, minActual, maxMemory uint64) (newActual uint64, capped bool, unchanged bool) {
	raw := int64(actual) * int64(100+deltaPercent) / 100
	clamped := raw
	if clamped < int64(minActual) {
		clamped = int64(minActual)
	}
	if maxMemory > 0 && clamped > int64(maxMemory) {
		clamped = int64(maxMemory)
	}
	if clamped < 0 {
		clamped = 0
	}
	return uint64(clamped), clamped != raw, uint64(clamped) == actual
}

func laterTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// Controller is the parent BallooningController: it owns one SubController
// per VM and prunes entries for VMs that have disappeared from the cache.
type Controller struct {
	setter   MemorySetter
	defaults Params
	log      *logger.Logger

	mu               sync.Mutex
	subs             map[string]*SubController
	disabledGlobally bool
}

// New creates a Controller. defaults are applied to every newly seen VM;
// override a specific VM's parameters later via SetParams(name, p).
func New(setter MemorySetter, defaults Params, log *logger.Logger) *Controller {
	return &Controller{
		setter:   setter,
		defaults: defaults,
		log:      log,
		subs:     make(map[string]*SubController),
	}
}

// Update runs one tick for every VM named in snap, creating sub-controllers
// for newly seen VMs and pruning ones whose VM disappeared.
func (c *Controller) Update(ctx context.Context, snap domain.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	seen := make(map[string]struct{}, len(snap.PerVM))
	for name, vc := range snap.PerVM {
		seen[name] = struct{}{}
		sub, ok := c.subs[name]
		if !ok {
			sub = newSubController(c.defaults)
			if c.disabledGlobally {
				sub.enabled = false
			}
			c.subs[name] = sub
		}
		sub.tick(ctx, name, vc, c.setter, now, c.log)
	}

	for name := range c.subs {
		if _, ok := seen[name]; !ok {
			delete(c.subs, name)
		}
	}
}

// Status returns a VM's current sub-controller status text.
func (c *Controller) Status(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[name]
	if !ok {
		return "", false
	}
	return sub.Status(), true
}

// Enabled reports whether auto-ballooning is switched on for a VM. Unknown
// VMs report the controller's default-enabled state (true).
func (c *Controller) Enabled(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[name]
	if !ok {
		return true
	}
	return sub.Enabled()
}

// SetEnabled toggles auto-ballooning for a VM, creating its sub-controller
// if it does not yet exist.
func (c *Controller) SetEnabled(name string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[name]
	if !ok {
		sub = newSubController(c.defaults)
		c.subs[name] = sub
	}
	sub.SetEnabled(enabled)
}

// SetGlobalEnabled disables (or re-enables) auto-ballooning dashboard-wide,
// immediately applying it to every VM currently tracked — used by the
// --no-balloon flag. Per-VM toggles made afterward (the 'b' key) still take
// effect; this only sets the starting state.
func (c *Controller) SetGlobalEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabledGlobally = !enabled
	for _, sub := range c.subs {
		sub.SetEnabled(enabled)
	}
}

// SetParams overrides one VM's tuning parameters.
func (c *Controller) SetParams(name string, p Params) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, ok := c.subs[name]
	if !ok {
		sub = newSubController(p)
		c.subs[name] = sub
		return
	}
	sub.SetParams(p)
}
