// Package app implements the AppController of spec.md §4.7: it composes the
// SamplingCache, BallooningController and Screen/Window model into a single
// running dashboard, wiring the producer threads of §5 onto the EventQueue.
//
// Grounded on the teacher's daemon/app.go composition root: one struct holds
// every collaborator and a single Run method starts the producers and blocks
// until shutdown.
package app

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vmdash/vmdash/internal/balloon"
	"github.com/vmdash/vmdash/internal/cache"
	"github.com/vmdash/vmdash/internal/config"
	"github.com/vmdash/vmdash/internal/domain"
	"github.com/vmdash/vmdash/internal/eventqueue"
	"github.com/vmdash/vmdash/internal/logger"
	"github.com/vmdash/vmdash/internal/tui"
)

// VMController is the subset of hypervisor.Adapter the power popup needs.
type VMController interface {
	Start(name string) <-chan error
	Shutdown(name string) <-chan error
	Reboot(ctx context.Context, name string) error
	Reset(ctx context.Context, name string) error
}

// ViewerLauncher starts the external graphical console for name. Grounded on
// the teacher's lib.ExecCommand launcher idiom: fire-and-forget, errors are
// logged, never fatal.
type ViewerLauncher func(name string) error

// ExecViewerLauncher shells out to virt-viewer, matching §1's "graphical
// viewer process" external collaborator.
func ExecViewerLauncher(name string) error {
	cmd := exec.Command("virt-viewer", "--connect", "qemu:///system", name)
	return cmd.Start()
}

// Controller is the AppController.
type Controller struct {
	queue   *eventqueue.Queue
	cache   *cache.Cache
	balloon *balloon.Controller
	hv      VMController
	log     *logger.Logger
	launch  ViewerLauncher

	screen *tui.Screen
	vmWin  *VMWindow
	sysWin *tui.Window
	logWin *tui.Window

	pollInterval time.Duration
	program      *tea.Program

	screenW, screenH int
}

// New constructs a Controller. pollInterval is the timer producer's period
// (2s per §4.7; configurable via Effective.PollInterval).
func New(c *cache.Cache, bc *balloon.Controller, hv VMController, log *logger.Logger, pollInterval time.Duration, launch ViewerLauncher) *Controller {
	if launch == nil {
		launch = ExecViewerLauncher
	}
	screen := tui.NewScreen()
	vmWin := NewVMWindow()
	sysWin := tui.NewWindow("System")
	logWin := tui.NewWindow("Log")
	logWin.AutoScroll = true

	screen.AddTiledWindow("1", vmWin.Window)
	screen.AddTiledWindow("2", sysWin)
	screen.AddTiledWindow("3", logWin)

	return &Controller{
		queue:        eventqueue.New(),
		cache:        c,
		balloon:      bc,
		hv:           hv,
		log:          log,
		launch:       launch,
		screen:       screen,
		vmWin:        vmWin,
		sysWin:       sysWin,
		logWin:       logWin,
		pollInterval: pollInterval,
	}
}

// Run starts every producer thread from §5 and blocks until the user quits
// or a fatal error terminates the event loop.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newModel(c.queue)
	c.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())

	logCh := c.log.Sub()
	defer c.log.Unsub(logCh)
	go c.runLogProducer(ctx, logCh)

	go c.runTimerProducer(ctx)
	stopResize := startResizeBridge(c.queue)
	defer stopResize()

	loopErr := make(chan error, 1)
	go func() {
		err := c.queue.RunLoop(c.handleEvent)
		loopErr <- err
		c.program.Send(quitMsg{})
	}()

	_, runErr := c.program.Run()
	cancel()
	c.queue.Stop()
	if err := <-loopErr; err != nil {
		return err
	}
	return runErr
}

// ApplyConfigReload applies the reloaded per-VM ballooning overrides after a
// hot config reload. Posted onto the queue as a closure so it only ever runs
// on the event-loop goroutine, per §5's shared-resource policy. Changed
// global ballooning defaults, poll interval and ballooning_enabled are only
// logged, not applied; VMs without an override keep their current
// parameters.
func (c *Controller) ApplyConfigReload(eff config.Effective) {
	c.queue.Submit(func() {
		for name, p := range eff.VMOverrides {
			c.balloon.SetParams(name, p)
		}
		c.logWin.AddLine(fmt.Sprintf("config reloaded: poll=%ds ballooning=%v", eff.PollInterval, eff.BallooningEnabled))
	})
}

func (c *Controller) runTimerProducer(ctx context.Context) {
	t := time.NewTicker(c.pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.queue.Submit(c.onTick)
		}
	}
}

func (c *Controller) runLogProducer(ctx context.Context, ch chan any) {
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			entry, ok := v.(logger.Entry)
			if !ok {
				continue
			}
			c.queue.Submit(func() { c.appendLog(entry) })
		}
	}
}

func (c *Controller) appendLog(e logger.Entry) {
	c.logWin.AddLine(fmt.Sprintf("%s [%s] %s", e.At.Format("15:04:05"), e.Level, e.Text))
}

// onTick realizes "cache.update -> balloon.update -> windows.refresh".
func (c *Controller) onTick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.cache.Update(ctx); err != nil {
		c.log.Error("cache update failed: %v", err)
		return
	}
	snap := c.cache.Snapshot()
	c.balloon.Update(ctx, snap)
	c.refreshWindows(snap)
}

func (c *Controller) refreshWindows(snap domain.Snapshot) {
	c.vmWin.Refresh(snap, c.balloon)
	c.sysWin.SetContent(formatSystemLines(snap))
}

func (c *Controller) handleEvent(e eventqueue.Event) error {
	switch v := e.(type) {
	case eventqueue.KeyEvent:
		c.onKey(v.Key)
	case eventqueue.MouseEvent:
		c.onMouse(v)
	case eventqueue.TTYSizeEvent:
		c.onResize(v.Width, v.Height)
	case eventqueue.EmptyQueueEvent:
		c.renderIfDirty()
	case eventqueue.ErrorEvent:
		return v.Cause
	}
	return nil
}

func (c *Controller) onResize(w, h int) {
	c.screenW, c.screenH = w, h
	relayout(c.vmWin.Window, c.sysWin, c.logWin, w, h)
	c.screen.Layout()
}

func (c *Controller) renderIfDirty() {
	plan := c.screen.Repaint()
	if len(plan.Tiled) == 0 && len(plan.Popups) == 0 {
		return
	}
	lines := render(c.screen, c.screenW, c.screenH)
	if c.program != nil {
		c.program.Send(frameMsg{lines: lines})
	}
}
