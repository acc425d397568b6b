package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vmdash/vmdash/internal/eventqueue"
	"github.com/vmdash/vmdash/internal/tui"
)

// onKey dispatches one keystroke. A popup, if open, always receives the key
// first; otherwise it falls through to the active tiled window's per-VM key
// map (when VMWindow is active) or the global quit key.
func (c *Controller) onKey(key string) {
	if p := c.screen.TopPopup(); p != nil {
		_, shouldClose := p.HandleKey(key)
		if shouldClose {
			c.screen.RemovePopup()
		} else {
			c.screen.Invalidate(p.Window)
		}
		return
	}

	if key == "1" || key == "2" || key == "3" {
		c.screen.ActivateByShortcut(key)
		return
	}

	if c.screen.ActiveWindow() == c.vmWin.Window {
		if c.handleVMKey(key) {
			return
		}
	}

	switch key {
	case "q", "esc":
		c.queue.Stop()
	default:
		if active := c.screen.ActiveWindow(); active != nil && active.HandleKey(key) {
			c.screen.Invalidate(active)
		}
	}
}

// handleVMKey implements §4.7's per-VM key map. Returns true if the key was
// one of the per-VM actions (whether or not a VM was selected).
func (c *Controller) handleVMKey(key string) bool {
	switch key {
	case "p":
		c.openPowerPopup()
		return true
	case "v":
		c.launchViewer()
		return true
	case "b":
		c.toggleBallooning()
		return true
	case "d":
		if name, ok := c.vmWin.SelectedVM(); ok {
			c.vmWin.ToggleDiskStats(name)
			c.screen.Invalidate(c.vmWin.Window)
		}
		return true
	}
	if c.vmWin.HandleKey(key) {
		c.screen.Invalidate(c.vmWin.Window)
		return true
	}
	return false
}

func (c *Controller) openPowerPopup() {
	name, ok := c.vmWin.SelectedVM()
	if !ok {
		return
	}
	options := []tui.PickerOption{
		{Key: "s", Label: "start", Callback: func() { c.doStart(name) }},
		{Key: "o", Label: "shutdown", Callback: func() { c.doShutdown(name) }},
		{Key: "r", Label: "reboot", Callback: func() { c.doReboot(name) }},
		{Key: "R", Label: "reset", Callback: func() { c.doReset(name) }},
	}
	p := tui.NewPickerWindow(fmt.Sprintf("power: %s", name), c.screenW, c.screenH, options)
	c.screen.AddPopup(p.PopupWindow)
}

func (c *Controller) launchViewer() {
	name, ok := c.vmWin.SelectedVM()
	if !ok {
		return
	}
	go func() {
		if err := c.launch(name); err != nil {
			c.log.Error("launching viewer for %s: %v", name, err)
		}
	}()
}

func (c *Controller) toggleBallooning() {
	name, ok := c.vmWin.SelectedVM()
	if !ok {
		return
	}
	if !c.cache.Running(name) {
		return
	}
	c.balloon.SetEnabled(name, !c.balloon.Enabled(name))
}

// doStart/doShutdown run asynchronously per §4.1: the HypervisorAdapter's
// channel completes on its own goroutine, which only posts a closure back
// onto the event loop to log the outcome.
func (c *Controller) doStart(name string) {
	ch := c.hv.Start(name)
	go func() {
		err := <-ch
		c.queue.Submit(func() {
			if err != nil {
				c.log.Error("start %s: %v", name, err)
			} else {
				c.log.Info("started %s", name)
			}
		})
	}()
}

func (c *Controller) doShutdown(name string) {
	ch := c.hv.Shutdown(name)
	go func() {
		err := <-ch
		c.queue.Submit(func() {
			if err != nil {
				c.log.Error("shutdown %s: %v", name, err)
			} else {
				c.log.Info("shutdown requested for %s", name)
			}
		})
	}()
}

// doReboot/doReset run synchronously per §4.1, blocking the event loop
// briefly — documented in §5 as an accepted, user-initiated suspension.
func (c *Controller) doReboot(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.hv.Reboot(ctx, name); err != nil {
		c.log.Error("reboot %s: %v", name, err)
	} else {
		c.log.Info("rebooted %s", name)
	}
}

func (c *Controller) doReset(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.hv.Reset(ctx, name); err != nil {
		c.log.Error("reset %s: %v", name, err)
	} else {
		c.log.Info("reset %s", name)
	}
}

func (c *Controller) onMouse(e eventqueue.MouseEvent) {
	if p := c.screen.TopPopup(); p != nil {
		if p.HandleMouse(e.Button, e.X-p.Rect.X, e.Y-p.Rect.Y) {
			c.screen.Invalidate(p.Window)
		}
		return
	}
	if active := c.screen.ActiveWindow(); active != nil {
		if active.HandleMouse(e.Button, e.X-active.Rect.X, e.Y-active.Rect.Y) {
			c.screen.Invalidate(active)
		}
	}
}
