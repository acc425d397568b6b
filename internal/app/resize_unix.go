//go:build unix

package app

import (
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/vmdash/vmdash/internal/eventqueue"
)

// startResizeBridge installs the terminal-resize signal bridge of §5: a
// SIGWINCH handler that does the only operation safe from signal context
// (Go's runtime delivers the signal as a channel send, itself
// async-signal-safe), and a separate reader goroutine that queries the new
// terminal size and posts a TTYSizeEvent. This is the self-pipe pattern
// realized with Go's channel-based signal delivery standing in for the
// pipe, per §5's literal wording.
func startResizeBridge(queue *eventqueue.Queue) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				if w, h, err := termSize(); err == nil {
					queue.Post(eventqueue.TTYSizeEvent{Width: w, Height: h})
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

func termSize() (width, height int, err error) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil {
		return 0, 0, err
	}
	return int(ws.Col), int(ws.Row), nil
}
