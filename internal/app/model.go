package app

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vmdash/vmdash/internal/eventqueue"
)

// model is the bubbletea Model. It owns no dashboard state itself: every
// key/mouse/resize message it receives is immediately translated into an
// EventQueue post and forwarded, per §5's "producer threads only post or
// submit" policy. The EventQueue's own run_loop goroutine — not this
// Update method — is the single owner of Screen/Cache/Balloon state; model
// only remembers the most recently rendered frame so View can draw it.
type model struct {
	queue *eventqueue.Queue
	frame []string
}

func newModel(queue *eventqueue.Queue) *model {
	return &model{queue: queue}
}

// frameMsg carries a freshly rendered frame from the run_loop goroutine
// back into bubbletea via Program.Send, which is safe to call from any
// goroutine.
type frameMsg struct{ lines []string }

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.KeyMsg:
		m.queue.Post(eventqueue.KeyEvent{Key: v.String()})
	case tea.MouseMsg:
		m.queue.Post(eventqueue.MouseEvent{Button: v.Button.String(), X: v.X, Y: v.Y})
	case tea.WindowSizeMsg:
		m.queue.Post(eventqueue.TTYSizeEvent{Width: v.Width, Height: v.Height})
	case frameMsg:
		m.frame = v.lines
	case quitMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) View() string {
	return strings.Join(m.frame, "\n")
}

// quitMsg is sent by the run_loop goroutine (via Program.Send) when it has
// terminated, so bubbletea's own loop exits in lockstep.
type quitMsg struct{}
