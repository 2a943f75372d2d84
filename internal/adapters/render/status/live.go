package status

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/mirrorctl/internal/application"
	"github.com/bnema/mirrorctl/internal/domain"
)

const maxLiveNotifications = 8

type (
	liveTickMsg     time.Time
	liveEventMsg    domain.Notification
	liveEventsEnded struct{}
)

// LiveModel redraws a coordinator snapshot on an interval and tails its
// notifications until the user quits or the event stream closes.
type LiveModel struct {
	snapshot func() application.Snapshot
	events   <-chan domain.Notification
	interval time.Duration
	now      func() time.Time
	opts     RenderOptions

	spinner spinner.Model
	styles  styles
	current application.Snapshot
	notes   []domain.Notification
}

func NewLiveModel(snapshot func() application.Snapshot, events <-chan domain.Notification, interval time.Duration, opts RenderOptions) LiveModel {
	if interval <= 0 {
		interval = time.Second
	}

	return LiveModel{
		snapshot: snapshot,
		events:   events,
		interval: interval,
		now:      time.Now,
		opts:     opts,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		styles:  newStyles(),
		current: snapshot(),
	}
}

func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick(), m.waitForEvent())
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case liveTickMsg:
		m.current = m.snapshot()
		return m, m.tick()
	case liveEventMsg:
		m.notes = append(m.notes, domain.Notification(msg))
		if len(m.notes) > maxLiveNotifications {
			m.notes = m.notes[len(m.notes)-maxLiveNotifications:]
		}
		m.current = m.snapshot()
		return m, m.waitForEvent()
	case liveEventsEnded:
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m LiveModel) View() string {
	if m.current.UpdatedAt.IsZero() && m.current.LastError == "" {
		return fmt.Sprintf("%s Scanning devices...\n", m.spinner.View())
	}

	opts := m.opts
	opts.Now = m.now()
	opts.Notifications = m.notes

	return renderView(m.current, opts, m.styles) + "\n" + m.styles.empty.Render("q to quit") + "\n"
}

// Notifications returns the tail of notifications the model has received.
func (m LiveModel) Notifications() []domain.Notification {
	return append([]domain.Notification(nil), m.notes...)
}

func (m LiveModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return liveTickMsg(t)
	})
}

func (m LiveModel) waitForEvent() tea.Cmd {
	events := m.events
	if events == nil {
		return nil
	}

	return func() tea.Msg {
		n, ok := <-events
		if !ok {
			return liveEventsEnded{}
		}
		return liveEventMsg(n)
	}
}
