package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Scans that finish quickly never show an elapsed counter.
const showElapsedAfter = 2 * time.Second

type scanFinishedMsg struct {
	err error
}

type scanModel struct {
	spin    spinner.Model
	label   string
	work    tea.Cmd
	started time.Time
	now     func() time.Time
	result  error
	done    bool
}

func newScanModel(label string, work tea.Cmd) scanModel {
	return scanModel{
		spin: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		label:   label,
		work:    work,
		started: time.Now(),
		now:     time.Now,
	}
}

func (m scanModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.work)
}

func (m scanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanFinishedMsg:
		m.done, m.result = true, msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m scanModel) View() string {
	if m.done {
		return ""
	}

	line := m.spin.View() + " " + m.label
	if elapsed := m.now().Sub(m.started); elapsed >= showElapsedAfter {
		line += fmt.Sprintf(" (%ds)", int(elapsed.Seconds()))
	}

	return line
}

// runScanSpinner animates label on output until scan returns.
func runScanSpinner(ctx context.Context, output io.Writer, label string, scan func(context.Context) error) error {
	work := func() tea.Msg {
		return scanFinishedMsg{err: scan(ctx)}
	}

	final, err := tea.NewProgram(newScanModel(label, work),
		tea.WithContext(ctx),
		tea.WithInput(nil),
		tea.WithOutput(output),
	).Run()
	if err != nil {
		return err
	}

	m, ok := final.(scanModel)
	if !ok {
		return fmt.Errorf("scan spinner ended with %T", final)
	}

	return m.result
}
