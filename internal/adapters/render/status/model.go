package status

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/mirrorctl/internal/application"
)

var ErrUnexpectedRenderModel = errors.New("unexpected final bubbletea model type")

type drawMsg struct{}

// frame is a program that draws once and quits.
type frame struct {
	draw func() string
	out  string
}

func (f frame) Init() tea.Cmd {
	return func() tea.Msg { return drawMsg{} }
}

func (f frame) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if _, ok := msg.(drawMsg); ok {
		f.out = f.draw()
		return f, tea.Quit
	}

	return f, nil
}

func (f frame) View() string {
	return f.out
}

// Render draws a snapshot for one-shot commands.
func Render(snapshot application.Snapshot, opts RenderOptions) (string, error) {
	s := newStyles()
	return runFrame(func() string {
		return renderView(snapshot, opts, s)
	})
}

func runFrame(draw func() string) (string, error) {
	final, err := tea.NewProgram(frame{draw: draw}, tea.WithInput(nil), tea.WithOutput(io.Discard)).Run()
	if err != nil {
		return "", err
	}

	drawn, ok := final.(frame)
	if !ok {
		return "", ErrUnexpectedRenderModel
	}

	return drawn.out, nil
}
