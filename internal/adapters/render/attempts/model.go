// Package attempts renders the attempt report printed by `grader attempts list`.
package attempts

import (
	"errors"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/grader/internal/application"
)

var errReportModel = errors.New("attempt report: program returned a foreign model")

// reportMsg carries the finished report back into Update.
type reportMsg string

// report is a one-shot program: Init lays out the views, Update stores the
// text and quits.
type report struct {
	views []application.AttemptView
	opts  RenderOptions
	text  string
}

func (r report) Init() tea.Cmd {
	views, opts := r.views, r.opts
	return func() tea.Msg {
		return reportMsg(renderView(views, opts, newStyles()))
	}
}

func (r report) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if text, ok := msg.(reportMsg); ok {
		r.text = string(text)
		return r, tea.Quit
	}
	return r, nil
}

func (r report) View() string {
	return r.text
}

// Render lays out views without touching the terminal.
func Render(views []application.AttemptView, opts RenderOptions) (string, error) {
	final, err := tea.NewProgram(
		report{views: views, opts: opts},
		tea.WithInput(nil),
		tea.WithOutput(io.Discard),
	).Run()
	if err != nil {
		return "", err
	}

	done, ok := final.(report)
	if !ok {
		return "", errReportModel
	}
	return done.text, nil
}
