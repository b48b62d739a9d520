package attempts

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/grader/internal/application"
	"github.com/bnema/grader/internal/domain"
)

type RenderOptions struct {
	ToolKey domain.ToolKeyID
	// ShowReferences appends the secured reference under each attempt.
	ShowReferences bool
	Location       *time.Location
}

const scoreBarWidth = 20

func renderView(views []application.AttemptView, opts RenderOptions, s styles) string {
	title := "Attempts"
	if opts.ToolKey != "" {
		title = fmt.Sprintf("Attempts for %s", opts.ToolKey)
	}
	lines := []string{
		s.title.Render(title),
		s.header.Render(fmt.Sprintf("attempts: %d", len(views))),
	}

	if len(views) == 0 {
		lines = append(lines, s.empty.Render("No attempts recorded."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, view := range views {
		lines = append(lines, renderAttempt(view, opts, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAttempt(view application.AttemptView, opts RenderOptions, s styles) string {
	attempt := view.Attempt
	head := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.serial.Render(fmt.Sprintf("#%d", attempt.SerialID)),
		" ",
		s.user.Render(attempt.OriginalResourceUser.UserID),
		" ",
		s.detail.Render(attempt.FileName),
		" ",
		s.detail.Render(formatCreated(attempt.CreatedAt, opts.Location)),
	)

	parts := []string{head, "  " + resultLine(view, s)}
	if attempt.IsReassessment() {
		parts = append(parts, "  "+s.reassessed.Render("reassessed by "+attempt.ResourceUser.UserID))
	}
	if view.Receipt != "" {
		parts = append(parts, "  "+s.detail.Render("receipt: "+view.Receipt))
	}
	if opts.ShowReferences && view.Reference != "" {
		parts = append(parts, "  "+s.detail.Render("reference: "+view.Reference))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func resultLine(view application.AttemptView, s styles) string {
	attempt := view.Attempt
	if attempt.Failed() {
		return s.failure.Render(fmt.Sprintf("%s (code %d)", failureLabel(attempt.ErrorCode), attempt.ErrorCode))
	}

	scoreStyle := lipgloss.NewStyle().Foreground(interpolateColor(float64(attempt.Score), 0, domain.MaxScore))
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		renderScoreBar(attempt.Score, scoreBarWidth, s),
		" ",
		scoreStyle.Render(view.Score+"/10"),
		" ",
		s.detail.Render(outcomeLabel(attempt.ErrorCode)),
	)
}

func failureLabel(code int) string {
	return strings.ReplaceAll(domain.FailureKind(code).String(), "_", " ")
}

func outcomeLabel(errorCode int) string {
	if errorCode == domain.ErrorCodeWithOutcome {
		return "outcome sent"
	}
	return "no outcome"
}

func renderScoreBar(score, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * float64(clampScore(score)) / domain.MaxScore))
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > domain.MaxScore {
		return domain.MaxScore
	}
	return score
}

func formatCreated(at time.Time, loc *time.Location) string {
	if at.IsZero() {
		return "unknown"
	}
	if loc != nil {
		at = at.In(loc)
	}
	return at.Format("2006-01-02 15:04:05")
}

// interpolateColor maps value onto the 240-255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}
