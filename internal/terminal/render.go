package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/exstem-client/internal/examsession"
	"github.com/stemsi/exstem-client/internal/model"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	colorReset  = "\x1b[0m"
	colorRed    = "\x1b[31m"
	colorYellow = "\x1b[33m"
	colorGreen  = "\x1b[32m"
	colorDim    = "\x1b[2m"
)

// Render draws one full screen for snap. Lines end in CRLF so the output is
// correct in raw mode.
func Render(w io.Writer, snap model.Snapshot, status string) error {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("\r\n")
	}

	b.WriteString(clearScreen)
	line("%s  %s%s%s", title(snap), urgencyColor(snap.Urgency), examsession.FormatClock(snap.Remaining), colorReset)
	line("%s %d/%d answered (%.0f%%)", progressBar(snap.ProgressPercent, 20), snap.AnsweredCount, snap.QuestionCount, snap.ProgressPercent)
	line("%s", navigator(snap))
	line("")

	switch {
	case snap.Empty:
		line("This exam has no questions.")
	case snap.Current != nil:
		q := snap.Current
		line("Question %d of %d (%d pts)", snap.Cursor+1, snap.QuestionCount, q.Points)
		line("")
		line("%s", q.QuestionText)
		line("")
		selected, _ := snap.Selected()
		for _, c := range model.Choices {
			marker := "  "
			if c == selected {
				marker = colorGreen + "> "
			}
			line("%s%s. %s%s", marker, c, q.Option(c), colorReset)
		}
	}
	line("")

	switch snap.State {
	case model.StateConfirmPending:
		line("Submit now? %d of %d answered. [y] submit  [x] keep working", snap.AnsweredCount, snap.QuestionCount)
	case model.StateSubmitting:
		line("Submitting...")
	case model.StateFinalized:
		line("Exam submitted. Results: %s", snap.ResultsPath)
	default:
		if !snap.Empty {
			line("%s[a-d] answer  [n/→] next  [p/←] previous  [1-9] jump  [s] submit  [q] quit%s", colorDim, colorReset)
		}
	}
	if status != "" {
		line("%s", status)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func title(snap model.Snapshot) string {
	if snap.Title == "" {
		return "Exam"
	}
	return snap.Title
}

func urgencyColor(u model.Urgency) string {
	switch u {
	case model.UrgencyCritical:
		return colorRed
	case model.UrgencyWarning:
		return colorYellow
	}
	return ""
}

func progressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// navigator lists question numbers; answered ones are marked with '*' and
// the current one is bracketed.
func navigator(snap model.Snapshot) string {
	var b strings.Builder
	for i, id := range snap.QuestionIDs {
		if i > 0 {
			b.WriteByte(' ')
		}
		mark := ""
		if snap.IsAnswered(id) {
			mark = "*"
		}
		if i == snap.Cursor {
			fmt.Fprintf(&b, "[%d%s]", i+1, mark)
			continue
		}
		fmt.Fprintf(&b, "%d%s", i+1, mark)
	}
	return b.String()
}
