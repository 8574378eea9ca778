package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter formats a diag.Error against its originating source text as a
// rustc-flavored `error[Ennnn]: message` / `-->` / gutter / caret
// rendering. It clamps the context window to the available line range and
// marks the offending line with a ">>>" gutter plus a column caret.
type Reporter struct {
	filename string
	lines    []string
}

// contextLines bounds the source snippet shown around an error to 10 lines
// on each side of the offending line.
const contextLines = 10

func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders err as a colorized, captioned snippet. Engine errors have
// no source position and are rendered as a bare message line.
func (r *Reporter) Format(err *Error) string {
	var out strings.Builder

	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(string(err.Category)), err.Code, err.Message))

	if err.Position.IsZero() {
		return out.String()
	}

	out.WriteString(fmt.Sprintf("%s %s:%d:%d\n", dim("-->"), r.filename, err.Position.Row, err.Position.Col))

	line := err.Position.Row
	start := line - contextLines - 1
	if start < 0 {
		start = 0
	}
	end := line + contextLines
	if end > len(r.lines) {
		end = len(r.lines)
	}

	for i := start; i < end; i++ {
		lineNum := i + 1
		marker := "    "
		if lineNum == line {
			marker = levelColor(">>> ")
		}
		out.WriteString(fmt.Sprintf("%s%3d: %s\n", marker, lineNum, r.lines[i]))
		if lineNum == line && err.Position.Col > 0 {
			caret := strings.Repeat(" ", err.Position.Col-1) + levelColor("^")
			out.WriteString(fmt.Sprintf(">>>      %s\n", caret))
		}
	}

	return out.String()
}
