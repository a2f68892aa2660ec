package qualitygate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"wrap-render-server/modules/render"
)

var attemptTag = regexp.MustCompile(`\[quality-retry attempt (\d+)/(\d+)\]`)

const (
	hardLineDefect = "a hard seam or visible edge line in the gradient transition"
	hardLineFix    = "Blend the gradient as one continuous fade across every body panel. " +
		"There must be no visible boundary, step, banding or line anywhere in the transition."
	lowScoreFix = "Re-render with clean, photorealistic paint, accurate reflections and even coverage on every panel."
)

// AttemptTag - marker read back by ParseAttempt
func AttemptTag(attempt int) string {
	return fmt.Sprintf("[quality-retry attempt %d/%d]", attempt, MaxAttempts)
}

// ParseAttempt returns the attempt number carried by text, 0 when untagged.
func ParseAttempt(text string) int {
	m := attemptTag.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// Instruction amends the base revision text for a regeneration. Earlier
// quality corrections are replaced, never stacked.
func Instruction(base string, verdict render.QualityVerdict, attempt int) string {
	base = stripCorrection(base)

	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}

	b.WriteString("Quality correction: ")
	if verdict.HasHardLine {
		b.WriteString("the previous render showed ")
		b.WriteString(hardLineDefect)
		b.WriteString(". ")
		b.WriteString(hardLineFix)
	} else {
		fmt.Fprintf(&b, "the previous render scored %d for overall quality. ", verdict.Score)
		b.WriteString(lowScoreFix)
	}
	b.WriteString(" ")
	b.WriteString(AttemptTag(attempt))
	return b.String()
}

func stripCorrection(text string) string {
	if i := strings.Index(text, "Quality correction:"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(attemptTag.ReplaceAllString(text, ""))
}
