package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// ProgressBar counts pipeline steps and renders one line per step:
//
//	[3/9] [████████████░░░░░░░░░░░░░░░░░░░░░░░░░░░░]  33.3% Importing dump
//
// Lines are newline terminated rather than redrawn in place, so command
// output and log lines can interleave with it.
type ProgressBar struct {
	current  int
	total    int
	writer   io.Writer
	colorSys ColorSystem
	theme    ColorTheme
	mu       sync.Mutex
}

// barWidth is the number of cells in the bar graphic
const barWidth = 40

// NewProgressBar creates a new progress bar
func NewProgressBar(total int, writer io.Writer, colorSys ColorSystem, theme ColorTheme) *ProgressBar {
	return &ProgressBar{
		total:    total,
		writer:   writer,
		colorSys: colorSys,
		theme:    theme,
	}
}

// Increment advances the counter by one and announces label
func (pb *ProgressBar) Increment(label string) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	if pb.current < pb.total {
		pb.current++
	}
	fmt.Fprintln(pb.writer, pb.render(label))
}

func (pb *ProgressBar) render(label string) string {
	counter := fmt.Sprintf("[%d/%d]", pb.current, pb.total)
	if pb.colorSys != nil {
		counter = pb.colorSys.Colorize(counter, pb.theme.Highlight)
	}
	if pb.total <= 0 {
		return fmt.Sprintf("%s %s", counter, label)
	}

	filledWidth := barWidth * pb.current / pb.total
	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", barWidth-filledWidth)
	if pb.colorSys != nil {
		filled = pb.colorSys.Colorize(filled, pb.theme.Success)
		empty = pb.colorSys.Colorize(empty, pb.theme.Muted)
	}

	percentage := float64(pb.current) / float64(pb.total) * 100
	return fmt.Sprintf("%s [%s%s] %5.1f%% %s", counter, filled, empty, percentage, label)
}
