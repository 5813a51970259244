package display

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Color represents terminal color options
type Color int

const (
	ColorReset Color = iota
	ColorRed
	ColorGreen
	ColorYellow
	ColorBlue
	ColorCyan
	ColorWhite
	ColorBrightBlue
	ColorBold
)

// ColorTheme defines colors for the different kinds of output
type ColorTheme struct {
	Primary   Color
	Success   Color
	Warning   Color
	Error     Color
	Info      Color
	Muted     Color
	Highlight Color
}

// DefaultColorTheme returns a default color theme
func DefaultColorTheme() ColorTheme {
	return ColorTheme{
		Primary:   ColorBlue,
		Success:   ColorGreen,
		Warning:   ColorYellow,
		Error:     ColorRed,
		Info:      ColorCyan,
		Muted:     ColorWhite,
		Highlight: ColorBrightBlue,
	}
}

// ColorSystem handles color application and terminal detection
type ColorSystem interface {
	Colorize(text string, color Color) string
	Sprintf(color Color, format string, args ...interface{}) string
}

type colorSystem struct {
	colorSupported bool
	colorMap       map[Color]*color.Color
}

// NewColorSystem creates a color system for the given writer. Colors are used
// only when enabled is true and the writer is a color capable terminal.
func NewColorSystem(w io.Writer, enabled bool) ColorSystem {
	cs := &colorSystem{colorSupported: enabled && detectColorSupport(w)}

	cs.colorMap = map[Color]*color.Color{
		ColorReset:      color.New(color.Reset),
		ColorRed:        color.New(color.FgRed),
		ColorGreen:      color.New(color.FgGreen),
		ColorYellow:     color.New(color.FgYellow),
		ColorBlue:       color.New(color.FgBlue),
		ColorCyan:       color.New(color.FgCyan),
		ColorWhite:      color.New(color.FgWhite),
		ColorBrightBlue: color.New(color.FgHiBlue),
		ColorBold:       color.New(color.Bold),
	}
	// detection already happened above; the package wide NoColor must not veto it
	for _, c := range cs.colorMap {
		c.EnableColor()
	}
	return cs
}

// detectColorSupport checks if w is a terminal that supports colors
func detectColorSupport(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}

	if termenv.EnvNoColor() || os.Getenv("TERM") == "dumb" {
		return false
	}

	return termenv.NewOutput(f).EnvColorProfile() != termenv.Ascii
}

// Colorize applies color to text if color is supported
func (cs *colorSystem) Colorize(text string, clr Color) string {
	if !cs.colorSupported {
		return text
	}

	if c, exists := cs.colorMap[clr]; exists {
		return c.Sprint(text)
	}
	return text
}

// Sprintf formats text with color using format string
func (cs *colorSystem) Sprintf(clr Color, format string, args ...interface{}) string {
	return cs.Colorize(fmt.Sprintf(format, args...), clr)
}
