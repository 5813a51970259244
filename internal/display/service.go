package display

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Config controls how user facing output is rendered
type Config struct {
	Writer       io.Writer
	ColorEnabled bool
	Quiet        bool
	Theme        ColorTheme
}

// Service renders headers, status lines and progress for the CLI.
// Quiet mode suppresses everything except errors and command results
// written through Println.
type Service struct {
	writer io.Writer
	quiet  bool
	theme  ColorTheme
	colors ColorSystem
}

// NewService creates a display service
func NewService(cfg Config) *Service {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	return &Service{
		writer: cfg.Writer,
		quiet:  cfg.Quiet,
		theme:  cfg.Theme,
		colors: NewColorSystem(cfg.Writer, cfg.ColorEnabled),
	}
}

// Writer returns the underlying output writer
func (s *Service) Writer() io.Writer {
	return s.writer
}

// Colors returns the color system in use
func (s *Service) Colors() ColorSystem {
	return s.colors
}

// Header prints an underlined title
func (s *Service) Header(title string) {
	if s.quiet {
		return
	}
	fmt.Fprintln(s.writer, s.colors.Colorize(title, s.theme.Primary))
	fmt.Fprintln(s.writer, strings.Repeat("─", len([]rune(title))))
}

func (s *Service) Success(message string) {
	s.status("✓", message, s.theme.Success, false)
}

func (s *Service) Info(message string) {
	s.status("ℹ", message, s.theme.Info, false)
}

func (s *Service) Warning(message string) {
	s.status("⚠", message, s.theme.Warning, false)
}

// Error is printed even in quiet mode
func (s *Service) Error(message string) {
	s.status("✗", message, s.theme.Error, true)
}

// Println writes a plain line. It is never suppressed.
func (s *Service) Println(a ...interface{}) {
	fmt.Fprintln(s.writer, a...)
}

// Printf writes formatted plain output. It is never suppressed.
func (s *Service) Printf(format string, a ...interface{}) {
	fmt.Fprintf(s.writer, format, a...)
}

// NewProgressBar returns a step counter bound to this service's writer.
// In quiet mode the bar renders nothing.
func (s *Service) NewProgressBar(total int) *ProgressBar {
	w := s.writer
	if s.quiet {
		w = io.Discard
	}
	return NewProgressBar(total, w, s.colors, s.theme)
}

func (s *Service) status(icon, message string, clr Color, always bool) {
	if s.quiet && !always {
		return
	}
	fmt.Fprintf(s.writer, "%s %s\n", s.colors.Colorize(icon, clr), message)
}
