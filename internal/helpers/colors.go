package helpers

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	// SuccessColor for successful operations
	SuccessColor = color.New(color.FgGreen, color.Bold)

	// ErrorColor for error messages
	ErrorColor = color.New(color.FgRed, color.Bold)

	// WarningColor for warning messages
	WarningColor = color.New(color.FgYellow, color.Bold)

	// InfoColor for informational messages
	InfoColor = color.New(color.FgCyan, color.Bold)

	// TitleColor for titles and headers
	TitleColor = color.New(color.FgMagenta, color.Bold)
)

// Console writes colored status lines to a writer
type Console struct {
	out io.Writer
}

// NewConsole creates a console writing to out. A nil writer means color.Output.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = color.Output
	}
	return &Console{out: out}
}

// Stdout is the console used by the package-level print helpers
var Stdout = NewConsole(nil)

// Success prints a success message
func (c *Console) Success(format string, args ...interface{}) {
	SuccessColor.Fprintf(c.out, "✅ "+format+"\n", args...)
}

// Error prints an error message
func (c *Console) Error(format string, args ...interface{}) {
	ErrorColor.Fprintf(c.out, "❌ "+format+"\n", args...)
}

// Warning prints a warning message
func (c *Console) Warning(format string, args ...interface{}) {
	WarningColor.Fprintf(c.out, "⚠️  "+format+"\n", args...)
}

// Info prints an info message
func (c *Console) Info(format string, args ...interface{}) {
	InfoColor.Fprintf(c.out, "ℹ️  "+format+"\n", args...)
}

// Title prints a title
func (c *Console) Title(format string, args ...interface{}) {
	TitleColor.Fprintf(c.out, "🎯 "+format+"\n", args...)
}

// Progress prints a progress message
func (c *Console) Progress(current, total int, message string) {
	InfoColor.Fprintf(c.out, "📊 [%d/%d] %s\n", current, total, message)
}

// Separator prints a visual separator
func (c *Console) Separator() {
	fmt.Fprintln(c.out, strings.Repeat("─", 80))
}

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) { Stdout.Success(format, args...) }

// PrintError prints an error message
func PrintError(format string, args ...interface{}) { Stdout.Error(format, args...) }

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) { Stdout.Warning(format, args...) }

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) { Stdout.Info(format, args...) }

// PrintTitle prints a title
func PrintTitle(format string, args ...interface{}) { Stdout.Title(format, args...) }
