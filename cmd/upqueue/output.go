package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"upqueue/internal/models"
	"upqueue/internal/render"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	busyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Italic(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// statusLine is the terminal stand-in for the drop target: it announces when
// a batch is in flight and when new files are accepted again.
type statusLine struct {
	out io.Writer
}

func (s statusLine) SetBusy(busy bool) {
	if busy {
		fmt.Fprintln(s.out, busyStyle.Render("Uploading..."))
		return
	}
	fmt.Fprintln(s.out, dimStyle.Render("Ready for new files"))
}

func printOutcomes(w io.Writer, outcomes []models.FileUploadOutcome) {
	for _, o := range outcomes {
		if o.Succeeded {
			fmt.Fprintf(w, "%s %s\n", okStyle.Render("✓"), o.FileName)
			continue
		}
		fmt.Fprintf(w, "%s %s: %s\n", errorStyle.Render("✗"), o.FileName, o.ErrorDetail)
	}
}

// printQueue redraws the queue view, clearing the screen first when clear is
// set and w is a terminal.
func printQueue(w io.Writer, rows []render.Row, clear bool) {
	if f, ok := w.(*os.File); ok && clear && isatty.IsTerminal(f.Fd()) {
		fmt.Fprint(w, "\033[H\033[2J")
	}
	fmt.Fprint(w, render.Terminal(rows))
}

func writeHTML(path string, rows []render.Row) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.HTML(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
