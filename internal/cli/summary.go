package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cwygoda/sts/internal/config"
	"github.com/cwygoda/sts/internal/domain"
	"github.com/cwygoda/sts/internal/logger"
)

const divider = "----------------------------------------------------------------"

type styles struct {
	title lipgloss.Style
	muted lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
}

// newStyles binds the styles to w so colors are dropped when w is not a
// terminal.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		muted: r.NewStyle().Foreground(lipgloss.Color("245")),
		ok:    r.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		fail:  r.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
}

func printConfig(w io.Writer, cfg *config.Config) {
	st := newStyles(w)
	rows := cfg.Rows()
	width := 0
	for _, row := range rows {
		width = max(width, len(row[0]))
	}

	fmt.Fprintln(w, "\t"+st.title.Render("== Current Configuration =="))
	fmt.Fprintln(w, st.muted.Render(divider))
	for _, row := range rows {
		label := row[0] + strings.Repeat(" ", width-len(row[0]))
		fmt.Fprintf(w, "%s : %s\n", st.muted.Render(label), row[1])
	}
	fmt.Fprintln(w, st.muted.Render(divider))
}

func printSummary(w io.Writer, s domain.RunSummary) {
	st := newStyles(w)
	fmt.Fprintf(w, "Elapsed Time: %d ms\n", s.Elapsed().Milliseconds())

	failure := fmt.Sprintf("failure:%d", s.Failed)
	if s.Failed > 0 {
		failure = st.fail.Render(failure)
	}
	fmt.Fprintf(w, "sum:%d\t%s\t%s\n", s.Total, st.ok.Render(fmt.Sprintf("success:%d", s.Succeeded)), failure)

	if len(s.Failures) == 0 {
		return
	}
	fmt.Fprintln(w, st.muted.Render(divider))
	fmt.Fprintln(w, "\tfailed files:")
	for _, f := range s.Failures {
		fmt.Fprintf(w, "%s %s\n", st.fail.Render("[x]"), failureLine(s.SourceDir, f))
	}
}

// failureLine renders "[<bits>] <source path> (<stage names>)". Control
// characters in the path are escaped.
func failureLine(sourceDir string, f domain.Failure) string {
	path := logger.SanitizeForLog(filepath.Join(sourceDir, f.Path))
	return fmt.Sprintf("[%s] %s (%s)", f.Flags, path, f.Flags.Describe())
}
