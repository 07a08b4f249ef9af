package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-isatty"

	"bookforge/internal/deps"
	"bookforge/internal/store"
)

type tone int

const (
	toneNeutral tone = iota
	toneDone
	toneActive
	toneFailed
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	fieldLabelWidth = 18
	fieldIndent     = "  "
	chapterBarWidth = 20
)

// statusPrinter writes the aligned label/value blocks used by book show,
// progress and status.
type statusPrinter struct {
	out      io.Writer
	colorize bool
}

func newStatusPrinter(out io.Writer) *statusPrinter {
	return &statusPrinter{out: out, colorize: shouldColorize(out)}
}

func (p *statusPrinter) header(title string) {
	title = strings.TrimSpace(title)
	rule := strings.Repeat("=", max(utf8.RuneCountInString(title), 3))
	if p.colorize {
		title = ansiBlue + title + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	fmt.Fprintln(p.out, title)
	fmt.Fprintln(p.out, rule)
}

// field prints a neutral line; empty values are skipped.
func (p *statusPrinter) field(label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	p.line(label, toneNeutral, value)
}

func (p *statusPrinter) line(label string, t tone, value string) {
	text := fmt.Sprintf("%s%-*s %s", fieldIndent, fieldLabelWidth, label+":", value)
	if p.colorize {
		if color := toneColor(t); color != "" {
			text = color + text + ansiReset
		}
	}
	fmt.Fprintln(p.out, text)
}

func (p *statusPrinter) bookState(status store.Status, generation store.Generation) {
	p.line("Status", statusTone(status), describeBookState(status, generation))
}

func (p *statusPrinter) chapters(done, total int) {
	t := toneActive
	if total > 0 && done == total {
		t = toneDone
	}
	p.line("Chapters", t, chapterBar(done, total))
}

func (p *statusPrinter) failure(message string, chapter int) {
	if message == "" {
		return
	}
	label := "Error"
	if chapter > 0 {
		label = fmt.Sprintf("Error (ch %d)", chapter)
	}
	p.line(label, toneFailed, message)
}

func (p *statusPrinter) provider(s deps.Status) {
	switch {
	case s.Available:
		p.line(s.Kind, toneDone, s.Name+" ready")
	case s.Optional:
		p.line(s.Kind, toneActive, fmt.Sprintf("%s off (%s)", s.Name, s.Detail))
	default:
		p.line(s.Kind, toneFailed, fmt.Sprintf("%s unavailable (%s)", s.Name, s.Detail))
	}
}

func describeBookState(status store.Status, generation store.Generation) string {
	if generation.Pending() {
		return fmt.Sprintf("%s (generation %s)", status, generation)
	}
	return string(status)
}

// chapterBar renders "[#####---------------] 1/4".
func chapterBar(done, total int) string {
	if total <= 0 {
		return "no outline"
	}
	done = min(max(done, 0), total)
	filled := done * chapterBarWidth / total
	return fmt.Sprintf("[%s%s] %d/%d",
		strings.Repeat("#", filled), strings.Repeat("-", chapterBarWidth-filled), done, total)
}

func statusTone(status store.Status) tone {
	switch status {
	case store.StatusChaptersComplete:
		return toneDone
	case store.StatusError:
		return toneFailed
	case store.StatusWriting, store.StatusOutlineApproved:
		return toneActive
	default:
		return toneNeutral
	}
}

func toneColor(t tone) string {
	switch t {
	case toneDone:
		return ansiGreen
	case toneActive:
		return ansiYellow
	case toneFailed:
		return ansiRed
	default:
		return ""
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
