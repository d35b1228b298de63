package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/jaki95/feedback-importer/internal/notify"
	"github.com/jaki95/feedback-importer/internal/steps"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiGray   = "\x1b[90m"
)

func colorStatus(status steps.Status, colorize bool) string {
	label := string(status)
	if !colorize {
		return label
	}
	var color string
	switch status {
	case steps.Completed:
		color = ansiGreen
	case steps.Active:
		color = ansiBlue
	case steps.Loading:
		color = ansiYellow
	case steps.Skipped, steps.Pending:
		color = ansiGray
	}
	if color == "" {
		return label
	}
	return color + label + ansiReset
}

func notificationColor(level notify.Level) string {
	switch level {
	case notify.LevelSuccess:
		return ansiGreen
	case notify.LevelWarning:
		return ansiYellow
	case notify.LevelError:
		return ansiRed
	default:
		return ansiBlue
	}
}

func shouldColorize(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
