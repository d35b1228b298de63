package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"

	"github.com/jaki95/feedback-importer/internal/notify"
	"github.com/jaki95/feedback-importer/internal/workflow"
)

// terminal prints notifications as they arrive.
type terminal struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
}

func (t *terminal) Notify(n notify.Notification) {
	t.mu.Lock()
	defer t.mu.Unlock()
	line := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(n.Level)), n.Title, n.Message)
	if t.colorize {
		line = notificationColor(n.Level) + line + ansiReset
	}
	fmt.Fprintln(t.out, line)
}

func (t *terminal) Println(a ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, a...)
}

func (t *terminal) Section(title, body string) {
	if body == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "\n%s\n%s\n", title, body)
}

// attachUploadBar follows the upload percentage of o. Without a terminal the
// bar is skipped and only the start is printed.
func attachUploadBar(o *workflow.Orchestrator, t *terminal, fileName string, interactive bool) {
	if !interactive {
		t.Println("Uploading " + fileName + "...")
		return
	}
	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetDescription(fmt.Sprintf("[cyan][1/6][reset] Uploading %s...", fileName)),
	)
	var once sync.Once
	o.AddListener(func(s workflow.State) {
		if !s.Uploading && !s.UploadDone {
			return
		}
		_ = bar.Set(int(s.UploadPercent))
		if s.UploadDone {
			once.Do(func() {
				_ = bar.Finish()
				fmt.Fprintln(ansi.NewAnsiStdout())
			})
		}
	})
}

// waitFor blocks until done accepts the workflow state or ctx ends.
func waitFor(ctx context.Context, o *workflow.Orchestrator, done func(workflow.State) bool) (workflow.State, error) {
	changed := make(chan struct{}, 1)
	remove := o.AddListener(func(workflow.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()
	for {
		st := o.Snapshot()
		if done(st) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-changed:
		}
	}
}

func settled(s workflow.State) bool {
	return !s.Polling
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read answer: %w", err)
		}
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
