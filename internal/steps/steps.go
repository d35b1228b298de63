// Package steps holds the fixed wizard steps of the batch import workflow and
// the status vocabulary used to render them.
package steps

import (
	"fmt"

	"github.com/jaki95/feedback-importer/internal/domain"
)

// Step identifies one stage of the import wizard.
type Step string

const (
	Upload    Step = "upload"
	Preview   Step = "preview"
	Prompting Step = "prompting"
	Mapping   Step = "mapping"
	Importing Step = "importing"
	Result    Step = "result"
)

// Count is the number of wizard steps.
const Count = 6

var order = [Count]Step{Upload, Preview, Prompting, Mapping, Importing, Result}

var labels = map[Step]string{
	Upload:    "Upload file",
	Preview:   "Preview data",
	Prompting: "Edit prompt",
	Mapping:   "Confirm mapping",
	Importing: "Import",
	Result:    "Result",
}

// All returns the steps in wizard order.
func All() []Step {
	out := make([]Step, Count)
	copy(out, order[:])
	return out
}

// Index returns the position of s in wizard order, or -1.
func Index(s Step) int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// Label returns the display title of s.
func Label(s Step) string {
	if l, ok := labels[s]; ok {
		return l
	}
	return string(s)
}

// Parse converts a step name.
func Parse(name string) (Step, error) {
	s := Step(name)
	if Index(s) < 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownStep, name)
	}
	return s, nil
}

// Status is the render state of a step.
type Status string

const (
	Pending   Status = "pending"
	Loading   Status = "loading"
	Active    Status = "active"
	Completed Status = "completed"
	Skipped   Status = "skipped"
)

// Done reports whether a step in this status may be revisited.
func (s Status) Done() bool {
	return s == Completed || s == Skipped
}

// Board is the status of every step, indexed by wizard order.
type Board [Count]Status

// Initial returns the board of a fresh workflow.
func Initial() Board {
	return Board{Active, Pending, Pending, Pending, Pending, Pending}
}

// Get returns the status of s.
func (b Board) Get(s Step) Status {
	i := Index(s)
	if i < 0 {
		return ""
	}
	return b[i]
}

// Set returns a copy of b with s set to status.
func (b Board) Set(s Step, status Status) Board {
	if i := Index(s); i >= 0 {
		b[i] = status
	}
	return b
}

// Active returns the single step whose status is active or loading.
func (b Board) Active() (Step, bool) {
	for i, st := range b {
		if st == Active || st == Loading {
			return order[i], true
		}
	}
	return "", false
}

// Derive computes every step status from a single batch status and returns
// the step that should be shown. The mapping is total over the known
// vocabulary; unknown statuses return false.
func Derive(status domain.BatchStatus) (Board, Step, bool) {
	c, p, l, a := Completed, Pending, Loading, Active
	switch status {
	case domain.BatchPending:
		return Board{c, a, p, p, p, p}, Preview, true
	case domain.BatchPromptReady:
		return Board{c, c, a, p, p, p}, Prompting, true
	case domain.BatchGeneratingMapping:
		return Board{c, c, l, p, p, p}, Prompting, true
	case domain.BatchMapping:
		return Board{c, c, c, a, p, p}, Mapping, true
	case domain.BatchImporting:
		return Board{c, c, c, c, l, p}, Importing, true
	case domain.BatchCompleted, domain.BatchPartiallyCompleted, domain.BatchFailed:
		return Board{c, c, c, c, c, c}, Result, true
	}
	return Board{}, "", false
}
