// Package wizard sequences the steps of a flow: which step is current, which
// are completed, which one is expanded, and the form data collected so far.
package wizard

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/alkime/onboard/internal/flow"
)

var (
	// ErrUnknownStep is returned when a step id is not part of the flow.
	ErrUnknownStep = errors.New("unknown step")
	// ErrStepNotInteractive is returned when a pending step is expanded.
	ErrStepNotInteractive = errors.New("step is not interactive")
)

// Status describes a step relative to the wizard's progress.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCurrent   Status = "current"
	StatusPending   Status = "pending"
)

// Controller holds the state of one wizard run. It is safe for concurrent use.
type Controller struct {
	steps []flow.Step

	mu        sync.RWMutex
	current   string
	completed map[string]struct{}
	expanded  string
	formData  map[string]any
}

// New creates a controller positioned on the first step of def, with that
// step expanded.
func New(def flow.Definition) *Controller {
	first := def.FirstStep().ID

	return &Controller{
		steps:     slices.Clone(def.Steps),
		current:   first,
		completed: make(map[string]struct{}),
		expanded:  first,
		formData:  make(map[string]any),
	}
}

// CompleteStep marks id completed. Completing twice is a no-op and unknown
// ids are ignored.
func (c *Controller) CompleteStep(id string) {
	if !c.hasStep(id) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.completed[id] = struct{}{}
}

// GoToStep moves the current step pointer to id. Prior steps need not be
// completed. Unknown ids are ignored so the pointer always names a real step.
func (c *Controller) GoToStep(id string) {
	if !c.hasStep(id) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = id
}

// UpdateFormData shallow-merges partial into the form data. Later writes win.
func (c *Controller) UpdateFormData(partial map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	maps.Copy(c.formData, partial)
}

// Expand renders id's body. Only completed steps and the current step can be
// expanded.
func (c *Controller) Expand(id string) error {
	if !c.hasStep(id) {
		return ErrUnknownStep
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.statusLocked(id) == StatusPending {
		return ErrStepNotInteractive
	}

	c.expanded = id

	return nil
}

// Collapse hides the expanded step body.
func (c *Controller) Collapse() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.expanded = ""
}

// IsInteractive reports whether id is completed or current.
func (c *Controller) IsInteractive(id string) bool {
	return c.StepStatus(id) != StatusPending
}

// StepStatus reports id's status. Unknown ids are pending.
func (c *Controller) StepStatus(id string) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.statusLocked(id)
}

func (c *Controller) statusLocked(id string) Status {
	if _, ok := c.completed[id]; ok {
		return StatusCompleted
	}
	if id == c.current {
		return StatusCurrent
	}

	return StatusPending
}

// CurrentStepID returns the current step id.
func (c *Controller) CurrentStepID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.current
}

// ExpandedStepID returns the expanded step id, or "" when collapsed.
func (c *Controller) ExpandedStepID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.expanded
}

// IsLastStep reports whether the current step is the flow's terminal step.
func (c *Controller) IsLastStep() bool {
	return c.CurrentStepID() == c.steps[len(c.steps)-1].ID
}

// NextStepID returns the step after the current one, or "" on the last step.
func (c *Controller) NextStepID() string {
	current := c.CurrentStepID()
	i := slices.IndexFunc(c.steps, func(s flow.Step) bool { return s.ID == current })
	if i < 0 || i == len(c.steps)-1 {
		return ""
	}

	return c.steps[i+1].ID
}

// FormData returns a shallow copy of the collected form data.
func (c *Controller) FormData() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.formData)
}

// FormValue returns the form data value stored under key.
func (c *Controller) FormValue(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.formData[key]

	return v, ok
}

// Steps returns the flow's steps in order.
func (c *Controller) Steps() []flow.Step {
	return slices.Clone(c.steps)
}

func (c *Controller) hasStep(id string) bool {
	return slices.ContainsFunc(c.steps, func(s flow.Step) bool { return s.ID == id })
}
