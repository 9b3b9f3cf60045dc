package wizard

import (
	"maps"
	"slices"
)

// StepView is a step with its status, as rendered by the UI surfaces.
type StepView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
	Status   Status `json:"status"`
	Expanded bool   `json:"expanded"`
}

// Snapshot is a point-in-time copy of the wizard state.
type Snapshot struct {
	CurrentStepID    string         `json:"currentStepId"`
	CompletedStepIDs []string       `json:"completedStepIds"`
	ExpandedStepID   string         `json:"expandedStepId,omitempty"`
	FormData         map[string]any `json:"formData"`
	Steps            []StepView     `json:"steps"`
}

// Snapshot copies the current state. Completed ids are listed in step order.
// Form data is copied one level deep.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		CurrentStepID:    c.current,
		CompletedStepIDs: make([]string, 0, len(c.completed)),
		ExpandedStepID:   c.expanded,
		FormData:         maps.Clone(c.formData),
		Steps:            make([]StepView, 0, len(c.steps)),
	}

	for _, step := range c.steps {
		status := c.statusLocked(step.ID)
		if status == StatusCompleted {
			snap.CompletedStepIDs = append(snap.CompletedStepIDs, step.ID)
		}
		snap.Steps = append(snap.Steps, StepView{
			ID:       step.ID,
			Title:    step.Title,
			Order:    step.Order,
			Status:   status,
			Expanded: step.ID == c.expanded,
		})
	}

	return snap
}

// IsCompleted reports whether id is in the snapshot's completed set.
func (s Snapshot) IsCompleted(id string) bool {
	return slices.Contains(s.CompletedStepIDs, id)
}
