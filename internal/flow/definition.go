// Package flow declares onboarding flows: the ordered steps and the
// transition table mapping (step, intent) to a scripted handler.
package flow

import (
	"fmt"
	"maps"
	"slices"
	"sort"
)

// Intent is the class of a voice command once its transcript has been matched.
type Intent string

const (
	// IntentNavigate leaves the flow for another route. Only valid on the last step.
	IntentNavigate Intent = "navigate"
	// IntentAffirm confirms the current step.
	IntentAffirm Intent = "affirm"
	// IntentSave saves the current step and continues.
	IntentSave Intent = "save"
)

// Valid reports whether i is a known intent.
func (i Intent) Valid() bool {
	switch i {
	case IntentNavigate, IntentAffirm, IntentSave:
		return true
	default:
		return false
	}
}

// DefaultConflictKey is the column persisted rows are upserted on.
const DefaultConflictKey = "user_id"

// Step is one section of a flow.
type Step struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
	Order int    `json:"order" yaml:"order"`
}

// Requirement names form data that must be present before a transition may
// fire. When it is absent the Prompt is spoken and the flow stays put.
type Requirement struct {
	Key    string `json:"key" yaml:"key"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// Transition is one row of the transition table.
type Transition struct {
	From    string         `json:"from" yaml:"from"`
	On      []Intent       `json:"on" yaml:"on"`
	To      string         `json:"to,omitempty" yaml:"to,omitempty"`
	Require []Requirement  `json:"require,omitempty" yaml:"require,omitempty"`
	Set     map[string]any `json:"set,omitempty" yaml:"set,omitempty"`
	Say     string         `json:"say,omitempty" yaml:"say,omitempty"`

	// Navigate is the route handed to the navigator. Navigation transitions
	// run the persistence sequence instead of advancing.
	Navigate string `json:"navigate,omitempty" yaml:"navigate,omitempty"`
}

// IsNavigation reports whether t leaves the flow.
func (t Transition) IsNavigation() bool {
	return t.Navigate != ""
}

// PersistRule maps form data onto a row saved when the flow is left.
type PersistRule struct {
	Name        string   `json:"name" yaml:"name"`
	Table       string   `json:"table" yaml:"table"`
	Source      string   `json:"source" yaml:"source"`
	Include     []string `json:"include,omitempty" yaml:"include,omitempty"`
	ConflictKey string   `json:"conflictKey,omitempty" yaml:"conflictKey,omitempty"`
}

// Definition declares a flow.
type Definition struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Steps       []Step        `json:"steps" yaml:"steps"`
	Transitions []Transition  `json:"transitions" yaml:"transitions"`
	Persistence []PersistRule `json:"persistence,omitempty" yaml:"persistence,omitempty"`

	table map[tableKey]int
}

type tableKey struct {
	step   string
	intent Intent
}

// Normalized validates def, orders its steps and indexes its transitions.
func (def Definition) Normalized() (Definition, error) {
	out := def.Clone()

	sort.SliceStable(out.Steps, func(i, j int) bool {
		return out.Steps[i].Order < out.Steps[j].Order
	})

	for i := range out.Persistence {
		if out.Persistence[i].ConflictKey == "" {
			out.Persistence[i].ConflictKey = DefaultConflictKey
		}
	}

	if err := out.Validate(); err != nil {
		return Definition{}, err
	}

	out.table = make(map[tableKey]int)
	for idx, tr := range out.Transitions {
		for _, intent := range tr.On {
			out.table[tableKey{step: tr.From, intent: intent}] = idx
		}
	}

	return out, nil
}

// Validate ensures the definition is self-consistent.
func (def Definition) Validate() error {
	if def.ID == "" {
		return fmt.Errorf("flow: id is required")
	}
	if len(def.Steps) == 0 {
		return fmt.Errorf("flow %s: at least one step is required", def.ID)
	}

	steps := make(map[string]struct{}, len(def.Steps))
	for idx, step := range def.Steps {
		if step.ID == "" {
			return fmt.Errorf("flow %s step[%d]: id is required", def.ID, idx)
		}
		if _, exists := steps[step.ID]; exists {
			return fmt.Errorf("flow %s: duplicate step id %s", def.ID, step.ID)
		}
		steps[step.ID] = struct{}{}
	}

	last := def.Steps[len(def.Steps)-1].ID
	seen := map[tableKey]struct{}{}
	for idx, tr := range def.Transitions {
		if err := def.validateTransition(tr, steps, last); err != nil {
			return fmt.Errorf("flow %s transition[%d]: %w", def.ID, idx, err)
		}
		for _, intent := range tr.On {
			key := tableKey{step: tr.From, intent: intent}
			if _, exists := seen[key]; exists {
				return fmt.Errorf("flow %s: duplicate transition for %s on %s", def.ID, tr.From, intent)
			}
			seen[key] = struct{}{}
		}
	}

	for idx, rule := range def.Persistence {
		if rule.Table == "" {
			return fmt.Errorf("flow %s persistence[%d]: table is required", def.ID, idx)
		}
		if rule.Source == "" {
			return fmt.Errorf("flow %s persistence[%d]: source is required", def.ID, idx)
		}
	}

	return nil
}

func (def Definition) validateTransition(tr Transition, steps map[string]struct{}, last string) error {
	if _, ok := steps[tr.From]; !ok {
		return fmt.Errorf("unknown from step %q", tr.From)
	}
	if len(tr.On) == 0 {
		return fmt.Errorf("at least one intent is required")
	}
	for _, intent := range tr.On {
		if !intent.Valid() {
			return fmt.Errorf("unknown intent %q", intent)
		}
		if intent == IntentNavigate && tr.From != last {
			return fmt.Errorf("navigation is only allowed from the last step %q", last)
		}
	}
	for _, req := range tr.Require {
		if req.Key == "" {
			return fmt.Errorf("requirement key is required")
		}
	}

	if tr.IsNavigation() {
		if tr.To != "" {
			return fmt.Errorf("navigation transition cannot also advance to %q", tr.To)
		}
		return nil
	}

	if _, ok := steps[tr.To]; !ok {
		return fmt.Errorf("unknown to step %q", tr.To)
	}

	return nil
}

// Lookup returns the transition for intent on step.
func (def Definition) Lookup(stepID string, intent Intent) (Transition, bool) {
	if def.table == nil {
		for _, tr := range def.Transitions {
			if tr.From == stepID && slices.Contains(tr.On, intent) {
				return tr, true
			}
		}
		return Transition{}, false
	}

	idx, ok := def.table[tableKey{step: stepID, intent: intent}]
	if !ok {
		return Transition{}, false
	}

	return def.Transitions[idx], true
}

// Step returns the step with the given id.
func (def Definition) Step(id string) (Step, bool) {
	for _, step := range def.Steps {
		if step.ID == id {
			return step, true
		}
	}

	return Step{}, false
}

// FirstStep returns the entry step of the flow.
func (def Definition) FirstStep() Step {
	return def.Steps[0]
}

// LastStep returns the terminal step of the flow.
func (def Definition) LastStep() Step {
	return def.Steps[len(def.Steps)-1]
}

// Clone returns a deep copy of the definition's steps, transitions and rules.
// Form data fixtures are copied one level deep; nested values are shared.
func (def Definition) Clone() Definition {
	clone := Definition{
		ID:          def.ID,
		Name:        def.Name,
		Steps:       slices.Clone(def.Steps),
		Persistence: make([]PersistRule, len(def.Persistence)),
		table:       maps.Clone(def.table),
	}

	for i, rule := range def.Persistence {
		rule.Include = slices.Clone(rule.Include)
		clone.Persistence[i] = rule
	}

	if len(def.Transitions) > 0 {
		clone.Transitions = make([]Transition, len(def.Transitions))
		for i, tr := range def.Transitions {
			tr.On = slices.Clone(tr.On)
			tr.Require = slices.Clone(tr.Require)
			tr.Set = maps.Clone(tr.Set)
			clone.Transitions[i] = tr
		}
	}

	return clone
}
