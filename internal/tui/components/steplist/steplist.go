// Package steplist renders the wizard's steps with their status, and the
// form data under the expanded step.
package steplist

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/alkime/onboard/internal/tui/style"
	"github.com/alkime/onboard/internal/wizard"
)

// Markers prefix each step by status.
const (
	MarkerCompleted = "✓"
	MarkerCurrent   = "▸"
	MarkerPending   = "·"
)

// View renders snap. details maps a step id to the form data keys shown when
// that step is expanded.
func View(snap wizard.Snapshot, details map[string][]string) string {
	var sb strings.Builder

	for i, step := range snap.Steps {
		if i > 0 {
			sb.WriteString("\n")
		}

		sb.WriteString(row(step))

		if step.Expanded {
			if panel := detailPanel(snap.FormData, details[step.ID]); panel != "" {
				sb.WriteString("\n")
				sb.WriteString(indent(style.Panel.Render(panel), "  "))
			}
		}
	}

	return sb.String()
}

func row(step wizard.StepView) string {
	line := fmt.Sprintf("%d. %s", step.Order, step.Title)

	switch step.Status {
	case wizard.StatusCompleted:
		return style.Completed.Render(MarkerCompleted + " " + line)
	case wizard.StatusCurrent:
		return style.Current.Render(MarkerCurrent + " " + line)
	default:
		return style.Pending.Render(MarkerPending + " " + line)
	}
}

func detailPanel(formData map[string]any, keys []string) string {
	var lines []string
	for _, key := range keys {
		v, ok := formData[key]
		if !ok {
			continue
		}

		lines = append(lines, style.Label.Render(key+":")+" "+format(v))
	}

	return strings.Join(lines, "\n")
}

func format(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+format(t[k]))
		}

		return strings.Join(parts, ", ")
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}

		return string(data)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}

	return strings.Join(lines, "\n")
}
