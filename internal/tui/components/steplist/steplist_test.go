package steplist_test

import (
	"testing"

	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/tui/components/steplist"
	"github.com/alkime/onboard/internal/wizard"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:gochecknoinits // recommend for CI by bubbletea folks
func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func TestView(t *testing.T) {
	def, err := flow.Builtin(flow.AdminOnboarding)
	require.NoError(t, err)

	c := wizard.New(def)
	c.CompleteStep("intro_trust_model")
	c.GoToStep("org_profile")
	require.NoError(t, c.Expand("org_profile"))
	c.UpdateFormData(map[string]any{
		"orgProfile": map[string]any{"legalName": "Acme", "employeeCount": 250},
	})

	view := steplist.View(c.Snapshot(), map[string][]string{
		"org_profile": {"orgProfile", "missing"},
	})

	assert.Contains(t, view, "✓ 1. How we keep your data safe")
	assert.Contains(t, view, "▸ 2. Organization profile")
	assert.Contains(t, view, "· 3. Countries and localization")
	assert.Contains(t, view, "orgProfile: employeeCount=250, legalName=Acme")
	assert.NotContains(t, view, "missing")
}

func TestView_CollapsedHidesDetails(t *testing.T) {
	def, err := flow.Builtin(flow.AdminOnboarding)
	require.NoError(t, err)

	c := wizard.New(def)
	c.UpdateFormData(map[string]any{"privacyAccepted": true})
	c.Collapse()

	view := steplist.View(c.Snapshot(), map[string][]string{
		"intro_trust_model": {"privacyAccepted"},
	})
	assert.NotContains(t, view, "privacyAccepted")
}
