package voice_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/speech"
	"github.com/alkime/onboard/internal/voice"
	"github.com/alkime/onboard/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type upsertCall struct {
	table       string
	row         map[string]any
	conflictKey string
}

type recordingGateway struct {
	mu    sync.Mutex
	calls []upsertCall
	err   error
}

func (g *recordingGateway) Upsert(_ context.Context, table string, row map[string]any, conflictKey string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, upsertCall{table: table, row: row, conflictKey: conflictKey})

	return g.err
}

func (g *recordingGateway) tables() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]string, len(g.calls))
	for i, c := range g.calls {
		out[i] = c.table
	}

	return out
}

type recordingNavigator struct {
	routes []string
}

func (n *recordingNavigator) Navigate(_ context.Context, route string) error {
	n.routes = append(n.routes, route)
	return nil
}

// blockingSpeaker holds every Speak until release is closed.
type blockingSpeaker struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingSpeaker) Speak(ctx context.Context, _ string) error {
	s.once.Do(func() { close(s.started) })

	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *blockingSpeaker) Stop() {}

type fixture struct {
	wizard     *wizard.Controller
	dispatcher *voice.Dispatcher
	speaker    *speech.PromptLog
	gateway    *recordingGateway
	navigator  *recordingNavigator
}

func newFixture(t *testing.T, mutate func(*voice.Options)) *fixture {
	t.Helper()

	def, err := flow.Builtin(flow.AdminOnboarding)
	require.NoError(t, err)

	f := &fixture{
		wizard:    wizard.New(def),
		speaker:   &speech.PromptLog{},
		gateway:   &recordingGateway{},
		navigator: &recordingNavigator{},
	}

	opts := voice.Options{
		Speaker:   f.speaker,
		Gateway:   f.gateway,
		Navigator: f.navigator,
		UserID:    "user-1",
	}
	if mutate != nil {
		mutate(&opts)
	}

	f.dispatcher = voice.NewDispatcher(def, f.wizard, opts)

	return f
}

func (f *fixture) dispatch(t *testing.T, transcript string) voice.Outcome {
	t.Helper()

	outcome, err := f.dispatcher.Dispatch(context.Background(), transcript)
	require.NoError(t, err)

	return outcome
}

func TestDispatch_IntroAffirmative(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	assert.Equal(t, voice.OutcomeAdvanced, f.dispatch(t, "Yes, I understand"))

	snap := f.wizard.Snapshot()
	assert.Equal(t, "org_profile", snap.CurrentStepID)
	assert.Equal(t, "org_profile", snap.ExpandedStepID)
	assert.Contains(t, snap.CompletedStepIDs, "intro_trust_model")
	assert.Equal(t, true, snap.FormData["privacyAccepted"])

	assert.Contains(t, f.speaker.Last(), "organization profile")
	assert.Empty(t, f.dispatcher.Transcript())
	assert.False(t, f.dispatcher.IsProcessing())
	assert.Empty(t, f.gateway.tables())
}

func TestDispatch_UnmatchedTranscript(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	assert.Equal(t, voice.OutcomeIgnored, f.dispatch(t, "what does this mean"))
	assert.Equal(t, "what does this mean", f.dispatcher.Transcript())
	assert.Equal(t, "intro_trust_model", f.wizard.CurrentStepID())
	assert.Empty(t, f.speaker.Lines())
}

func TestDispatch_LocalizationRequiresCountries(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.wizard.GoToStep("localization")

	assert.Equal(t, voice.OutcomeRejected, f.dispatch(t, "okay"))
	assert.Equal(t, "localization", f.wizard.CurrentStepID())
	assert.False(t, f.wizard.Snapshot().IsCompleted("localization"))
	assert.Equal(t, "Please select at least one country before we continue.", f.speaker.Last())
	assert.Empty(t, f.gateway.tables())

	f.wizard.UpdateFormData(map[string]any{"countries": []string{}})
	assert.Equal(t, voice.OutcomeRejected, f.dispatch(t, "okay"))

	f.wizard.UpdateFormData(map[string]any{"countries": []string{"DE", "US"}})
	assert.Equal(t, voice.OutcomeAdvanced, f.dispatch(t, "continue"))
	assert.Equal(t, "mini_rules", f.wizard.CurrentStepID())

	localization, ok := f.wizard.FormValue("localization")
	require.True(t, ok)
	assert.Equal(t, "USD", localization.(map[string]any)["defaultCurrency"])
}

func TestDispatch_FullFlowPersistsBeforeNavigating(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	for _, transcript := range []string{"yes", "looks good", "continue"} {
		if f.wizard.CurrentStepID() == "localization" {
			f.wizard.UpdateFormData(map[string]any{"countries": []string{"DE"}})
		}
		require.Equal(t, voice.OutcomeAdvanced, f.dispatch(t, transcript), transcript)
	}
	for _, transcript := range []string{"ok", "sure", "yes I pledge"} {
		require.Equal(t, voice.OutcomeAdvanced, f.dispatch(t, transcript), transcript)
	}

	require.True(t, f.wizard.IsLastStep())
	assert.Empty(t, f.gateway.tables())
	assert.Empty(t, f.navigator.routes)

	assert.Equal(t, voice.OutcomeNavigated, f.dispatch(t, "ok let's go"))

	assert.Equal(t, []string{
		"organization_profiles",
		"localization_settings",
		"mini_rules",
		"integrations",
		"pledges",
	}, f.gateway.tables())
	assert.Equal(t, []string{"dashboard"}, f.navigator.routes)
	assert.Equal(t, "Taking you to your dashboard now.", f.speaker.Last())

	for _, call := range f.gateway.calls {
		assert.Equal(t, "user_id", call.conflictKey)
		assert.Equal(t, "user-1", call.row["user_id"])
	}

	profile := f.gateway.calls[0].row
	assert.Equal(t, "Acme Global Inc.", profile["legalName"])

	localization := f.gateway.calls[1].row
	assert.Equal(t, []string{"DE"}, localization["countries"])
	assert.Equal(t, "USD", localization["defaultCurrency"])

	assert.Len(t, f.wizard.Snapshot().CompletedStepIDs, 7)
}

func TestDispatch_NavigationSkipsAbsentData(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.wizard.GoToStep("launch")
	f.wizard.UpdateFormData(map[string]any{
		"pledge":     map[string]any{"accepted": true},
		"miniRules":  map[string]any{},
		"orgProfile": nil,
	})

	assert.Equal(t, voice.OutcomeNavigated, f.dispatch(t, "dashboard"))
	assert.Equal(t, []string{"pledges"}, f.gateway.tables())
	assert.Equal(t, []string{"dashboard"}, f.navigator.routes)
}

func TestDispatch_PersistenceFailuresAreSwallowed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.gateway.err = errors.New("database is locked")
	f.wizard.GoToStep("launch")
	f.wizard.UpdateFormData(map[string]any{
		"orgProfile": map[string]any{"legalName": "Acme"},
		"pledge":     map[string]any{"accepted": true},
	})

	assert.Equal(t, voice.OutcomeNavigated, f.dispatch(t, "let's go"))
	assert.Equal(t, []string{"organization_profiles", "pledges"}, f.gateway.tables())
	assert.Equal(t, []string{"dashboard"}, f.navigator.routes)
}

func TestDispatch_NoTransitionForIntent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	f.wizard.GoToStep("pledge")
	assert.Equal(t, voice.OutcomeIgnored, f.dispatch(t, "save"))
	assert.Equal(t, "pledge", f.wizard.CurrentStepID())

	f.wizard.GoToStep("launch")
	assert.Equal(t, voice.OutcomeIgnored, f.dispatch(t, "yes"))
	assert.Equal(t, "launch", f.wizard.CurrentStepID())
	assert.False(t, f.dispatcher.IsProcessing())
	assert.Empty(t, f.navigator.routes)
}

func TestDispatch_DropsWhileProcessing(t *testing.T) {
	t.Parallel()

	speaker := &blockingSpeaker{started: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, func(o *voice.Options) { o.Speaker = speaker })

	done := make(chan voice.Outcome, 1)
	go func() {
		outcome, _ := f.dispatcher.Dispatch(context.Background(), "yes")
		done <- outcome
	}()

	<-speaker.started
	assert.True(t, f.dispatcher.IsProcessing())

	assert.Equal(t, voice.OutcomeDropped, f.dispatch(t, "yes"))
	assert.Equal(t, voice.OutcomeDropped, f.dispatch(t, "continue"))
	assert.Equal(t, voice.OutcomeIgnored, f.dispatch(t, "hmm"))

	close(speaker.release)
	assert.Equal(t, voice.OutcomeAdvanced, <-done)

	assert.Equal(t, "org_profile", f.wizard.CurrentStepID())
	assert.Equal(t, []string{"intro_trust_model"}, f.wizard.Snapshot().CompletedStepIDs)
	assert.False(t, f.dispatcher.IsProcessing())
}

func TestDispatch_CancelledDuringThinkDelay(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(o *voice.Options) { o.ThinkDelay = time.Hour })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.dispatcher.Dispatch(ctx, "yes")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, "intro_trust_model", f.wizard.CurrentStepID())
	assert.Empty(t, f.speaker.Lines())
	assert.False(t, f.dispatcher.IsProcessing())
}

// listenerProbe records whether the listener was running when Speak was called.
type listenerProbe struct {
	listener  speech.Listener
	listening []bool
}

func (p *listenerProbe) Speak(context.Context, string) error {
	p.listening = append(p.listening, p.listener.IsListening())
	return nil
}

func (p *listenerProbe) Stop() {}

func TestDispatch_PausesListening(t *testing.T) {
	t.Parallel()

	listener := speech.NewTypedListener()
	probe := &listenerProbe{listener: listener}
	f := newFixture(t, func(o *voice.Options) {
		o.Speaker = probe
		o.Listener = listener
	})

	require.NoError(t, listener.StartListening(context.Background()))
	assert.True(t, f.dispatcher.IsListening())

	assert.Equal(t, voice.OutcomeAdvanced, f.dispatch(t, "yes"))
	assert.Equal(t, []bool{false}, probe.listening)
	assert.True(t, listener.IsListening())
}

func TestRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	transcripts := make(chan string)
	errC := make(chan error, 1)
	go func() { errC <- f.dispatcher.Run(context.Background(), transcripts) }()

	transcripts <- "yes"
	require.Eventually(t, func() bool {
		return f.wizard.CurrentStepID() == "org_profile" && !f.dispatcher.IsProcessing()
	}, time.Second, 5*time.Millisecond)

	transcripts <- "proceed"
	require.Eventually(t, func() bool {
		return f.wizard.CurrentStepID() == "localization" && !f.dispatcher.IsProcessing()
	}, time.Second, 5*time.Millisecond)

	close(transcripts)
	require.NoError(t, <-errC)
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, f.dispatcher.Run(ctx, make(chan string)), context.Canceled)
}
