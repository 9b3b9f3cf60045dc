// Package voice turns transcripts into wizard transitions.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/speech"
	"github.com/alkime/onboard/internal/store"
	"github.com/alkime/onboard/internal/wizard"
)

// Outcome reports what a dispatched transcript did.
type Outcome string

const (
	// OutcomeIgnored means no keyword matched, or the current step has no
	// transition for the matched intent.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeDropped means a command matched while another was processing.
	OutcomeDropped Outcome = "dropped"
	// OutcomeRejected means required form data was missing; the wizard stayed put.
	OutcomeRejected Outcome = "rejected"
	// OutcomeAdvanced means the wizard moved to the next step.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeNavigated means the flow was saved and left.
	OutcomeNavigated Outcome = "navigated"
)

// Navigator leaves the flow for another route.
type Navigator interface {
	Navigate(ctx context.Context, route string) error
}

// Options wires the dispatcher's collaborators. Only Speaker is required.
type Options struct {
	Speaker   speech.Speaker
	Listener  speech.Listener
	Gateway   store.Gateway
	Navigator Navigator
	UserID    string

	// ThinkDelay paces the handler between collapsing a step and speaking.
	ThinkDelay time.Duration
	Keywords   *Keywords
	Logger     *slog.Logger
}

// Dispatcher runs the transition table of one flow against one wizard.
type Dispatcher struct {
	def       flow.Definition
	wizard    *wizard.Controller
	matcher   *Matcher
	speaker   speech.Speaker
	listener  speech.Listener
	gateway   store.Gateway
	navigator Navigator
	userID    string
	delay     time.Duration
	logger    *slog.Logger

	processing atomic.Bool

	mu         sync.Mutex
	transcript string
}

// NewDispatcher creates a dispatcher for def driving wiz.
func NewDispatcher(def flow.Definition, wiz *wizard.Controller, opts Options) *Dispatcher {
	kw := DefaultKeywords()
	if opts.Keywords != nil {
		kw = *opts.Keywords
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		def:       def,
		wizard:    wiz,
		matcher:   NewMatcher(kw),
		speaker:   opts.Speaker,
		listener:  opts.Listener,
		gateway:   opts.Gateway,
		navigator: opts.Navigator,
		userID:    opts.UserID,
		delay:     opts.ThinkDelay,
		logger:    logger.With("flow", def.ID),
	}
}

// Transcript returns the latest transcript not yet consumed by a command.
func (d *Dispatcher) Transcript() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.transcript
}

// IsProcessing reports whether a command handler is running.
func (d *Dispatcher) IsProcessing() bool {
	return d.processing.Load()
}

// IsListening reports whether the attached listener is capturing.
func (d *Dispatcher) IsListening() bool {
	return d.listener != nil && d.listener.IsListening()
}

// Dispatch handles one transcript update and runs the matched handler to
// completion. A match arriving while another handler runs is dropped. The
// returned error is non-nil only when ctx ends mid-handler.
func (d *Dispatcher) Dispatch(ctx context.Context, transcript string) (Outcome, error) {
	d.setTranscript(transcript)

	intent, ok := d.matcher.Classify(transcript, d.wizard.IsLastStep())
	if !ok {
		commandsTotal.WithLabelValues("", string(OutcomeIgnored)).Inc()
		return OutcomeIgnored, nil
	}

	if !d.processing.CompareAndSwap(false, true) {
		d.logger.Debug("dropping command, already processing", "intent", intent)
		commandsTotal.WithLabelValues(string(intent), string(OutcomeDropped)).Inc()

		return OutcomeDropped, nil
	}
	defer d.processing.Store(false)

	resume := d.pauseListening()
	defer resume(ctx)

	d.setTranscript("")

	start := time.Now()
	outcome, err := d.handle(ctx, intent)
	handlerDuration.WithLabelValues(string(intent)).Observe(time.Since(start).Seconds())

	if err != nil {
		d.logger.Info("command interrupted", "intent", intent, "error", err)
		return outcome, err
	}

	commandsTotal.WithLabelValues(string(intent), string(outcome)).Inc()

	return outcome, nil
}

// Run dispatches every transcript received until transcripts is closed or
// ctx is done. Handlers run concurrently with receiving so updates that
// arrive mid-handler are dropped rather than queued.
func (d *Dispatcher) Run(ctx context.Context, transcripts <-chan string) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case transcript, ok := <-transcripts:
			if !ok {
				return nil
			}

			wg.Add(1)
			go func() {
				defer wg.Done()

				outcome, err := d.Dispatch(ctx, transcript)
				if err == nil && outcome != OutcomeIgnored {
					d.logger.Debug("dispatched transcript", "outcome", outcome, "step", d.wizard.CurrentStepID())
				}
			}()
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, intent flow.Intent) (Outcome, error) {
	from := d.wizard.CurrentStepID()

	tr, ok := d.def.Lookup(from, intent)
	if !ok {
		d.logger.Debug("no transition", "step", from, "intent", intent)
		return OutcomeIgnored, nil
	}

	for _, req := range tr.Require {
		if v, _ := d.wizard.FormValue(req.Key); !present(v) {
			d.logger.Info("transition rejected", "step", from, "missing", req.Key)
			d.say(ctx, req.Prompt)

			return OutcomeRejected, ctx.Err()
		}
	}

	if tr.IsNavigation() {
		return d.navigate(ctx, from, tr)
	}

	d.wizard.CompleteStep(from)
	d.wizard.Collapse()

	if err := sleep(ctx, d.delay); err != nil {
		return OutcomeAdvanced, err
	}

	if len(tr.Set) > 0 {
		d.wizard.UpdateFormData(deepCopy(tr.Set))
	}

	d.say(ctx, tr.Say)
	if err := ctx.Err(); err != nil {
		return OutcomeAdvanced, err
	}

	d.wizard.GoToStep(tr.To)
	if err := d.wizard.Expand(tr.To); err != nil {
		d.logger.Warn("failed to expand step", "step", tr.To, "error", err)
	}

	transitionsTotal.WithLabelValues(d.def.ID, from).Inc()
	d.logger.Info("step advanced", "from", from, "to", tr.To, "intent", intent)

	return OutcomeAdvanced, nil
}

func (d *Dispatcher) navigate(ctx context.Context, from string, tr flow.Transition) (Outcome, error) {
	d.wizard.CompleteStep(from)
	d.wizard.Collapse()

	if len(tr.Set) > 0 {
		d.wizard.UpdateFormData(deepCopy(tr.Set))
	}

	d.persist(ctx)

	d.say(ctx, tr.Say)
	if err := ctx.Err(); err != nil {
		return OutcomeNavigated, err
	}

	if d.navigator != nil {
		if err := d.navigator.Navigate(ctx, tr.Navigate); err != nil {
			d.logger.Error("navigation failed", "route", tr.Navigate, "error", err)
		}
	}

	transitionsTotal.WithLabelValues(d.def.ID, from).Inc()
	d.logger.Info("flow left", "from", from, "route", tr.Navigate)

	return OutcomeNavigated, nil
}

// persist saves each rule whose source data is present, in declaration
// order. Failures are logged and the sequence continues.
func (d *Dispatcher) persist(ctx context.Context) {
	if d.gateway == nil {
		return
	}

	for _, rule := range d.def.Persistence {
		source, _ := d.wizard.FormValue(rule.Source)
		if !present(source) {
			continue
		}

		row := d.buildRow(rule, source)
		if err := d.gateway.Upsert(ctx, rule.Table, row, rule.ConflictKey); err != nil {
			persistFailuresTotal.WithLabelValues(rule.Name).Inc()
			d.logger.Error("failed to persist onboarding data",
				"rule", rule.Name, "table", rule.Table, "error", err)
		}
	}
}

func (d *Dispatcher) buildRow(rule flow.PersistRule, source any) map[string]any {
	row := make(map[string]any)
	if fields, ok := source.(map[string]any); ok {
		maps.Copy(row, deepCopy(fields))
	} else {
		row[rule.Source] = source
	}

	for _, key := range rule.Include {
		if v, ok := d.wizard.FormValue(key); ok {
			row[key] = v
		}
	}

	row[rule.ConflictKey] = d.userID

	return row
}

func (d *Dispatcher) say(ctx context.Context, text string) {
	if text == "" || d.speaker == nil {
		return
	}

	if err := d.speaker.Speak(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn("failed to speak prompt", "error", err)
	}
}

// pauseListening stops the listener for the handler's duration. The returned
// func restarts it if it was running.
func (d *Dispatcher) pauseListening() func(context.Context) {
	if d.listener == nil {
		return func(context.Context) {}
	}

	wasListening := d.listener.IsListening()
	if wasListening {
		if err := d.listener.StopListening(); err != nil {
			d.logger.Warn("failed to stop listening", "error", err)
		}
	}
	d.listener.ResetTranscript()

	return func(ctx context.Context) {
		if !wasListening || ctx.Err() != nil {
			return
		}

		if err := d.listener.StartListening(ctx); err != nil {
			d.logger.Warn("failed to resume listening", "error", err)
		}
	}
}

func (d *Dispatcher) setTranscript(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.transcript = s
}

// present reports whether v holds data: nil, empty strings and empty
// collections do not count.
func present(v any) bool {
	if v == nil {
		return false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}

	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
