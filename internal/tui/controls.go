package tui

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alkime/onboard/internal/speech"
	"github.com/alkime/onboard/internal/voice"
	"github.com/alkime/onboard/pkg/uictl"
)

var (
	_ voice.Navigator = (*Navigator)(nil)
	_ uictl.Knob      = (*ListenerKnob)(nil)
)

// Navigator records the route the flow left for. The launch screen reads it.
type Navigator struct {
	mu    sync.Mutex
	route string
}

// Navigate records route.
func (n *Navigator) Navigate(_ context.Context, route string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.route = route

	return nil
}

// Route returns the last route navigated to.
func (n *Navigator) Route() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.route
}

// ListenerKnob switches a listener on and off from the UI.
type ListenerKnob struct {
	ctx      context.Context //nolint:containedctx // listening outlives any one key press
	listener speech.Listener
	logger   *slog.Logger
}

// NewListenerKnob wraps l. Listening started by the knob stops when ctx ends.
func NewListenerKnob(ctx context.Context, l speech.Listener, logger *slog.Logger) *ListenerKnob {
	if logger == nil {
		logger = slog.Default()
	}

	return &ListenerKnob{ctx: ctx, listener: l, logger: logger}
}

func (k *ListenerKnob) Read() bool {
	return k.listener.IsListening()
}

func (k *ListenerKnob) On() {
	if k.listener.IsListening() {
		return
	}

	if err := k.listener.StartListening(k.ctx); err != nil {
		k.logger.Warn("failed to start listening", "error", err)
	}
}

func (k *ListenerKnob) Off() {
	if !k.listener.IsListening() {
		return
	}

	if err := k.listener.StopListening(); err != nil {
		k.logger.Warn("failed to stop listening", "error", err)
	}
}

func (k *ListenerKnob) Toggle() {
	if k.Read() {
		k.Off()
	} else {
		k.On()
	}
}
