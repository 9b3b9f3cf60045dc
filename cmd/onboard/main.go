package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/alkime/onboard/internal/audio"
	"github.com/alkime/onboard/internal/config"
	"github.com/alkime/onboard/internal/flow"
	"github.com/alkime/onboard/internal/keyring"
	"github.com/alkime/onboard/internal/logger"
	"github.com/alkime/onboard/internal/speech"
	"github.com/alkime/onboard/internal/store"
	"github.com/alkime/onboard/internal/tui"
	"github.com/alkime/onboard/internal/voice"
	"github.com/alkime/onboard/internal/wizard"
	"github.com/alkime/onboard/internal/workdir"
	"github.com/alkime/onboard/pkg/channels"
	"github.com/alkime/onboard/pkg/collections"
	"github.com/alkime/onboard/pkg/uictl"
	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"
)

// recentSamples is roughly 50ms of capture at 16kHz.
const recentSamples = 800

// CLI defines the onboard command structure.
type CLI struct {
	// Default TUI command (runs when no subcommand given)
	TUI TUICmd `cmd:"" default:"withargs" help:"Run the onboarding wizard in the terminal"`

	// Subcommands
	Flow    FlowCmd    `cmd:"" help:"Inspect and validate flow definitions"`
	Devices DevicesCmd `cmd:"" help:"List available audio devices"`
	Config  ConfigCmd  `cmd:"" help:"Manage configuration"`
}

// TUICmd is the default command that runs the TUI.
type TUICmd struct {
	FlowFile     string `arg:"" optional:"" type:"existingfile" help:"Flow definition YAML (default: built-in admin onboarding)"`
	User         string `flag:"" default:"local" help:"User id saved rows are keyed by"`
	DB           string `flag:"" optional:"" help:"SQLite database path (default: DB_PATH)"`
	LogFile      string `flag:"" optional:"" help:"Where logs are written while the TUI runs (default: $ONBOARD_HOME/onboard.log)"`
	NoMic        bool   `flag:"" help:"Type commands instead of speaking them"`
	Mute         bool   `flag:"" help:"Show prompts without playing audio"`
	OpenAIAPIKey string `flag:"" env:"OPENAI_API_KEY" help:"OpenAI API key for speech"`
}

// Run executes the TUI command.
//
//nolint:funlen // CLI command with multiple setup steps
func (c *TUICmd) Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.LogFile == "" {
		if err := workdir.Prep(); err != nil {
			return err
		}
		if c.LogFile, err = workdir.FilePath(workdir.LogFile); err != nil {
			return err
		}
	}

	log, logFile, err := logger.SetupFileLogger(cfg, c.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()

	if c.FlowFile == "" {
		c.FlowFile = cfg.FlowFile
	}

	def, err := flow.Load(c.FlowFile)
	if err != nil {
		return fmt.Errorf("failed to load flow: %w", err)
	}

	if c.DB == "" {
		c.DB = cfg.DBPath
	}

	db, err := store.OpenSQLite(c.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Resolve API key: flag/env first, then .env config, then keychain
	apiKey := c.OpenAIAPIKey
	if apiKey == "" {
		apiKey = cfg.OpenAIAPIKey
	}
	apiKey = keyring.Resolve(keyring.OpenAI, apiKey)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Word progress goes to the TUI and to the log.
	progress := channels.NewBroadcaster[speech.Progress]()
	uiProgress := make(chan speech.Progress, 64)
	logProgress := make(chan speech.Progress, 16)
	if err := progress.Subscribe(uiProgress); err != nil {
		return err
	}
	if err := progress.Subscribe(logProgress); err != nil {
		return err
	}

	progressIn, err := progress.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start progress broadcaster: %w", err)
	}

	go logSpokenPrompts(ctx, log, logProgress)

	narrator := speech.NewNarrator(cfg.WordInterval, progressIn)

	var speaker speech.Speaker = narrator
	if apiKey != "" && !c.Mute {
		speaker = speech.NewOpenAISpeaker(apiKey, cfg.TTSVoice, audio.NewPlayer(audio.PlaybackConfig()), narrator)
	}

	tuiCfg := tui.Config{
		Ctx:       ctx,
		Cancel:    cancel,
		Flow:      def,
		Navigator: &tui.Navigator{},
		Progress:  uiProgress,
	}

	if !c.NoMic && apiKey != "" {
		mic, dealloc, err := openMic(ctx, apiKey)
		if err != nil {
			log.Warn("microphone unavailable, using keyboard input", "error", err)
		} else {
			defer dealloc()

			tuiCfg.Listener = mic
			tuiCfg.Mic = tui.NewListenerKnob(ctx, mic, log)
			tuiCfg.Levels = uictl.LevelsFunc[int16](func() []int16 {
				return mic.Recent(recentSamples)
			})
		}
	}

	if tuiCfg.Listener == nil {
		tuiCfg.Typed = speech.NewTypedListener()
		tuiCfg.Listener = tuiCfg.Typed
	}

	if err := tuiCfg.Listener.StartListening(ctx); err != nil {
		return fmt.Errorf("failed to start listening: %w", err)
	}

	tuiCfg.Wizard = wizard.New(def)
	tuiCfg.Dispatcher = voice.NewDispatcher(def, tuiCfg.Wizard, voice.Options{
		Speaker:    speaker,
		Listener:   tuiCfg.Listener,
		Gateway:    db,
		Navigator:  tuiCfg.Navigator,
		UserID:     c.User,
		ThinkDelay: cfg.ThinkDelay,
		Logger:     log,
	})

	log.Info("starting onboarding", "flow", def.ID, "user", c.User, "mic", tuiCfg.Mic != nil)

	p := tea.NewProgram(tui.New(tuiCfg))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to start TUI: %w", err)
	}

	cancel()
	speaker.Stop()
	progress.Wait()

	if route := tuiCfg.Navigator.Route(); route != "" {
		printSaved(db, def, c.User)
		fmt.Printf("\nonboarding complete. next stop: %s\n", route)
		return nil
	}

	fmt.Println("\nfinished. bye!")

	return nil
}

// openMic starts capture and wraps it in a Whisper-backed listener.
func openMic(ctx context.Context, apiKey string) (*speech.MicListener, func(), error) {
	packets := make(chan audio.DataPacket, 64)

	dev := audio.NewDevice(audio.CaptureConfig())
	if err := dev.CaptureInto(ctx, packets); err != nil {
		return nil, nil, fmt.Errorf("failed to start audio capture: %w", err)
	}

	mic := speech.NewMicListener(dev, packets, speech.NewWhisperTranscriber(apiKey))

	dealloc := func() {
		_ = mic.StopListening()
		dev.Dealloc(context.Background())
		slog.Debug("Audio device deallocated")
	}

	return mic, dealloc, nil
}

func logSpokenPrompts(ctx context.Context, log *slog.Logger, progress <-chan speech.Progress) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-progress:
			if p.Done {
				log.Debug("prompt spoken", "text", p.Text)
			}
		}
	}
}

func printSaved(db *store.SQLite, def flow.Definition, userID string) {
	for _, rule := range def.Persistence {
		row, err := db.Get(context.Background(), rule.Table, userID)
		if err != nil {
			continue
		}
		fmt.Printf("saved %s (%d fields)\n", rule.Table, len(row))
	}
}

// FlowCmd groups flow definition subcommands.
type FlowCmd struct {
	List     FlowListCmd     `cmd:"" help:"List built-in flows"`
	Show     FlowShowCmd     `cmd:"" help:"Print a flow's steps and transitions"`
	Validate FlowValidateCmd `cmd:"" help:"Validate flow definition files"`
}

// FlowListCmd lists the embedded flows.
type FlowListCmd struct{}

// Run executes the list command.
//
//nolint:unparam // error return required by Kong interface
func (c *FlowListCmd) Run() error {
	for _, id := range flow.BuiltinIDs() {
		fmt.Println(id)
	}

	return nil
}

// FlowShowCmd prints a flow definition.
type FlowShowCmd struct {
	File   string `arg:"" optional:"" type:"existingfile" help:"Flow definition YAML (default: built-in admin onboarding)"`
	Format string `flag:"" default:"text" enum:"text,yaml,json" help:"Output format: text, yaml or json"`
}

// Run executes the show command.
func (c *FlowShowCmd) Run() error {
	def, err := flow.Load(c.File)
	if err != nil {
		return err
	}

	switch c.Format {
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(def)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(def)
	default:
		fmt.Print(describeFlow(def))
		return nil
	}
}

func describeFlow(def flow.Definition) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s)\n\n", def.Name, def.ID)

	for _, step := range def.Steps {
		fmt.Fprintf(&b, "%d. %s [%s]\n", step.Order, step.Title, step.ID)

		outgoing := collections.Filter(def.Transitions, func(tr flow.Transition) bool {
			return tr.From == step.ID
		})

		for _, tr := range outgoing {
			intents := collections.Apply(tr.On, func(in flow.Intent) string { return string(in) })

			target := "-> " + tr.To
			if tr.IsNavigation() {
				target = "=> " + tr.Navigate
			}
			fmt.Fprintf(&b, "   on %s %s\n", strings.Join(intents, "|"), target)

			for _, req := range tr.Require {
				fmt.Fprintf(&b, "   requires %s\n", req.Key)
			}
		}
	}

	if len(def.Persistence) > 0 {
		b.WriteString("\npersisted on exit:\n")
		for _, rule := range def.Persistence {
			fmt.Fprintf(&b, "   %s <- %s\n", rule.Table, rule.Source)
		}
	}

	return b.String()
}

// FlowValidateCmd validates flow files.
type FlowValidateCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Flow definition YAML files"`
}

// Run executes the validate command.
func (c *FlowValidateCmd) Run() error {
	var failed int

	for _, file := range c.Files {
		def, err := flow.LoadDefinitionFile(file)
		if err != nil {
			fmt.Printf("%s: %v\n", file, err)
			failed++
			continue
		}
		fmt.Printf("%s: ok (%s, %d steps)\n", file, def.ID, len(def.Steps))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d flow files are invalid", failed, len(c.Files))
	}

	return nil
}

// DevicesCmd lists available audio devices.
type DevicesCmd struct{}

// Run executes the devices command.
func (dcmd *DevicesCmd) Run() error {
	slog.Info("Enumerating audio devices...")

	adev := audio.NewDevice(nil)
	devices, err := adev.EnumerateDevices(context.Background())
	if err != nil {
		return fmt.Errorf("failed to enumerate audio devices: %w", err)
	}

	for _, dev := range devices {
		slog.Info("Audio Device",
			"name", dev.Name,
			"isDefault", dev.IsDefault,
			"formatCount", dev.FormatCount,
			"formats", dev.Formats,
		)
	}

	return nil
}

// ConfigCmd groups configuration-related subcommands.
type ConfigCmd struct {
	SetKey    SetKeyCmd    `cmd:"" help:"Store an API key in system keychain"`
	DeleteKey DeleteKeyCmd `cmd:"" name:"delete-key" help:"Remove an API key from system keychain"`
	ListKeys  ListKeysCmd  `cmd:"" name:"list-keys" help:"Show which API keys are configured"`
}

// SetKeyCmd stores an API key in the system keychain.
type SetKeyCmd struct {
	Service string `arg:"" enum:"openai" help:"Service name (openai)"`
	Secret  string `arg:"" help:"API key value"`
}

// Run executes the set-key command.
func (c *SetKeyCmd) Run() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("API key cannot be empty")
	}

	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.Set(apiKey, c.Secret); err != nil {
		return fmt.Errorf("failed to store API key: %w", err)
	}

	fmt.Printf("%s API key stored in keychain\n", c.Service)

	return nil
}

// DeleteKeyCmd removes an API key from the system keychain.
type DeleteKeyCmd struct {
	Service string `arg:"" enum:"openai" help:"Service name (openai)"`
}

// Run executes the delete-key command.
func (c *DeleteKeyCmd) Run() error {
	apiKey, err := keyring.APIKeyFromServiceName(c.Service)
	if err != nil {
		return fmt.Errorf("invalid service: %w", err)
	}

	if err := keyring.Delete(apiKey); err != nil {
		return fmt.Errorf("failed to delete API key: %w", err)
	}

	fmt.Printf("%s API key removed from keychain\n", c.Service)

	return nil
}

// ListKeysCmd shows which API keys are configured.
type ListKeysCmd struct{}

// Run executes the list-keys command.
//
//nolint:unparam // error return required by Kong interface
func (c *ListKeysCmd) Run() error {
	allSet := true

	for _, apiKey := range keyring.AllAPIKeys() {
		if keyring.IsSet(apiKey) {
			fmt.Printf("%s: configured\n", apiKey.DisplayName())
		} else {
			fmt.Printf("%s: not set\n", apiKey.DisplayName())
			allSet = false
		}
	}

	if !allSet {
		fmt.Println("\nRun 'onboard config set-key <service> <key>' to configure.")
	}

	return nil
}

func main() {
	// Set up text-based logger for CLI output
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))

	cli := &CLI{} //nolint:exhaustruct // Kong fills in command fields
	ctx := kong.Parse(cli,
		kong.Name("onboard"),
		kong.Description("Voice-driven onboarding wizard."),
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
	os.Exit(0)
}
