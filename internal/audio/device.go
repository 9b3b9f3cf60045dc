package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alkime/onboard/pkg/collections"
	"github.com/gen2brain/malgo"
)

// Capturer starts and stops a capture stream.
type Capturer interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsStarted() bool
}

type Device interface {
	Capturer

	// EnumerateDevices lists available audio devices.
	// It ignores any device configuration passed in.
	EnumerateDevices(ctx context.Context) ([]Info, error)

	// CaptureInto initializes the underlying device and uses the provided
	// data channel to write packets of sampled bytes into when Start() is called.
	CaptureInto(ctx context.Context, dataC chan DataPacket) error

	// Dealloc deallocates the underlying audio device and frees resources.
	Dealloc(ctx context.Context)
}

type device struct {
	conf *DeviceConfig

	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
}

func NewDevice(conf *DeviceConfig) Device {
	return &device{conf: conf}
}

func (d *device) EnumerateDevices(ctx context.Context) ([]Info, error) {
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(devCtx)

	captureDevices, err := devCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	playbackDevices, err := devCtx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to get playback devices: %w", err)
	}

	infos := collections.Apply(captureDevices, func(mdi malgo.DeviceInfo) Info {
		return malgoDeviceInfoToDeviceInfo(mdi, "capture")
	})
	infos = append(infos, collections.Apply(playbackDevices, func(mdi malgo.DeviceInfo) Info {
		return malgoDeviceInfoToDeviceInfo(mdi, "playback")
	})...)

	return infos, nil
}

func (d *device) CaptureInto(ctx context.Context, dataC chan DataPacket) error {
	if dataC == nil {
		return errors.New("data channel is nil. unable to allocate device")
	}

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = d.conf.Format
	devCnf.Capture.Channels = uint32(d.conf.CaptureChannels)
	devCnf.SampleRate = uint32(d.conf.SampleRate)

	callBacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			// malgo reuses its buffer between callbacks
			packet := make([]byte, len(samples))
			copy(packet, samples)
			select {
			case dataC <- packet:
			default:
				slog.Debug("dropping audio packet, consumer is behind")
			}
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callBacks)
	if err != nil {
		uninitializeContext(mgCtx)
		return fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	d.mgCtx, d.mgDevice = mgCtx, mgDevice

	return nil
}

func (d *device) Start(ctx context.Context) error {
	if d.mgDevice == nil {
		return fmt.Errorf("device nil. have you allocated and CaptureInto()ed it?")
	}

	if d.mgDevice.IsStarted() {
		// noop
		return nil
	}

	if err := d.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (d *device) Stop(ctx context.Context) error {
	if d.mgDevice == nil || !d.mgDevice.IsStarted() {
		// noop
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (d *device) Dealloc(ctx context.Context) {
	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	uninitializeContext(d.mgCtx)
	d.mgDevice = nil
	d.mgCtx = nil
}

func (d *device) IsStarted() bool {
	if d.mgDevice == nil {
		return false
	}

	return d.mgDevice.IsStarted()
}

// Player plays mono S16LE PCM through the default playback device.
type Player struct {
	conf *DeviceConfig
}

// NewPlayer creates a player for the given config.
func NewPlayer(conf *DeviceConfig) *Player {
	return &Player{conf: conf}
}

// Play blocks until pcm has been played or ctx is cancelled.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(mgCtx)

	devCnf := malgo.DefaultDeviceConfig(malgo.Playback)
	devCnf.Playback.Format = p.conf.Format
	devCnf.Playback.Channels = uint32(p.conf.PlaybackChannels)
	devCnf.SampleRate = uint32(p.conf.SampleRate)

	var (
		mu       sync.Mutex
		offset   int
		done     = make(chan struct{})
		doneOnce sync.Once
	)

	callBacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) {
			mu.Lock()
			defer mu.Unlock()

			n := copy(output, pcm[offset:])
			offset += n
			clear(output[n:])

			if offset >= len(pcm) {
				doneOnce.Do(func() { close(done) })
			}
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callBacks)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo playback device: %w", err)
	}
	defer mgDevice.Uninit()

	if err := mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo playback device: %w", err)
	}

	select {
	case <-done:
	case <-ctx.Done():
	}

	if err := mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo playback device: %w", err)
	}

	return ctx.Err()
}

type Info struct {
	Name        string
	Kind        string
	IsDefault   bool
	FormatCount int
	Formats     []string
}

func malgoDeviceInfoToDeviceInfo(mdi malgo.DeviceInfo, kind string) Info {
	formats := make([]string, len(mdi.Formats))
	for i, mf := range mdi.Formats {
		formats[i] = fmt.Sprintf("(SampleSizeBytes: %d, Channels: %d, SampleRate: %d)",
			malgo.SampleSizeInBytes(mf.Format),
			mf.Channels, mf.SampleRate)
	}
	return Info{
		Name:        mdi.Name(),
		Kind:        kind,
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
	}
}

type DataPacket = []byte

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
