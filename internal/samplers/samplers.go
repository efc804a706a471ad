// Package samplers globally observes cursor position, keyboard state,
// and system audio peak level, publishing debounced events onto
// bounded channels drained by the Supervisor — sampler goroutines
// never touch Surface handles directly.
package samplers

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/sentinel-wallpaper/engine/internal/logging"
	"github.com/sentinel-wallpaper/engine/internal/platform"
)

var log = logging.L("samplers")

// CursorKind discriminates a CursorEvent.
type CursorKind int

const (
	CursorMove CursorKind = iota
	CursorClick
)

// CursorEvent carries a global (virtual-desktop) pixel position; each
// Surface converts to local + normalized coordinates on delivery.
type CursorEvent struct {
	Kind CursorKind
	X, Y int
}

// CursorSource is the subset of platform.Platform the cursor sampler needs.
type CursorSource interface {
	CursorPosition() (x, y int, leftDown bool, err error)
}

// CursorSampler polls global cursor position at PollInterval, emitting
// a move event when displacement exceeds MoveThresholdPx and a click
// event on the left-button-down edge.
type CursorSampler struct {
	src             CursorSource
	PollInterval    time.Duration
	MoveThresholdPx int

	events chan CursorEvent
}

func NewCursorSampler(src CursorSource, pollInterval time.Duration, moveThresholdPx int) *CursorSampler {
	return &CursorSampler{
		src:             src,
		PollInterval:    pollInterval,
		MoveThresholdPx: moveThresholdPx,
		events:          make(chan CursorEvent, 256),
	}
}

func (s *CursorSampler) Events() <-chan CursorEvent { return s.events }

func (s *CursorSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	lastX, lastY := 0, 0
	lastDown := false
	haveLast := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			x, y, down, err := s.src.CursorPosition()
			if err != nil {
				log.Warn("cursor sample failed", "error", err)
				continue
			}

			if !haveLast {
				lastX, lastY, lastDown, haveLast = x, y, down, true
				s.emit(CursorEvent{Kind: CursorMove, X: x, Y: y})
				continue
			}

			if dist(x, y, lastX, lastY) > float64(s.MoveThresholdPx) {
				s.emit(CursorEvent{Kind: CursorMove, X: x, Y: y})
				lastX, lastY = x, y
			}
			if down && !lastDown {
				s.emit(CursorEvent{Kind: CursorClick, X: x, Y: y})
			}
			lastDown = down
		}
	}
}

func (s *CursorSampler) emit(ev CursorEvent) {
	select {
	case s.events <- ev:
	default:
		// Freshest-wins: drop the stale pending sample in favor of this one.
		select {
		case <-s.events:
		default:
		}
		s.events <- ev
	}
}

func dist(x1, y1, x2, y2 int) float64 {
	dx := float64(x1 - x2)
	dy := float64(y1 - y2)
	return math.Sqrt(dx*dx + dy*dy)
}

// trackedVKs is the fixed set of virtual-key codes the key sampler
// polls: A-Z, 0-9, F1-F12, modifiers, arrows, space/enter.
var trackedVKs = buildTrackedVKs()

func buildTrackedVKs() map[int]string {
	out := make(map[int]string)
	for vk := 0x41; vk <= 0x5A; vk++ { // A-Z
		out[vk] = string(rune('A' + (vk - 0x41)))
	}
	for vk := 0x30; vk <= 0x39; vk++ { // 0-9
		out[vk] = string(rune('0' + (vk - 0x30)))
	}
	for i := 1; i <= 12; i++ { // F1-F12
		out[0x70+i-1] = "F" + strconv.Itoa(i)
	}
	out[0x10] = "Shift"
	out[0x11] = "Control"
	out[0x12] = "Alt"
	out[0x25] = "ArrowLeft"
	out[0x26] = "ArrowUp"
	out[0x27] = "ArrowRight"
	out[0x28] = "ArrowDown"
	out[0x20] = "Space"
	out[0x0D] = "Enter"
	return out
}

// KeySource is the subset of platform.Platform the key sampler needs.
type KeySource interface {
	KeyState(vk int) (bool, error)
}

// KeyEvent is an edge-triggered key transition.
type KeyEvent struct {
	Key   string
	VK    int
	Down  bool
}

// KeySampler polls the fixed tracked-VK set at PollInterval, emitting
// an event on every down/up edge.
type KeySampler struct {
	src          KeySource
	PollInterval time.Duration

	events chan KeyEvent
}

func NewKeySampler(src KeySource, pollInterval time.Duration) *KeySampler {
	return &KeySampler{src: src, PollInterval: pollInterval, events: make(chan KeyEvent, 256)}
}

func (s *KeySampler) Events() <-chan KeyEvent { return s.events }

func (s *KeySampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	state := make(map[int]bool, len(trackedVKs))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for vk, name := range trackedVKs {
				down, err := s.src.KeyState(vk)
				if err != nil {
					continue
				}
				if down != state[vk] {
					state[vk] = down
					s.emit(KeyEvent{Key: name, VK: vk, Down: down})
				}
			}
		}
	}
}

func (s *KeySampler) emit(ev KeyEvent) {
	select {
	case s.events <- ev:
	default:
		select {
		case <-s.events:
		default:
		}
		s.events <- ev
	}
}

// AudioSource is the subset of platform.Platform the audio sampler needs.
type AudioSource interface {
	AudioPeakLevel() (float64, error)
}

// AudioConfig mirrors config.AudioConfig's sampler-relevant fields,
// decoupling this package from internal/config.
type AudioConfig struct {
	SampleInterval   time.Duration
	EndpointRefresh  time.Duration
	RetryInterval    time.Duration
	ChangeThreshold  float64
	QuantizeDecimals int
}

// AudioSampler polls the default endpoint's peak meter and emits a
// level change only when it moves by at least ChangeThreshold,
// quantized to QuantizeDecimals.
type AudioSampler struct {
	src AudioSource
	cfg AudioConfig

	events chan float64
}

func NewAudioSampler(src AudioSource, cfg AudioConfig) *AudioSampler {
	return &AudioSampler{src: src, cfg: cfg, events: make(chan float64, 16)}
}

func (s *AudioSampler) Events() <-chan float64 { return s.events }

func (s *AudioSampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SampleInterval)
	defer ticker.Stop()

	lastRefresh := time.Now()
	lastLevel := math.Inf(-1)
	haveLast := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(lastRefresh) >= s.cfg.EndpointRefresh {
				lastRefresh = time.Now()
			}

			level, err := s.src.AudioPeakLevel()
			if err != nil {
				log.Warn("audio sample failed, retrying", "error", err)
				time.Sleep(s.cfg.RetryInterval)
				continue
			}

			q := quantize(level, s.cfg.QuantizeDecimals)
			if !haveLast || math.Abs(q-lastLevel) >= s.cfg.ChangeThreshold {
				lastLevel = q
				haveLast = true
				select {
				case s.events <- q:
				default:
					select {
					case <-s.events:
					default:
					}
					s.events <- q
				}
			}
		}
	}
}

func quantize(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}

// Sampler is the trio a Supervisor wires up for one process lifetime.
type Sampler struct {
	Cursor *CursorSampler
	Key    *KeySampler
	Audio  *AudioSampler
}

// New constructs all three samplers against a shared platform.Platform.
func New(plat platform.Platform, cursorPoll time.Duration, moveThresholdPx int, keyPoll time.Duration, audioCfg AudioConfig) *Sampler {
	return &Sampler{
		Cursor: NewCursorSampler(plat, cursorPoll, moveThresholdPx),
		Key:    NewKeySampler(plat, keyPoll),
		Audio:  NewAudioSampler(plat, audioCfg),
	}
}

func (s *Sampler) Run(ctx context.Context) {
	go s.Cursor.Run(ctx)
	go s.Key.Run(ctx)
	go s.Audio.Run(ctx)
}
