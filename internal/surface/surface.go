// Package surface owns one embedded web view per (monitor, profile)
// pair: its host child window, geometry, visibility, z-order, and the
// message channel to the rendered wallpaper content.
package surface

import (
	"encoding/json"
	"fmt"
	"image"
	"sync"

	"github.com/sentinel-wallpaper/engine/internal/logging"
	"github.com/sentinel-wallpaper/engine/internal/messages"
	"github.com/sentinel-wallpaper/engine/internal/platform"
)

var log = logging.L("surface")

// State is the Surface lifecycle state machine. The only path back
// from Paused is to Ready; Destroying is terminal in all directions.
type State int

const (
	StateStarting State = iota
	StateReady
	StatePaused
	StateDestroying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// LayoutMode controls how the web view's backing rect relates to the
// monitor rect(s) it covers.
type LayoutMode string

const (
	LayoutFill    LayoutMode = "fill"
	LayoutFit     LayoutMode = "fit"
	LayoutStretch LayoutMode = "stretch"
	LayoutCenter  LayoutMode = "center"
	LayoutTile    LayoutMode = "tile"
	LayoutSpan    LayoutMode = "span"
)

// Key identifies a Surface by its (monitor, profile) pair; at most
// one Surface exists per Key.
type Key struct {
	MonitorID string
	ProfileID string
}

// Spec is the immutable creation request for one Surface.
type Spec struct {
	Key        Key
	Monitor    platform.MonitorInfo
	AssetURL   string
	Layout     LayoutMode
	ZLayer     platform.ZLayer
	SpanRect   platform.Rect // only meaningful when Layout == LayoutSpan
}

// Surface is created, reparented, resized, pushed to, captured, paused,
// and destroyed exclusively by the Supervisor on its single event-loop
// thread — every method here assumes single-threaded-caller discipline
// except where noted.
type Surface struct {
	spec Spec
	plat platform.Platform

	mu         sync.Mutex
	state      State
	window     platform.WindowHandle
	webview    platform.WebViewHandle
	rect       platform.Rect
	generation uint64
	lastFrame  *image.RGBA

	// demandedSections narrows which dot-notation sysdata/appdata
	// paths the Supervisor's registry pushes deliver, set by the embedded content posting
	// a sentinel_demands message. Nil means no demand has been made
	// yet — every section is delivered.
	demandedSections []string
}

// Create opens a child window under parent at the Surface's target
// rect and asynchronously initializes the web view. The Surface enters
// Starting and transitions to Ready once CreateWebView returns a
// handle (modeled here as synchronous, matching the platform
// interface's contract of returning only once the web view object
// exists, even though first-paint happens later).
func Create(plat platform.Platform, parent platform.WindowHandle, spec Spec) (*Surface, error) {
	rect := targetRect(spec)

	win, err := plat.CreateChildWindow(parent, rect)
	if err != nil {
		return nil, fmt.Errorf("surface: create child window: %w", err)
	}
	if err := plat.ReparentWindow(win, parent, spec.ZLayer); err != nil {
		plat.DestroyWindow(win)
		return nil, fmt.Errorf("surface: apply z-layer: %w", err)
	}

	s := &Surface{
		spec:   spec,
		plat:   plat,
		state:  StateStarting,
		window: win,
		rect:   rect,
	}

	wv, err := plat.CreateWebView(win, rect, spec.AssetURL)
	if err != nil {
		plat.DestroyWindow(win)
		return nil, fmt.Errorf("surface: create web view: %w", err)
	}
	s.webview = wv
	s.state = StateReady

	if err := plat.OnScriptMessage(wv, s.handleInboundMessage); err != nil {
		log.Warn("failed to register inbound script message handler", "key", spec.Key, "error", err)
	}

	plat.ShowWindow(win, true)
	return s, nil
}

// handleInboundMessage decodes a script-to-host payload and applies
// the subset of message types a Surface itself is responsible for.
// Everything except sentinel_demands is the Supervisor's concern
// (config/profile/editable relays), handled upstream of this package.
func (s *Surface) handleInboundMessage(raw []byte) {
	var env messages.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return
	}
	if env.Type != messages.TypeDemands {
		return
	}
	var d messages.Demands
	if err := json.Unmarshal(raw, &d); err != nil {
		log.Warn("failed to decode sentinel_demands payload", "key", s.spec.Key, "error", err)
		return
	}

	s.mu.Lock()
	s.demandedSections = d.Sections
	s.mu.Unlock()
}

// DemandedSections returns the dot-notation section prefixes the
// embedded content last demanded, or nil if it has never demanded a
// subset (meaning: send everything).
func (s *Surface) DemandedSections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.demandedSections
}

func (s *Surface) Key() Key { return s.spec.Key }

func (s *Surface) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WebView returns the underlying web view handle, for callers that
// need to address the platform layer directly (e.g. registering
// additional event handlers in tests).
func (s *Surface) WebView() platform.WebViewHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webview
}

func (s *Surface) Rect() platform.Rect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rect
}

// ReparentTo changes the Surface's z-layer in place: window style and
// parent handle are updated together so the caller never observes a
// half-migrated window. An invalid layer is a no-op, logged.
func (s *Surface) ReparentTo(parent platform.WindowHandle, layer platform.ZLayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroying || s.state == StateDestroyed {
		return nil
	}
	if !validZLayer(layer) {
		log.Warn("ignoring reparent to invalid z-layer", "key", s.spec.Key, "layer", layer)
		return nil
	}

	wasVisible := s.state != StatePaused
	if err := s.plat.ReparentWindow(s.window, parent, layer); err != nil {
		return fmt.Errorf("surface: reparent: %w", err)
	}
	s.spec.ZLayer = layer
	s.plat.ShowWindow(s.window, wasVisible)
	return nil
}

// ResizeTo moves and resizes the child window. The web view's own
// bounds are not changed by this call; only the window is resized.
func (s *Surface) ResizeTo(rect platform.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroying || s.state == StateDestroyed {
		return nil
	}
	if err := s.plat.ResizeWindow(s.window, rect); err != nil {
		return fmt.Errorf("surface: resize: %w", err)
	}
	s.rect = rect
	return nil
}

// PushData delivers a typed message to the embedded content's
// script-to-host channel. Silently dropped while paused, per the
// no-work-while-hidden invariant.
func (s *Surface) PushData(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StatePaused || s.state == StateDestroying || s.state == StateDestroyed {
		return nil
	}
	return s.plat.PostMessage(s.webview, payload)
}

// Generation returns the last data-pump generation counter pushed to
// this Surface, used by the Supervisor to decide whether a fresh
// Data Pump snapshot needs delivering.
func (s *Surface) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Surface) SetGeneration(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation = gen
}

// CaptureFrame returns an RGBA bitmap of the current frame at monitor
// size. A transient capture failure returns the last-known bitmap
// instead of propagating the error, since the caller (Pause
// Controller) needs a usable frame to stitch into the desktop
// snapshot even when one Surface briefly fails to capture.
func (s *Surface) CaptureFrame() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	img, err := s.plat.CaptureWebView(s.webview, s.rect)
	if err != nil {
		if s.lastFrame != nil {
			return s.lastFrame, nil
		}
		return nil, fmt.Errorf("surface: capture frame: %w", err)
	}
	s.lastFrame = img
	return img, nil
}

// SetPaused toggles child window visibility and suspends/resumes
// web-view rendering. Idempotent: calling with the same value twice is
// a no-op the second time.
func (s *Surface) SetPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case paused && s.state == StateReady:
		if err := s.plat.SuspendWebView(s.webview, true); err != nil {
			return fmt.Errorf("surface: suspend web view: %w", err)
		}
		s.plat.ShowWindow(s.window, false)
		s.state = StatePaused
	case !paused && s.state == StatePaused:
		s.plat.ShowWindow(s.window, true)
		if err := s.plat.SuspendWebView(s.webview, false); err != nil {
			return fmt.Errorf("surface: resume web view: %w", err)
		}
		s.state = StateReady
	}
	return nil
}

// Destroy releases the web view, then the child window, then unparents
// — the defined teardown order. Destroying is terminal; repeated calls
// are harmless.
func (s *Surface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateDestroying || s.state == StateDestroyed {
		return
	}
	s.state = StateDestroying

	if err := s.plat.DestroyWebView(s.webview); err != nil {
		log.Warn("failed to destroy web view", "key", s.spec.Key, "error", err)
	}
	if err := s.plat.DestroyWindow(s.window); err != nil {
		log.Warn("failed to destroy child window", "key", s.spec.Key, "error", err)
	}
	s.state = StateDestroyed
}

func validZLayer(layer platform.ZLayer) bool {
	switch layer {
	case platform.ZLayerDesktop, platform.ZLayerBottom, platform.ZLayerNormal, platform.ZLayerTop, platform.ZLayerTopmost, platform.ZLayerOverlay:
		return true
	default:
		return false
	}
}

// targetRect computes the Surface's backing rect for its layout mode.
// fill/fit/stretch/center/tile all resolve to the monitor's own rect —
// the visual distinction between them (crop-to-cover vs letterbox vs
// distort vs natural-size-centered vs CSS repeat) is expressed by the
// entry document's CSS against a full-monitor-sized viewport, not by
// window geometry. span is the one mode where the backing rect itself
// differs: it covers the union of the profile's selected monitors.
func targetRect(spec Spec) platform.Rect {
	if spec.Layout == LayoutSpan {
		return spec.SpanRect
	}
	return spec.Monitor.Rect
}
