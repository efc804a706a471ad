// Package platform gathers every OS-specific operation the core
// reconciliation, pause-controller, and data-pump logic needs, behind
// a narrow interface so that logic is testable with a fake.
package platform

import "image"

// ZLayer selects a Surface's window stacking behavior.
type ZLayer string

const (
	ZLayerDesktop ZLayer = "desktop"
	ZLayerBottom  ZLayer = "bottom"
	ZLayerNormal  ZLayer = "normal"
	ZLayerTop     ZLayer = "top"
	ZLayerTopmost ZLayer = "topmost"
	ZLayerOverlay ZLayer = "overlay"
)

// Rect is a pixel rectangle in virtual-desktop coordinates.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// Union returns the bounding rect of a and b.
func (r Rect) Union(o Rect) Rect {
	left := min(r.X, o.X)
	top := min(r.Y, o.Y)
	right := max(r.X+r.W, o.X+o.W)
	bottom := max(r.Y+r.H, o.Y+o.H)
	return Rect{X: left, Y: top, W: right - left, H: bottom - top}
}

// MonitorInfo describes one physical display.
type MonitorInfo struct {
	ID        string
	Ordinal   int
	Primary   bool
	Rect      Rect
	ScaleFactor float64
}

// TopologySnapshot is an immutable enumeration of monitors at one version.
type TopologySnapshot struct {
	Version  uint64
	Monitors []MonitorInfo
}

func (t TopologySnapshot) UnionRect() Rect {
	if len(t.Monitors) == 0 {
		return Rect{}
	}
	u := t.Monitors[0].Rect
	for _, m := range t.Monitors[1:] {
		u = u.Union(m.Rect)
	}
	return u
}

func (t TopologySnapshot) ByID(id string) (MonitorInfo, bool) {
	for _, m := range t.Monitors {
		if m.ID == id {
			return m, true
		}
	}
	return MonitorInfo{}, false
}

// FocusState describes a monitor's foreground-window state, as
// reported by the backend's registry.list_appdata call.
type FocusState struct {
	Focused    bool
	Maximized  bool
	Fullscreen bool
}

// WindowHandle is an opaque OS window reference.
type WindowHandle uintptr

// WebViewHandle is an opaque embedded-browser-control reference.
type WebViewHandle uintptr

// Platform is the seam between OS-specific code and the engine's core
// logic. Every method must be safe to call from the Supervisor's
// single thread; none may block indefinitely.
type Platform interface {
	// ListMonitors enumerates connected displays.
	ListMonitors() ([]MonitorInfo, error)

	// LocateWallpaperHost finds the compositor's hidden desktop-icon
	// sibling window, or returns an error if none can be found.
	LocateWallpaperHost() (WindowHandle, error)

	// CreateChildWindow creates a child window of parent at rect,
	// returning its handle.
	CreateChildWindow(parent WindowHandle, rect Rect) (WindowHandle, error)

	// ReparentWindow changes a window's parent and z-layer styling.
	ReparentWindow(win WindowHandle, parent WindowHandle, layer ZLayer) error

	// ResizeWindow moves/resizes a window in one call.
	ResizeWindow(win WindowHandle, rect Rect) error

	// ShowWindow toggles a window's visibility.
	ShowWindow(win WindowHandle, visible bool) error

	// DestroyWindow releases a window handle.
	DestroyWindow(win WindowHandle) error

	// CreateWebView hosts an embedded web view inside the given
	// child window, navigated to entryURL.
	CreateWebView(parent WindowHandle, rect Rect, entryURL string) (WebViewHandle, error)

	// PostMessage delivers a JSON payload to a web view's
	// script-to-host channel.
	PostMessage(wv WebViewHandle, payload []byte) error

	// OnScriptMessage registers handler to receive JSON payloads posted
	// by the web view's embedded content back to the host (its
	// host-to-script channel run in reverse). Replaces any previously
	// registered handler for wv.
	OnScriptMessage(wv WebViewHandle, handler func(payload []byte)) error

	// SuspendWebView pauses/resumes rendering without destroying state.
	SuspendWebView(wv WebViewHandle, suspend bool) error

	// CaptureWebView returns an RGBA bitmap of the current frame.
	CaptureWebView(wv WebViewHandle, rect Rect) (*image.RGBA, error)

	// DestroyWebView releases the embedded web view.
	DestroyWebView(wv WebViewHandle) error

	// CursorPosition returns the global cursor location and button state.
	CursorPosition() (x, y int, leftDown bool, err error)

	// KeyState reports whether a virtual-key code is currently down.
	KeyState(vk int) (down bool, err error)

	// AudioPeakLevel returns the default endpoint's current peak (0-1).
	AudioPeakLevel() (level float64, err error)

	// IdleSeconds returns seconds since last user input.
	IdleSeconds() (float64, error)

	// SetWallpaper applies an RGBA bitmap as the OS desktop wallpaper
	// without persisting it to the user's saved wallpaper setting.
	SetWallpaper(img *image.RGBA) error

	// CurrentWallpaperPath returns the path of the wallpaper active
	// before the engine started managing it, for eventual restore.
	CurrentWallpaperPath() (string, error)
}
