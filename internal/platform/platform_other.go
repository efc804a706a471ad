//go:build !windows

package platform

import (
	"errors"
	"image"

	"github.com/sentinel-wallpaper/engine/internal/logging"
)

var log = logging.L("platform")

var errUnsupported = errors.New("platform: not supported on this OS")

// stubPlatform lets the core packages build and run their unit tests
// (against the fake platform) on non-Windows development machines;
// every real operation here is a hard error since the engine targets
// one desktop compositor with a wallpaper-host window.
type stubPlatform struct{}

// New constructs the stub platform. Production builds of this engine
// are Windows-only; see platform_windows.go for the real implementation.
func New() Platform { return &stubPlatform{} }

func (s *stubPlatform) ListMonitors() ([]MonitorInfo, error)        { return nil, errUnsupported }
func (s *stubPlatform) LocateWallpaperHost() (WindowHandle, error)  { return 0, errUnsupported }
func (s *stubPlatform) CreateChildWindow(WindowHandle, Rect) (WindowHandle, error) {
	return 0, errUnsupported
}
func (s *stubPlatform) ReparentWindow(WindowHandle, WindowHandle, ZLayer) error { return errUnsupported }
func (s *stubPlatform) ResizeWindow(WindowHandle, Rect) error                   { return errUnsupported }
func (s *stubPlatform) ShowWindow(WindowHandle, bool) error                     { return errUnsupported }
func (s *stubPlatform) DestroyWindow(WindowHandle) error                       { return errUnsupported }
func (s *stubPlatform) CreateWebView(WindowHandle, Rect, string) (WebViewHandle, error) {
	return 0, errUnsupported
}
func (s *stubPlatform) PostMessage(WebViewHandle, []byte) error          { return errUnsupported }
func (s *stubPlatform) OnScriptMessage(WebViewHandle, func([]byte)) error { return errUnsupported }
func (s *stubPlatform) SuspendWebView(WebViewHandle, bool) error         { return errUnsupported }
func (s *stubPlatform) CaptureWebView(WebViewHandle, Rect) (*image.RGBA, error) {
	return nil, errUnsupported
}
func (s *stubPlatform) DestroyWebView(WebViewHandle) error { return errUnsupported }
func (s *stubPlatform) CursorPosition() (int, int, bool, error) {
	return 0, 0, false, errUnsupported
}
func (s *stubPlatform) KeyState(int) (bool, error)       { return false, errUnsupported }
func (s *stubPlatform) AudioPeakLevel() (float64, error) { return 0, errUnsupported }
func (s *stubPlatform) IdleSeconds() (float64, error)    { return 0, errUnsupported }
func (s *stubPlatform) SetWallpaper(*image.RGBA) error   { return errUnsupported }
func (s *stubPlatform) CurrentWallpaperPath() (string, error) {
	return "", errUnsupported
}

var _ Platform = (*stubPlatform)(nil)
