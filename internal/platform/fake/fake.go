// Package fake provides an in-memory platform.Platform implementation
// for testing reconciliation, pause-controller, and data-pump logic
// without a real Windows desktop.
package fake

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/sentinel-wallpaper/engine/internal/platform"
)

// Platform is a fully in-memory, goroutine-safe fake of platform.Platform.
type Platform struct {
	mu sync.Mutex

	Monitors       []platform.MonitorInfo
	HostHandle     platform.WindowHandle
	HostErr        error
	NextHandle     uint64
	Windows        map[platform.WindowHandle]*windowState
	WebViews       map[platform.WebViewHandle]*webViewState
	CursorX        int
	CursorY        int
	CursorDown     bool
	KeyStates      map[int]bool
	AudioLevel     float64
	IdleSecs       float64
	Wallpaper      *image.RGBA
	WallpaperPath  string
	SetWallpaperFn func(img *image.RGBA) error

	Messages []PostedMessage
}

type windowState struct {
	parent  platform.WindowHandle
	layer   platform.ZLayer
	rect    platform.Rect
	visible bool
}

type webViewState struct {
	parent    platform.WindowHandle
	rect      platform.Rect
	entryURL  string
	suspended bool
	lastFrame *image.RGBA
	onMessage func([]byte)
}

// PostedMessage records one PostMessage call for assertions.
type PostedMessage struct {
	WebView platform.WebViewHandle
	Payload []byte
}

func New(monitors []platform.MonitorInfo) *Platform {
	return &Platform{
		Monitors:  monitors,
		Windows:   make(map[platform.WindowHandle]*windowState),
		WebViews:  make(map[platform.WebViewHandle]*webViewState),
		KeyStates: make(map[int]bool),
		HostHandle: platform.WindowHandle(1),
	}
}

func (p *Platform) nextHandle() uint64 {
	return atomic.AddUint64(&p.NextHandle, 1) + 1
}

func (p *Platform) ListMonitors() ([]platform.MonitorInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]platform.MonitorInfo, len(p.Monitors))
	copy(out, p.Monitors)
	return out, nil
}

func (p *Platform) LocateWallpaperHost() (platform.WindowHandle, error) {
	if p.HostErr != nil {
		return 0, p.HostErr
	}
	return p.HostHandle, nil
}

func (p *Platform) CreateChildWindow(parent platform.WindowHandle, rect platform.Rect) (platform.WindowHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := platform.WindowHandle(p.nextHandle())
	p.Windows[h] = &windowState{parent: parent, rect: rect, visible: true}
	return h, nil
}

func (p *Platform) ReparentWindow(win platform.WindowHandle, parent platform.WindowHandle, layer platform.ZLayer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.Windows[win]
	if !ok {
		return fmt.Errorf("fake: unknown window %v", win)
	}
	w.parent = parent
	w.layer = layer
	return nil
}

func (p *Platform) ResizeWindow(win platform.WindowHandle, rect platform.Rect) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.Windows[win]
	if !ok {
		return fmt.Errorf("fake: unknown window %v", win)
	}
	w.rect = rect
	return nil
}

func (p *Platform) ShowWindow(win platform.WindowHandle, visible bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, ok := p.Windows[win]
	if !ok {
		return fmt.Errorf("fake: unknown window %v", win)
	}
	w.visible = visible
	return nil
}

func (p *Platform) DestroyWindow(win platform.WindowHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Windows, win)
	return nil
}

func (p *Platform) CreateWebView(parent platform.WindowHandle, rect platform.Rect, entryURL string) (platform.WebViewHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := platform.WebViewHandle(p.nextHandle())
	p.WebViews[h] = &webViewState{parent: parent, rect: rect, entryURL: entryURL}
	return h, nil
}

func (p *Platform) PostMessage(wv platform.WebViewHandle, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.WebViews[wv]
	if !ok {
		return fmt.Errorf("fake: unknown webview %v", wv)
	}
	if state.suspended {
		return nil
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	p.Messages = append(p.Messages, PostedMessage{WebView: wv, Payload: cp})
	return nil
}

// OnScriptMessage registers handler for wv. DeliverScriptMessage drives it.
func (p *Platform) OnScriptMessage(wv platform.WebViewHandle, handler func([]byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.WebViews[wv]
	if !ok {
		return fmt.Errorf("fake: unknown webview %v", wv)
	}
	state.onMessage = handler
	return nil
}

// DeliverScriptMessage simulates embedded content posting raw back to
// the host, for exercising the OnScriptMessage registration in tests.
func (p *Platform) DeliverScriptMessage(wv platform.WebViewHandle, raw []byte) {
	p.mu.Lock()
	state, ok := p.WebViews[wv]
	p.mu.Unlock()
	if !ok || state.onMessage == nil {
		return
	}
	state.onMessage(raw)
}

func (p *Platform) SuspendWebView(wv platform.WebViewHandle, suspend bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.WebViews[wv]
	if !ok {
		return fmt.Errorf("fake: unknown webview %v", wv)
	}
	state.suspended = suspend
	return nil
}

func (p *Platform) CaptureWebView(wv platform.WebViewHandle, rect platform.Rect) (*image.RGBA, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.WebViews[wv]
	if !ok {
		return nil, fmt.Errorf("fake: unknown webview %v", wv)
	}
	img := image.NewRGBA(image.Rect(0, 0, rect.W, rect.H))
	state.lastFrame = img
	return img, nil
}

func (p *Platform) DestroyWebView(wv platform.WebViewHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.WebViews, wv)
	return nil
}

func (p *Platform) CursorPosition() (x, y int, leftDown bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CursorX, p.CursorY, p.CursorDown, nil
}

func (p *Platform) KeyState(vk int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.KeyStates[vk], nil
}

func (p *Platform) AudioPeakLevel() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.AudioLevel, nil
}

func (p *Platform) IdleSeconds() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.IdleSecs, nil
}

func (p *Platform) SetWallpaper(img *image.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SetWallpaperFn != nil {
		return p.SetWallpaperFn(img)
	}
	p.Wallpaper = img
	return nil
}

func (p *Platform) CurrentWallpaperPath() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.WallpaperPath, nil
}

var _ platform.Platform = (*Platform)(nil)
