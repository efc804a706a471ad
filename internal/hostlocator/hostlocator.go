// Package hostlocator finds and caches the compositor's hidden
// wallpaper-host window, the parent under which desktop-layer
// Surfaces are reparented.
package hostlocator

import (
	"sync"

	"github.com/sentinel-wallpaper/engine/internal/logging"
	"github.com/sentinel-wallpaper/engine/internal/platform"
)

var log = logging.L("hostlocator")

const maxRediscoveryAttempts = 3

// Locator is the raw single-shot lookup; platform.Platform satisfies it.
type Locator interface {
	LocateWallpaperHost() (platform.WindowHandle, error)
}

// Host finds the wallpaper-host window, caches it until invalidated,
// and rediscovers on demand when a child-window creation under the
// cached handle fails (signaling a shell restart). After
// maxRediscoveryAttempts consecutive failures, Degraded becomes true
// and callers should fall back any `desktop` z-layer Surface to
// `normal`.
type Host struct {
	locator Locator

	mu                sync.Mutex
	handle            platform.WindowHandle
	valid             bool
	failedAttempts    int
	degraded          bool
}

func New(locator Locator) *Host {
	return &Host{locator: locator}
}

// Get returns the cached host handle, locating it first if needed.
func (h *Host) Get() (platform.WindowHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.valid {
		return h.handle, nil
	}
	return h.locateLocked()
}

// Invalidate forces the next Get (or Rediscover) to perform a fresh
// lookup. Call this on topology change or after a create failure.
func (h *Host) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.valid = false
}

// Rediscover is called when a child-window creation under the cached
// handle failed, signaling a possible shell restart. It attempts a
// fresh lookup; after maxRediscoveryAttempts consecutive failures it
// marks the locator Degraded so the Supervisor falls `desktop`-layer
// Surfaces back to `normal`.
func (h *Host) Rediscover() (platform.WindowHandle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.valid = false
	handle, err := h.locateLocked()
	if err != nil {
		h.failedAttempts++
		if h.failedAttempts >= maxRediscoveryAttempts {
			h.degraded = true
			log.Warn("wallpaper-host window not found after rediscovery attempts, falling back to normal z-layer",
				"attempts", h.failedAttempts)
		}
		return 0, err
	}

	h.failedAttempts = 0
	h.degraded = false
	return handle, nil
}

// Degraded reports whether rediscovery has exhausted its attempts and
// `desktop` z-layer Surfaces should fall back to `normal`.
func (h *Host) Degraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degraded
}

func (h *Host) locateLocked() (platform.WindowHandle, error) {
	handle, err := h.locator.LocateWallpaperHost()
	if err != nil {
		return 0, err
	}
	h.handle = handle
	h.valid = true
	return handle, nil
}
