//go:build windows

package platform

import (
	"sync"
	"syscall"
	"unsafe"

	"github.com/sentinel-wallpaper/engine/internal/logging"
)

var log = logging.L("platform")

const engineWindowClass = "SentinelWallpaperSurface"

type wndClassExW struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     uintptr
	hIcon         uintptr
	hCursor       uintptr
	hbrBackground uintptr
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       uintptr
}

// windowsPlatform implements Platform using pure-Go Win32/COM syscalls.
type windowsPlatform struct {
	hInstance      uintptr
	classOnce      sync.Once
	wndProc        uintptr
	prevWallpaper  string
}

// New constructs the real Windows platform implementation.
func New() Platform {
	h, _, _ := procGetModuleHandleW.Call(0)
	return &windowsPlatform{hInstance: h}
}

func (p *windowsPlatform) ensureWindowClass() {
	p.classOnce.Do(func() {
		p.wndProc = syscall.NewCallback(defaultWndProc)
		classNamePtr, _ := syscall.UTF16PtrFromString(engineWindowClass)

		wc := wndClassExW{
			style:         0,
			lpfnWndProc:   p.wndProc,
			hInstance:     p.hInstance,
			lpszClassName: classNamePtr,
		}
		wc.cbSize = uint32(unsafe.Sizeof(wc))
		procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc)))
	})
}

func defaultWndProc(hwnd, msg, wparam, lparam uintptr) uintptr {
	ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
	return ret
}

func (p *windowsPlatform) ListMonitors() ([]MonitorInfo, error) {
	return listMonitorsDXGI()
}
