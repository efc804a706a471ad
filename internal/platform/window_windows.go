//go:build windows

package platform

import (
	"fmt"
	"syscall"
	"unsafe"
)

var (
	procFindWindowW        = user32DLL.NewProc("FindWindowW")
	procFindWindowExW      = user32DLL.NewProc("FindWindowExW")
	procCreateWindowExW    = user32DLL.NewProc("CreateWindowExW")
	procDestroyWindow      = user32DLL.NewProc("DestroyWindow")
	procSetParent          = user32DLL.NewProc("SetParent")
	procSetWindowLongPtrW  = user32DLL.NewProc("SetWindowLongPtrW")
	procGetWindowLongPtrW  = user32DLL.NewProc("GetWindowLongPtrW")
	procSetWindowPos       = user32DLL.NewProc("SetWindowPos")
	procShowWindow         = user32DLL.NewProc("ShowWindow")
	procRegisterClassExW   = user32DLL.NewProc("RegisterClassExW")
	procDefWindowProcW     = user32DLL.NewProc("DefWindowProcW")
	procGetModuleHandleW   = syscall.NewLazyDLL("kernel32.dll").NewProc("GetModuleHandleW")
	procGetCursorPos       = user32DLL.NewProc("GetCursorPos")
	procGetAsyncKeyState   = user32DLL.NewProc("GetAsyncKeyState")
	procGetLastInputInfo   = user32DLL.NewProc("GetLastInputInfo")
	procGetTickCount       = user32DLL.NewProc("GetTickCount")
)

const (
	gwlStyle   = -16
	gwlExStyle = -20

	wsChild     = 0x40000000
	wsVisible   = 0x10000000
	wsPopup     = 0x80000000

	wsExTopmost   = 0x00000008
	wsExToolWindow = 0x00000080
	wsExNoActivate = 0x08000000

	swpNoActivate  = 0x0010
	swpNoZOrder    = 0x0004
	swHide         = 0
	swShowNoActivate = 4

	hwndTop      = 0
	hwndBottom   = 1
	hwndTopmost  = ^uintptr(0) // -1
	hwndNoTopmost = ^uintptr(1) // -2
)

type point struct{ X, Y int32 }

type lastInputInfo struct {
	CbSize uint32
	DwTime uint32
}

// locateWallpaperHostWindows walks top-level windows for "Progman",
// then its "WorkerW"/"SHELLDLL_DefView" hidden sibling — the window
// beneath which the shell draws desktop icons and accepts a
// wallpaper-layer child. The exact sibling varies across Windows
// builds (direct child of Progman on some, a sibling WorkerW with no
// SHELLDLL_DefView on others); try Progman first and fall back to
// scanning WorkerW top-levels for one containing SHELLDLL_DefView.
func locateWallpaperHostWindows() (WindowHandle, error) {
	progman, _, _ := procFindWindowW.Call(strPtr("Progman"), 0)
	if progman != 0 {
		defView, _, _ := procFindWindowExW.Call(progman, 0, strPtr("SHELLDLL_DefView"), 0)
		if defView != 0 {
			return WindowHandle(progman), nil
		}
	}

	var found uintptr
	cb := syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
		defView, _, _ := procFindWindowExW.Call(hwnd, 0, strPtr("SHELLDLL_DefView"), 0)
		if defView != 0 {
			found = hwnd
			return 0 // stop enumeration
		}
		return 1 // continue
	})
	procEnumWindows := user32DLL.NewProc("EnumWindows")
	procEnumWindows.Call(cb, 0)

	if found != 0 {
		return WindowHandle(found), nil
	}
	return 0, fmt.Errorf("platform: no wallpaper-host window found")
}

func strPtr(s string) uintptr {
	p, _ := syscall.UTF16PtrFromString(s)
	return uintptr(unsafe.Pointer(p))
}

func (p *windowsPlatform) LocateWallpaperHost() (WindowHandle, error) {
	return locateWallpaperHostWindows()
}

func (p *windowsPlatform) CreateChildWindow(parent WindowHandle, rect Rect) (WindowHandle, error) {
	p.ensureWindowClass()

	hwnd, _, err := procCreateWindowExW.Call(
		uintptr(wsExNoActivate),
		strPtr(engineWindowClass),
		strPtr(""),
		uintptr(wsChild|wsVisible),
		uintptr(rect.X), uintptr(rect.Y), uintptr(rect.W), uintptr(rect.H),
		uintptr(parent),
		0, p.hInstance, 0,
	)
	if hwnd == 0 {
		return 0, fmt.Errorf("platform: CreateWindowExW: %w", err)
	}
	return WindowHandle(hwnd), nil
}

func (p *windowsPlatform) ReparentWindow(win WindowHandle, parent WindowHandle, layer ZLayer) error {
	ret, _, err := procSetParent.Call(uintptr(win), uintptr(parent))
	if ret == 0 {
		return fmt.Errorf("platform: SetParent: %w", err)
	}

	style, exStyle := stylesForLayer(layer)
	if style != 0 {
		procSetWindowLongPtrW.Call(uintptr(win), uintptr(gwlStyle), uintptr(style))
	}
	procSetWindowLongPtrW.Call(uintptr(win), uintptr(gwlExStyle), uintptr(exStyle))

	insertAfter := hwndTop
	switch layer {
	case ZLayerBottom:
		insertAfter = hwndBottom
	case ZLayerTopmost, ZLayerOverlay:
		insertAfter = int(hwndTopmost)
	case ZLayerTop:
		insertAfter = int(hwndNoTopmost)
	}
	procSetWindowPos.Call(uintptr(win), uintptr(insertAfter), 0, 0, 0, 0, uintptr(swpNoActivate|0x0001|0x0002))
	return nil
}

func stylesForLayer(layer ZLayer) (style, exStyle uintptr) {
	switch layer {
	case ZLayerDesktop:
		return wsChild | wsVisible, 0
	case ZLayerOverlay:
		return wsPopup | wsVisible, wsExTopmost | wsExToolWindow
	case ZLayerTopmost:
		return wsPopup | wsVisible, wsExTopmost
	default:
		return wsPopup | wsVisible, 0
	}
}

func (p *windowsPlatform) ResizeWindow(win WindowHandle, rect Rect) error {
	ret, _, err := procSetWindowPos.Call(
		uintptr(win), 0,
		uintptr(rect.X), uintptr(rect.Y), uintptr(rect.W), uintptr(rect.H),
		uintptr(swpNoZOrder|swpNoActivate),
	)
	if ret == 0 {
		return fmt.Errorf("platform: SetWindowPos: %w", err)
	}
	return nil
}

func (p *windowsPlatform) ShowWindow(win WindowHandle, visible bool) error {
	cmd := swShowNoActivate
	if !visible {
		cmd = swHide
	}
	procShowWindow.Call(uintptr(win), uintptr(cmd))
	return nil
}

func (p *windowsPlatform) DestroyWindow(win WindowHandle) error {
	ret, _, err := procDestroyWindow.Call(uintptr(win))
	if ret == 0 {
		return fmt.Errorf("platform: DestroyWindow: %w", err)
	}
	return nil
}

func (p *windowsPlatform) CursorPosition() (x, y int, leftDown bool, err error) {
	var pt point
	ret, _, callErr := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return 0, 0, false, fmt.Errorf("platform: GetCursorPos: %w", callErr)
	}
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vkLButton))
	return int(pt.X), int(pt.Y), state&0x8000 != 0, nil
}

func (p *windowsPlatform) KeyState(vk int) (bool, error) {
	state, _, _ := procGetAsyncKeyState.Call(uintptr(vk))
	return state&0x8000 != 0, nil
}

const vkLButton = 0x01

func (p *windowsPlatform) IdleSeconds() (float64, error) {
	var info lastInputInfo
	info.CbSize = uint32(unsafe.Sizeof(info))
	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, fmt.Errorf("platform: GetLastInputInfo: %w", err)
	}
	tick, _, _ := procGetTickCount.Call()
	elapsedMs := uint32(tick) - info.DwTime
	return float64(elapsedMs) / 1000.0, nil
}

// monitorScaleFactor approximates the DPI scale factor for a monitor
// rect. A precise per-monitor value comes from GetDpiForMonitor, but
// the union-rect based monitors slice here only needs a stable
// default; Surface geometry math operates in physical pixels
// regardless, so 1.0 keeps behavior correct when the API is
// unavailable (e.g. Windows 7 without the per-monitor DPI awareness
// shim).
func monitorScaleFactor(rect Rect) float64 {
	return 1.0
}
