//go:build windows

package platform

import (
	"fmt"
	"sort"
	"syscall"
	"unsafe"
)

// DXGI_OUTPUT_DESC: WCHAR DeviceName[32], RECT DesktopCoordinates,
// BOOL AttachedToDesktop, DXGI_MODE_ROTATION, HMONITOR.
type dxgiOutputDesc struct {
	DeviceName        [32]uint16
	Left              int32
	Top               int32
	Right             int32
	Bottom            int32
	AttachedToDesktop int32
	Rotation          uint32
	Monitor           uintptr
}

var (
	iidIDXGIDevice = comGUID{0x54ec77fa, 0x1377, 0x44e6, [8]byte{0x8c, 0x32, 0x88, 0xfd, 0x5f, 0x44, 0xc8, 0x4c}}

	d3d11DLL              = syscall.NewLazyDLL("d3d11.dll")
	procD3D11CreateDevice = d3d11DLL.NewProc("D3D11CreateDevice")
)

const (
	d3dDriverTypeHardware = 1
	d3dFeatureLevel11_0   = 0xb000
	d3d11SDKVersion       = 7

	vtblQueryInterface      = 0
	dxgiDeviceGetAdapter    = 7 // IDXGIDevice (IUnknown 0-2, IDXGIObject 3-6, GetAdapter=7)
	dxgiAdapterEnumOutputs  = 7 // IDXGIAdapter (IUnknown 0-2, IDXGIObject 3-6, EnumOutputs=7)
	dxgiOutputGetDesc       = 7 // IDXGIOutput (IUnknown 0-2, IDXGIObject 3-6, GetDesc=7)
	dxgiErrorNotFound       = 0x887A0002
)

// listMonitorsDXGI enumerates connected displays and assigns stable
// per-monitor IDs from the adapter output's device name, which
// persists across reconnects of the same physical display.
func listMonitorsDXGI() ([]MonitorInfo, error) {
	ensureCOM()

	var device, context uintptr
	featureLevel := uint32(d3dFeatureLevel11_0)
	var actualLevel uint32

	hr, _, _ := procD3D11CreateDevice.Call(
		0,
		uintptr(d3dDriverTypeHardware),
		0,
		0,
		uintptr(unsafe.Pointer(&featureLevel)),
		1,
		uintptr(d3d11SDKVersion),
		uintptr(unsafe.Pointer(&device)),
		uintptr(unsafe.Pointer(&actualLevel)),
		uintptr(unsafe.Pointer(&context)),
	)
	if int32(hr) < 0 {
		return nil, fmt.Errorf("D3D11CreateDevice: 0x%08X", uint32(hr))
	}
	defer comRelease(context)
	defer comRelease(device)

	var dxgiDevice uintptr
	if _, err := comCall(device, vtblQueryInterface,
		uintptr(unsafe.Pointer(&iidIDXGIDevice)),
		uintptr(unsafe.Pointer(&dxgiDevice)),
	); err != nil {
		return nil, fmt.Errorf("QueryInterface IDXGIDevice: %w", err)
	}
	defer comRelease(dxgiDevice)

	var adapter uintptr
	if _, err := comCall(dxgiDevice, dxgiDeviceGetAdapter, uintptr(unsafe.Pointer(&adapter))); err != nil {
		return nil, fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}
	defer comRelease(adapter)

	type rawMonitor struct {
		id      string
		rect    Rect
		primary bool
	}
	var raws []rawMonitor

	for i := 0; ; i++ {
		var output uintptr
		hr, _, _ := syscall.SyscallN(
			comVtblFn(adapter, dxgiAdapterEnumOutputs),
			adapter,
			uintptr(i),
			uintptr(unsafe.Pointer(&output)),
		)
		if int32(hr) < 0 {
			if uint32(hr) != dxgiErrorNotFound {
				log.Warn("DXGI EnumOutputs failed", "index", i, "hr", fmt.Sprintf("0x%08X", uint32(hr)))
			}
			break
		}

		var desc dxgiOutputDesc
		hr, _, _ = syscall.SyscallN(
			comVtblFn(output, dxgiOutputGetDesc),
			output,
			uintptr(unsafe.Pointer(&desc)),
		)
		comRelease(output)

		if int32(hr) < 0 {
			log.Warn("DXGI GetDesc failed", "index", i, "hr", fmt.Sprintf("0x%08X", uint32(hr)))
			continue
		}
		if desc.AttachedToDesktop == 0 {
			continue
		}

		name := syscall.UTF16ToString(desc.DeviceName[:])
		raws = append(raws, rawMonitor{
			id: name,
			rect: Rect{
				X: int(desc.Left),
				Y: int(desc.Top),
				W: int(desc.Right - desc.Left),
				H: int(desc.Bottom - desc.Top),
			},
			primary: desc.Left == 0 && desc.Top == 0,
		})
	}

	if len(raws) == 0 {
		return nil, fmt.Errorf("no monitors found")
	}

	// Ordinal: sort top-to-bottom then left-to-right; primary forced to 0.
	sort.SliceStable(raws, func(i, j int) bool {
		if raws[i].primary != raws[j].primary {
			return raws[i].primary
		}
		if raws[i].rect.Y != raws[j].rect.Y {
			return raws[i].rect.Y < raws[j].rect.Y
		}
		return raws[i].rect.X < raws[j].rect.X
	})

	monitors := make([]MonitorInfo, len(raws))
	for i, r := range raws {
		monitors[i] = MonitorInfo{
			ID:          r.id,
			Ordinal:     i,
			Primary:     r.primary,
			Rect:        r.rect,
			ScaleFactor: monitorScaleFactor(r.rect),
		}
	}
	return monitors, nil
}
