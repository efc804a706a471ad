//go:build windows

package platform

import (
	"fmt"
	"syscall"
	"unsafe"
)

// COM vtable calling infrastructure. Pure-Go syscalls only — no cgo,
// no go-ole — following the same pattern used for Media Foundation
// elsewhere in this codebase's lineage.

type comGUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

func comVtblFn(obj uintptr, idx int) uintptr {
	vtable := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtable + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// comCall invokes a COM vtable method at the given index.
func comCall(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	fnPtr := comVtblFn(obj, vtableIdx)

	all := make([]uintptr, 0, 1+len(args))
	all = append(all, obj)
	all = append(all, args...)

	ret, _, _ := syscall.SyscallN(fnPtr, all...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X", vtableIdx, uint32(ret))
	}
	return ret, nil
}

// comRelease calls IUnknown::Release (vtable index 2).
func comRelease(obj uintptr) {
	if obj == 0 {
		return
	}
	fnPtr := comVtblFn(obj, 2)
	syscall.SyscallN(fnPtr, obj)
}

var (
	ole32DLL  = syscall.NewLazyDLL("ole32.dll")
	user32DLL = syscall.NewLazyDLL("user32.dll")
	gdi32DLL  = syscall.NewLazyDLL("gdi32.dll")

	procCoInitializeEx  = ole32DLL.NewProc("CoInitializeEx")
	procCoUninitialize  = ole32DLL.NewProc("CoUninitialize")
	procCoCreateInstance = ole32DLL.NewProc("CoCreateInstance")
	procCoTaskMemFree   = ole32DLL.NewProc("CoTaskMemFree")
)

const (
	coinitApartmentThreaded = 0x2
	clsctxAll               = 0x1 | 0x2 | 0x4 | 0x10
)

func ensureCOM() {
	procCoInitializeEx.Call(0, coinitApartmentThreaded)
}
