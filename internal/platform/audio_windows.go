//go:build windows

package platform

import (
	"fmt"
	"sync"
	"unsafe"
)

// WASAPI GUIDs — same enumerator/device activation path as the
// loopback capturer elsewhere in this codebase's lineage, but
// targeting IAudioMeterInformation for a simple 0-1 peak read instead
// of a full sample-capture pipeline (the pause/data-pump surface only
// ever needs the instantaneous peak level).
var (
	clsidMMDeviceEnumerator   = comGUID{0xBCDE0395, 0xE52F, 0x467C, [8]byte{0x8E, 0x3D, 0xC4, 0x57, 0x92, 0x91, 0x69, 0x2E}}
	iidIMMDeviceEnumerator    = comGUID{0xA95664D2, 0x9614, 0x4F35, [8]byte{0xA7, 0x46, 0xDE, 0x8D, 0xB6, 0x36, 0x17, 0xE6}}
	iidIAudioMeterInformation = comGUID{0xC02216F6, 0x8C67, 0x4B5B, [8]byte{0x9D, 0x00, 0xD0, 0x08, 0xE7, 0x3E, 0x00, 0x64}}
)

const (
	eRender  = 0
	eConsole = 0

	mmdeGetDefaultAudioEndpoint = 4 // IMMDeviceEnumerator::GetDefaultAudioEndpoint
	mmDeviceActivate            = 3 // IMMDevice::Activate
	meterGetPeakValue           = 3 // IAudioMeterInformation::GetPeakValue
)

type audioMeter struct {
	mu         sync.Mutex
	enumerator uintptr
	device     uintptr
	meter      uintptr
}

var sharedMeter = &audioMeter{}

// refresh (re)activates the default render endpoint's meter. Callers
// hold the receiver's lock.
func (m *audioMeter) refresh() error {
	m.releaseLocked()
	ensureCOM()

	var enumerator uintptr
	_, err := comCall2(procCoCreateInstance,
		uintptr(unsafe.Pointer(&clsidMMDeviceEnumerator)),
		0,
		uintptr(clsctxAll),
		uintptr(unsafe.Pointer(&iidIMMDeviceEnumerator)),
		uintptr(unsafe.Pointer(&enumerator)),
	)
	if err != nil {
		return fmt.Errorf("CoCreateInstance MMDeviceEnumerator: %w", err)
	}
	m.enumerator = enumerator

	var device uintptr
	if _, err := comCall(enumerator, mmdeGetDefaultAudioEndpoint,
		uintptr(eRender), uintptr(eConsole), uintptr(unsafe.Pointer(&device)),
	); err != nil {
		return fmt.Errorf("GetDefaultAudioEndpoint: %w", err)
	}
	m.device = device

	var meter uintptr
	if _, err := comCall(device, mmDeviceActivate,
		uintptr(unsafe.Pointer(&iidIAudioMeterInformation)),
		uintptr(clsctxAll),
		0,
		uintptr(unsafe.Pointer(&meter)),
	); err != nil {
		return fmt.Errorf("Activate IAudioMeterInformation: %w", err)
	}
	m.meter = meter
	return nil
}

func (m *audioMeter) releaseLocked() {
	if m.meter != 0 {
		comRelease(m.meter)
		m.meter = 0
	}
	if m.device != 0 {
		comRelease(m.device)
		m.device = 0
	}
	if m.enumerator != 0 {
		comRelease(m.enumerator)
		m.enumerator = 0
	}
}

func (m *audioMeter) peak() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.meter == 0 {
		if err := m.refresh(); err != nil {
			return 0, err
		}
	}

	var level float32
	if _, err := comCall(m.meter, meterGetPeakValue, uintptr(unsafe.Pointer(&level))); err != nil {
		// Device likely changed; force re-activation next call.
		m.releaseLocked()
		return 0, err
	}
	return float64(level), nil
}

func (p *windowsPlatform) AudioPeakLevel() (float64, error) {
	return sharedMeter.peak()
}

// comCall2 invokes a plain (non-vtable) DLL proc such as CoCreateInstance.
func comCall2(proc interface{ Call(...uintptr) (uintptr, uintptr, error) }, args ...uintptr) (uintptr, error) {
	ret, _, _ := proc.Call(args...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("HRESULT 0x%08X", uint32(ret))
	}
	return ret, nil
}
