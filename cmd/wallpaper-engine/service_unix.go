//go:build !windows

package main

import "fmt"

// isWindowsService always returns false on non-Windows platforms.
func isWindowsService() bool { return false }

// runAsService is a no-op stub on non-Windows platforms; the desktop
// embedding this engine performs (DXGI topology, WebView2 surfaces) is
// Windows-only, so there is no SCM equivalent to target here.
func runAsService(_ func() (*engineComponents, error)) error {
	return fmt.Errorf("Windows service mode is not available on this platform")
}
