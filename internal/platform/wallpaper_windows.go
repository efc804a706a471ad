//go:build windows

package platform

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"syscall"
	"unsafe"
)

const (
	spiGetDeskWallpaper = 0x0073
	spiSetDeskWallpaper = 0x0014
	spifSendChange      = 0x02
	maxWallpaperPath    = 260
)

var procSystemParametersInfoW = user32DLL.NewProc("SystemParametersInfoW")

// CurrentWallpaperPath returns the path of the wallpaper active before
// the engine started managing it.
func (p *windowsPlatform) CurrentWallpaperPath() (string, error) {
	buf := make([]uint16, maxWallpaperPath)
	ret, _, err := procSystemParametersInfoW.Call(
		spiGetDeskWallpaper,
		uintptr(maxWallpaperPath),
		uintptr(unsafe.Pointer(&buf[0])),
		0,
	)
	if ret == 0 {
		return "", fmt.Errorf("platform: SystemParametersInfoW(get): %w", err)
	}
	return syscall.UTF16ToString(buf), nil
}

// SetWallpaper writes img to the recovery cache directory as a BMP
// and applies it via SystemParametersInfoW with SPIF_SENDCHANGE but
// NOT SPIF_UPDATEINIFILE, so the user's saved wallpaper setting is
// left untouched — the bitmap is authoritative only while paused.
func (p *windowsPlatform) SetWallpaper(img *image.RGBA) error {
	path, err := writeCacheBitmap(img)
	if err != nil {
		return fmt.Errorf("platform: write wallpaper bitmap: %w", err)
	}

	ptr, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	ret, _, sysErr := procSystemParametersInfoW.Call(
		spiSetDeskWallpaper,
		0,
		uintptr(unsafe.Pointer(ptr)),
		spifSendChange,
	)
	if ret == 0 {
		return fmt.Errorf("platform: SystemParametersInfoW(set): %w", sysErr)
	}
	return nil
}

func writeCacheBitmap(img *image.RGBA) (string, error) {
	dir := filepath.Join(os.Getenv("USERPROFILE"), "Addons", "wallpaper", "cache")
	if dir == "" || os.Getenv("USERPROFILE") == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Addons", "wallpaper", "cache")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}

	path := filepath.Join(dir, "snapshot.bmp")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := encodeBMP(f, img); err != nil {
		return "", err
	}
	return path, nil
}

// encodeBMP writes img as an uncompressed 32bpp BMP. The standard
// library's image/png and image/jpeg encoders produce formats
// SystemParametersInfoW does not reliably accept for desktop
// wallpaper on all Windows builds; BMP is universally supported.
func encodeBMP(w *os.File, img *image.RGBA) error {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	rowSize := width * 4
	pixelDataSize := rowSize * height
	fileSize := 14 + 40 + pixelDataSize

	header := make([]byte, 14+40)
	header[0] = 'B'
	header[1] = 'M'
	putU32(header[2:], uint32(fileSize))
	putU32(header[10:], 54) // pixel data offset

	putU32(header[14:], 40) // DIB header size
	putI32(header[18:], int32(width))
	putI32(header[22:], int32(height)) // positive = bottom-up
	putU16(header[26:], 1)             // planes
	putU16(header[28:], 32)            // bpp
	putU32(header[30:], 0)             // BI_RGB
	putU32(header[34:], uint32(pixelDataSize))

	if _, err := w.Write(header); err != nil {
		return err
	}

	row := make([]byte, rowSize)
	for y := height - 1; y >= 0; y-- {
		srcOff := y * img.Stride
		for x := 0; x < width; x++ {
			si := srcOff + x*4
			di := x * 4
			row[di+0] = img.Pix[si+2] // B
			row[di+1] = img.Pix[si+1] // G
			row[di+2] = img.Pix[si+0] // R
			row[di+3] = img.Pix[si+3] // A (ignored by BMP viewers, harmless)
		}
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putI32(b []byte, v int32) { putU32(b, uint32(v)) }

func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
