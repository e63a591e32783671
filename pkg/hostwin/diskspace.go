package hostwin

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

var procGetDiskFreeSpaceEx = modkernel32.NewProc("GetDiskFreeSpaceExW")

// DiskFreeSpace reports free/total/available bytes for the volume
// containing path, the data statfs needs (spec.md §4.5 Statfs family).
// Grounded on rclone's local backend about_windows.go, which calls the
// same Win32 API through an identical LazyDLL binding because neither
// golang.org/x/sys/windows nor the standard library exposes it.
func DiskFreeSpace(path string) (total, free, avail uint64, err error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, 0, 0, err
	}
	var availableToCaller, totalBytes, totalFree uint64
	r1, _, e1 := procGetDiskFreeSpaceEx.Call(
		uintptr(unsafe.Pointer(p)),
		uintptr(unsafe.Pointer(&availableToCaller)),
		uintptr(unsafe.Pointer(&totalBytes)),
		uintptr(unsafe.Pointer(&totalFree)),
	)
	if r1 == 0 {
		return 0, 0, 0, e1
	}
	return totalBytes, totalFree, availableToCaller, nil
}
