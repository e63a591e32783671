package vfs

// ProcessMemory is the guest address-space collaborator the dispatcher
// centralizes every user-pointer validation through (spec.md §4.5 "a
// callable check_read/check_write is provided by the memory subsystem
// and is an external collaborator"). It is provided by the emulator's
// memory-mapping layer, out of scope for this core.
type ProcessMemory interface {
	// CheckRead verifies that length bytes starting at addr are
	// readable by the guest, returning EFAULT if not.
	CheckRead(addr uintptr, length int) error
	// CheckWrite verifies that length bytes starting at addr are
	// writable by the guest, returning EFAULT if not.
	CheckWrite(addr uintptr, length int) error
	// CopyIn reads len(dst) bytes from the guest's addr into dst. Callers
	// must have already validated readability with CheckRead.
	CopyIn(dst []byte, addr uintptr) error
	// CopyOut writes src into the guest's addr. Callers must have
	// already validated writability with CheckWrite.
	CopyOut(addr uintptr, src []byte) error
}
