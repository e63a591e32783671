package hostwin

import "golang.org/x/sys/windows"

// DuplicateIntoChild duplicates handle into targetProcess, closing the
// caller's own copy (DUPLICATE_CLOSE_SOURCE), so the returned handle is
// the child's only reference and the pipe write-end closes exactly when
// the child exits (spec.md §3 "the child process owns (and leaks) the
// write-end so that its exit auto-closes the pipe"; grounded on
// original_source/src/syscall/sig.c create_pipe's DuplicateHandle call).
func DuplicateIntoChild(handle windows.Handle, targetProcess windows.Handle) (windows.Handle, error) {
	self, err := windows.GetCurrentProcess()
	if err != nil {
		return 0, err
	}
	var dup windows.Handle
	err = windows.DuplicateHandle(
		self, handle,
		targetProcess, &dup,
		0,
		true, // inheritable by the child
		windows.DUPLICATE_SAME_ACCESS|windows.DUPLICATE_CLOSE_SOURCE,
	)
	if err != nil {
		return 0, err
	}
	return dup, nil
}
