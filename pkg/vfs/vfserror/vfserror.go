// Package vfserror defines the foreign (Linux guest) errno vocabulary used
// throughout the VFS dispatcher and signal controller. Every syscall-facing
// operation returns one of these values, never a bare error string, so that
// callers can translate straight back into the foreign ABI's negative-errno
// convention.
package vfserror

import "strconv"

// Errno is a foreign errno value. It implements error so it can be returned
// and wrapped like any other Go error while still carrying the numeric code
// a caller needs to hand back to guest code.
type Errno int

func (e Errno) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return "errno " + strconv.Itoa(int(e))
}

// Foreign errno values. Numbers match the Linux i386/x86-64 ABI, which is
// also what the original C sources (original_source/src/syscall) assume.
const (
	EPERM    Errno = 1
	ENOENT   Errno = 2
	ESRCH    Errno = 3
	EINTR    Errno = 4
	EIO      Errno = 5
	EBADF    Errno = 9
	EAGAIN   Errno = 11
	ENOMEM   Errno = 12
	EACCES   Errno = 13
	EFAULT   Errno = 14
	EEXIST   Errno = 17
	ENODEV   Errno = 19
	ENOTDIR  Errno = 20
	EISDIR   Errno = 21
	EINVAL   Errno = 22
	EMFILE   Errno = 24
	ENOTTY   Errno = 25
	EFBIG    Errno = 27
	ENOSPC   Errno = 28
	ESPIPE   Errno = 29
	EROFS    Errno = 30
	ERANGE   Errno = 34
	ENOSYS   Errno = 38
	ELOOP    Errno = 40
	ENOTEMPTY Errno = 39
	EOVERFLOW Errno = 75
	EOPNOTSUPP Errno = 95
	ENXIO    Errno = 6
)

var names = map[Errno]string{
	EPERM:      "operation not permitted",
	ENOENT:     "no such file or directory",
	ESRCH:      "no such process",
	EINTR:      "interrupted system call",
	EIO:        "input/output error",
	EBADF:      "bad file descriptor",
	EAGAIN:     "resource temporarily unavailable",
	ENOMEM:     "cannot allocate memory",
	EACCES:     "permission denied",
	EFAULT:     "bad address",
	EEXIST:     "file exists",
	ENODEV:     "no such device",
	ENOTDIR:    "not a directory",
	EISDIR:     "is a directory",
	EINVAL:     "invalid argument",
	EMFILE:     "too many open files",
	ENOTTY:     "inappropriate ioctl for device",
	EFBIG:      "file too large",
	ENOSPC:     "no space left on device",
	ESPIPE:     "illegal seek",
	EROFS:      "read-only file system",
	ERANGE:     "result too large",
	ENOSYS:     "function not implemented",
	ELOOP:      "too many levels of symbolic links",
	ENOTEMPTY:  "directory not empty",
	EOVERFLOW:  "value too large for defined data type",
	EOPNOTSUPP: "operation not supported",
	ENXIO:      "no such device or address",
}

// WaitInterrupted is the internal (never exposed to guest code) result of a
// host wait that was interrupted by pending signal delivery. Callers that
// perform a guest-visible suspend translate it into EINTR.
const WaitInterrupted Errno = -1
