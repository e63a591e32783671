package linux

// Statx is the wide, superset stat view every file backend fills in.
// The VFS dispatcher narrows it into the caller's requested struct
// (32-bit stat, 64-bit stat64, statx) and reports EOVERFLOW when a field
// doesn't fit, per spec.md §4.5 Stat family and §8 Stat round-trip.
type Statx struct {
	Dev     uint64
	Ino     uint64
	Nlink   uint64
	Mode    uint32
	UID     uint32
	GID     uint32
	Rdev    uint64
	Size    uint64
	Blksize uint32
	Blocks  uint64
	Atime   Timespec
	Mtime   Timespec
	Ctime   Timespec
}

// Timespec mirrors struct timespec (seconds + nanoseconds).
type Timespec struct {
	Sec  int64
	Nsec int64
}

// FileType extracts the S_IFMT-masked file type from a mode.
func (s Statx) FileType() uint32 {
	return s.Mode & S_IFMT
}

// Statfs is the wide statfs64 view; Statfs32 narrows it.
type Statfs struct {
	Type    int64
	Bsize   int64
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	FsidX0  int32
	FsidX1  int32
	Namelen int64
	Frsize  int64
	Flags   int64
}

// DirentType converts a Statx-style mode or raw S_IF* type into the
// getdents d_type byte.
func DirentType(mode uint32) byte {
	switch mode & S_IFMT {
	case S_IFREG:
		return DT_REG
	case S_IFDIR:
		return DT_DIR
	case S_IFLNK:
		return DT_LNK
	case S_IFCHR:
		return DT_CHR
	case S_IFBLK:
		return DT_BLK
	case S_IFIFO:
		return DT_FIFO
	case S_IFSOCK:
		return DT_SOCK
	default:
		return DT_UNKNOWN
	}
}
