package linux

// Open flags, matching the Linux x86 ABI values (not the host's).
const (
	O_RDONLY   = 0x0000
	O_WRONLY   = 0x0001
	O_RDWR     = 0x0002
	O_ACCMODE  = 0x0003
	O_CREAT    = 0x0040
	O_EXCL     = 0x0080
	O_NOCTTY   = 0x0100
	O_TRUNC    = 0x0200
	O_APPEND   = 0x0400
	O_NONBLOCK = 0x0800
	O_DSYNC    = 0x1000
	O_DIRECT   = 0x4000
	O_DIRECTORY = 0x10000
	O_NOFOLLOW = 0x20000
	O_NOATIME  = 0x40000
	O_CLOEXEC  = 0x80000
	O_SYNC     = 0x101000
	O_PATH     = 0x200000
	O_TMPFILE  = 0x410000
	O_LARGEFILE = 0x8000

	// __O_DELETE is not a real Linux flag; the original C source uses it
	// internally (vfs.c sys_rename) to request a delete-capable handle for
	// the rename source. Carried here for the same purpose.
	O_DELETE = 0x80000000
)

// lseek/llseek whence values.
const (
	SEEK_SET  = 0
	SEEK_CUR  = 1
	SEEK_END  = 2
	SEEK_DATA = 3
	SEEK_HOLE = 4
)

// fcntl command numbers (spec.md §4.5). Dispatcher.Fcntl handles all of
// these except F_SETFL, which it rejects with EINVAL.
const (
	F_DUPFD  = 0
	F_GETFD  = 1
	F_SETFD  = 2
	F_GETFL  = 3
	F_SETFL  = 4
	FD_CLOEXEC = 1
)

// at_* dirfd / flag constants.
const (
	AT_FDCWD            = -100
	AT_SYMLINK_NOFOLLOW = 0x100
	AT_REMOVEDIR        = 0x200
	AT_EMPTY_PATH       = 0x1000
)

// File type bits within st_mode / dirent d_type.
const (
	S_IFMT   = 0170000
	S_IFSOCK = 0140000
	S_IFLNK  = 0120000
	S_IFREG  = 0100000
	S_IFBLK  = 0060000
	S_IFDIR  = 0040000
	S_IFCHR  = 0020000
	S_IFIFO  = 0010000

	DT_UNKNOWN = 0
	DT_FIFO    = 1
	DT_CHR     = 2
	DT_DIR     = 4
	DT_BLK     = 6
	DT_REG     = 8
	DT_LNK     = 10
	DT_SOCK    = 12
)

// poll event bits.
const (
	POLLIN   = 0x0001
	POLLPRI  = 0x0002
	POLLOUT  = 0x0004
	POLLERR  = 0x0008
	POLLHUP  = 0x0010
	POLLNVAL = 0x0020
)

// MaxSymlinkLevel bounds symlink resolution depth (spec.md §3 invariants).
const MaxSymlinkLevel = 40

// MaxFD is the fixed descriptor table capacity (spec.md §4.4).
const MaxFD = 1024

// PathMax bounds normalized path length, mirroring original_source's
// PATH_MAX-sized stack buffers in vfs.c.
const PathMax = 4096
