package kmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// File reads a flat memory image through positioned reads, typically a
// capture file produced by the instrumentation layer. pread keeps the
// reader free of a shared file offset, so concurrent invocations do not
// need a lock.
type File struct {
	fd   int
	path string
}

// OpenFile opens path read-only.
func OpenFile(path string) (*File, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("kmem: open %s: %w", path, err)
	}
	return &File{fd: fd, path: path}, nil
}

// ReadAt implements Reader. Short reads and EFAULT-class errors are both
// reported as read faults; the caller never sees partially filled buffers
// as success.
func (f *File) ReadAt(addr uint64, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := unix.Pread(f.fd, buf, int64(addr))
	if err != nil {
		return fault(addr, len(buf), err)
	}
	if n != len(buf) {
		return fault(addr, len(buf), fmt.Errorf("short read: %d of %d", n, len(buf)))
	}
	return nil
}

// Close releases the file descriptor.
func (f *File) Close() error {
	if err := unix.Close(f.fd); err != nil {
		return fmt.Errorf("kmem: close %s: %w", f.path, err)
	}
	return nil
}
