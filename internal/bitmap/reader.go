package bitmap

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Reader attaches to the host fuzzer's shared-memory coverage region and
// returns one M-byte snapshot per call. Failure to attach is fatal to the
// bitmap reader (spec.md §4.6, §7 "Shared-memory attach error: fatal
// during init").
type Reader interface {
	Snapshot() ([]byte, error)
	Close() error
}

// OpenFromHandle selects the attachment mode from the handle string's
// format, exactly as spec.md §4.6 specifies: a path-style handle beginning
// with "/" is a POSIX shared-memory object (on Linux, a plain file under
// /dev/shm, so opening /dev/shm/<name> and a read-only mmap suffice
// without a separate shm_open call; a handle already under /dev/shm/ is
// opened as given); an all-digits handle is a System V IPC id.
func OpenFromHandle(handle string, size int) (Reader, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("bitmap: empty shared-memory handle")
	}

	if strings.HasPrefix(handle, "/") {
		return openPosixPath(handle, size)
	}

	id, err := strconv.Atoi(handle)
	if err != nil {
		return nil, fmt.Errorf("bitmap: handle %q is neither a path nor a SysV id: %w", handle, err)
	}
	return openSysV(id, size)
}

type posixReader struct {
	data []byte
}

func openPosixPath(name string, size int) (Reader, error) {
	path := name
	if !strings.HasPrefix(path, "/dev/shm/") {
		path = "/dev/shm" + name
	}
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("bitmap: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("bitmap: mmap %s: %w", path, err)
	}

	return &posixReader{data: data}, nil
}

func (r *posixReader) Snapshot() ([]byte, error) {
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out, nil
}

func (r *posixReader) Close() error {
	return unix.Munmap(r.data)
}

type sysvReader struct {
	id   int
	data []byte
}

func openSysV(id, size int) (Reader, error) {
	data, err := unix.SysvShmAttach(id, 0, unix.SHM_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("bitmap: shmat id=%d: %w", id, err)
	}
	if len(data) < size {
		_ = unix.SysvShmDetach(data)
		return nil, fmt.Errorf("bitmap: shm segment %d smaller than map size %d", len(data), size)
	}
	return &sysvReader{id: id, data: data[:size]}, nil
}

func (r *sysvReader) Snapshot() ([]byte, error) {
	out := make([]byte, len(r.data))
	copy(out, r.data)
	return out, nil
}

func (r *sysvReader) Close() error {
	return unix.SysvShmDetach(r.data)
}
