// Package shm implements the daemon-writer / many-reader shared terminal
// grid described in spec.md §4.1 and §5: a fixed-size region, written
// under seqlock discipline, that the daemon mmaps and the client mmaps
// read-only (conceptually — the OS does not enforce that side of it, the
// protocol does).
//
// hauntty has no equivalent of this: it pushes output to attached
// clients over the control socket instead of publishing into shared
// memory. There is accordingly no teacher file to adapt here; the seqlock
// protocol and region layout follow spec.md §3/§4.1/§5 and the original
// Rust source's scarab-protocol crate directly. golang.org/x/sys/unix is
// the idiomatic Go stand-in for POSIX shm_open/mmap, which the standard
// library has no binding for — the same package hauntty already uses for
// raw syscall access (its control-socket peer-credential check).
package shm

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/raibid-labs/scarab/protocol"
)

// Grid is a handle onto a file-backed mmap region holding one
// protocol.SharedState. Exactly one process (the daemon) should hold a
// Writer; any number of processes may hold Readers.
type Grid struct {
	f    *os.File
	data []byte
	own  bool
}

// DefaultPath resolves the shared region's path: SCARAB_SHMEM_PATH if
// set, else a well-known path under /dev/shm (or /tmp if /dev/shm is
// unavailable), matching the env-override-else-default resolution order
// spec.md §6 requires.
func DefaultPath() string {
	if p := os.Getenv("SCARAB_SHMEM_PATH"); p != "" {
		return p
	}
	if st, err := os.Stat("/dev/shm"); err == nil && st.IsDir() {
		return "/dev/shm" + protocol.ShmemPath
	}
	return os.TempDir() + protocol.ShmemPath
}

// Create creates (or truncates) the region at path, sized to hold a
// SharedState, and returns a Grid mapped for writing. Only the daemon
// should call Create.
func Create(path string) (*Grid, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", path, err)
	}
	if err := f.Truncate(int64(protocol.SharedStateSize)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("shm: truncate %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, protocol.SharedStateSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}
	return &Grid{f: f, data: data, own: true}, nil
}

// Open maps an existing region at path for reading and writing. Clients
// use this to attach to a region the daemon already created.
func Open(path string) (*Grid, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, protocol.SharedStateSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}
	return &Grid{f: f, data: data}, nil
}

// Close unmaps the region. If this Grid created the file, Close also
// removes it — the region's memory is released only at daemon shutdown,
// per spec.md §3's lifecycle summary.
func (g *Grid) Close() error {
	path := g.f.Name()
	err := unix.Munmap(g.data)
	g.f.Close()
	if g.own {
		os.Remove(path)
	}
	return err
}

// state reinterprets the mapped bytes as a *protocol.SharedState. Safe
// because the region is always sized to exactly SharedStateSize and the
// struct is naturally aligned with no pointers.
func (g *Grid) state() *protocol.SharedState {
	return (*protocol.SharedState)(unsafe.Pointer(&g.data[0]))
}

// sequence loads the sequence counter with acquire semantics.
func (g *Grid) sequence() uint64 {
	return atomic.LoadUint64(&g.state().Sequence)
}

// Writer returns a handle restricted to the write-side API. The daemon
// must not hold more than one Writer per region at a time (single-writer
// invariant enforced by convention, as spec.md describes — Go has no
// cheap way to enforce cross-process exclusivity here beyond the daemon
// owning the only Writer it creates).
func (g *Grid) Writer() *Writer { return &Writer{g: g} }

// Reader returns a handle restricted to the read-side seqlock API.
func (g *Grid) Reader() *Reader { return &Reader{g: g} }
