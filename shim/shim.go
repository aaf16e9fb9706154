// Package shim interposes on descriptor close and filesystem removal
// calls, resolving object identity strictly before each destructive
// call and reporting removals to a dispatcher. Every interposed call
// returns exactly what the original routine returns, error and all;
// instrumentation failures are absorbed here and never reach the
// caller.
//
// Go offers no loader-level symbol redirection, so interposition is an
// explicit call layer: host code calls shim.Unlink where it would call
// unix.Unlink. Signatures and error conventions match golang.org/x/sys
// exactly so the substitution is mechanical.
package shim

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/filetrack/removetrace/dispatch"
	"github.com/filetrack/removetrace/fdcache"
	"github.com/filetrack/removetrace/identity"
)

// Shim holds the resolved routine table and the collaborators every
// interposed call consults. The routine table is write-once; the
// descriptor cache is the only mutable shared state.
type Shim struct {
	orig     RoutineTable
	cache    *fdcache.Cache
	resolver identity.Resolver
	events   dispatch.Dispatcher
	tracer   Tracer
}

// Config wires a shim together. Zero-value fields get defaults:
// platform routines, a fresh descriptor cache, the stat resolver, and
// a dispatcher that discards events.
type Config struct {
	Routines   *RoutineTable
	Cache      *fdcache.Cache
	Resolver   identity.Resolver
	Dispatcher dispatch.Dispatcher
	Tracer     Tracer
}

// New builds a shim. Routine resolution failure is fatal to
// construction: without a genuine delegate for every routine the shim
// cannot preserve call semantics.
func New(cfg Config) (*Shim, error) {
	table := Routines()
	if cfg.Routines != nil {
		table = *cfg.Routines
	}
	if err := table.resolve(); err != nil {
		return nil, err
	}

	s := &Shim{
		orig:     table,
		cache:    cfg.Cache,
		resolver: cfg.Resolver,
		events:   cfg.Dispatcher,
		tracer:   cfg.Tracer,
	}
	if s.cache == nil {
		s.cache = fdcache.New()
	}
	if s.resolver == nil {
		s.resolver = identity.NewStatResolver()
	}
	if s.events == nil {
		s.events = dispatch.Discard
	}
	return s, nil
}

// Cache exposes the descriptor cache so open-time code can populate it.
func (s *Shim) Cache() *fdcache.Cache {
	return s.cache
}

// Close evicts the descriptor's cache entry and delegates. Eviction
// happens before the delegate call and regardless of its outcome: the
// OS may hand the same number to an unrelated object the instant the
// close completes, and a stale entry would misattribute identity.
// No tracing wraps this call (see Tracer).
func (s *Shim) Close(fd int) error {
	return s.trampoline("close", "", true, func() error {
		s.cache.Evict(fd)
		return s.orig.Close(fd)
	})
}

// Unlink resolves the target's identity, delegates, and reports the
// removal if the delegate succeeded.
func (s *Shim) Unlink(path string) error {
	ref := identity.FromPath(path)
	return s.removal("unlink", ref, func() error {
		return s.orig.Unlink(path)
	})
}

// Unlinkat is Unlink for directory-relative paths. The flags argument
// passes through to the delegate untouched; identity resolution always
// targets the entry itself, never a symlink target.
func (s *Shim) Unlinkat(dirfd int, path string, flags int) error {
	ref := identity.FromPathAt(dirfd, path)
	return s.removal("unlinkat", ref, func() error {
		return s.orig.Unlinkat(dirfd, path, flags)
	})
}

// Rmdir resolves the directory's identity, delegates, and reports the
// removal if the delegate succeeded.
func (s *Shim) Rmdir(path string) error {
	ref := identity.FromPath(path)
	return s.removal("rmdir", ref, func() error {
		return s.orig.Rmdir(path)
	})
}

// removal is the algorithm shared by all removal interposers. Identity
// must be resolved before the delegate runs: once the entry is gone
// the path resolves to nothing. A resolution failure is logged and the
// call proceeds; a dispatch failure is discarded; the delegate's
// result is returned to the caller unmodified in every case.
func (s *Shim) removal(op string, ref identity.PathRef, delegate func() error) error {
	return s.trampoline(op, ref.Path, false, func() error {
		id, resolveErr := s.resolver.Resolve(ref)
		if resolveErr != nil {
			log.Printf("Warning: failed to resolve %s target %s: %s", op, ref, errnoDetail(resolveErr))
		}

		err := delegate()

		if err == nil && resolveErr == nil {
			_ = s.events.Dispatch(dispatch.Remove(id, ref.Path))
		}
		return err
	})
}

// errnoDetail renders an error with its raw errno value when one is
// present, matching what the caller would see in its error channel.
func errnoDetail(err error) string {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return fmt.Sprintf("%v (errno %d)", err, int(errno))
	}
	return err.Error()
}

// Package-level state mirrors the calling convention of the routines
// this layer replaces: the interposed entry points are plain
// functions, so the shim behind them lives in package scope. It starts
// as a passthrough that observes nothing beyond cache hygiene and is
// replaced once by Setup during process startup.
var (
	defaultShim = passthrough()
	setupOnce   sync.Once
	setupErr    error
)

func passthrough() *Shim {
	return &Shim{
		orig:     Routines(),
		cache:    fdcache.New(),
		resolver: identity.NewStatResolver(),
		events:   dispatch.Discard,
	}
}

// Setup wires the process-wide shim. Call it during startup, before
// interposed calls begin; only the first call takes effect. On failure
// the previous passthrough stays in place so interposed calls keep
// their original semantics.
func Setup(cfg Config) error {
	setupOnce.Do(func() {
		s, err := New(cfg)
		if err != nil {
			setupErr = err
			return
		}
		defaultShim = s
	})
	return setupErr
}

// Default returns the process-wide shim.
func Default() *Shim {
	return defaultShim
}

// Close is the interposed entry point for descriptor close.
func Close(fd int) error {
	return defaultShim.Close(fd)
}

// Unlink is the interposed entry point for path unlink.
func Unlink(path string) error {
	return defaultShim.Unlink(path)
}

// Unlinkat is the interposed entry point for directory-relative unlink.
func Unlinkat(dirfd int, path string, flags int) error {
	return defaultShim.Unlinkat(dirfd, path, flags)
}

// Rmdir is the interposed entry point for directory removal.
func Rmdir(path string) error {
	return defaultShim.Rmdir(path)
}

// Open is the interposed entry point for open.
func Open(path string, flags int, mode uint32) (int, error) {
	return defaultShim.Open(path, flags, mode)
}

// Openat is the interposed entry point for directory-relative open.
func Openat(dirfd int, path string, flags int, mode uint32) (int, error) {
	return defaultShim.Openat(dirfd, path, flags, mode)
}
