package silo

import (
	"bytes"
	"context"
	"sync"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/arion-silo/silo/internal/ids"
	"github.com/arion-silo/silo/siloread"
)

// Current holds a Builder's rebindable "current" silo: once compiled or
// loaded, the bytes are immutable, but the reference inside Current can
// be atomically replaced at the end of Ensure. Readers already
// holding a previous Current.Bytes() snapshot are unaffected by a later
// rebind — the bytes themselves are never mutated in place.
type Current struct {
	mu   sync.Mutex
	blob []byte
	guid [16]byte
}

// Bytes returns the currently bound silo image, or nil if none has been
// bound yet.
func (c *Current) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.blob
}

// GUID returns the currently bound silo's GUID, the zero value if none is
// bound.
func (c *Current) GUID() [16]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.guid
}

func (c *Current) rebind(blob []byte, guid [16]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blob = blob
	c.guid = guid
}

// Ensure implements spec.md §4.7's freshness protocol, treating the GUID
// as the sole correctness oracle (mtimes and file sizes of the cache file
// itself are never consulted — only the Import-derived accumulator and
// the candidate blob's own embedded GUID matter):
//
//  1. Attempt to load path through fs as a silo. On failure, skip to 4.
//  2. Compute wantGUID from the Builder's current accumulator.
//  3. If the loaded blob's GUID equals cur's GUID, return cur unchanged.
//  4. Else if the loaded blob's GUID equals wantGUID, rebind cur to the
//     loaded bytes and return it — the on-disk image is a valid cache.
//  5. Else, Compile, persist the result to path, rebind cur, and return it.
func (b *Builder) Ensure(ctx context.Context, fs billy.Filesystem, path string, flags CompileFlags, cur *Current) ([]byte, error) {
	if fs == nil {
		fs = osfs.New("/")
	}
	if cur == nil {
		cur = &Current{}
	}

	wantGUID := ids.GUID(b.guid.String())

	if f, err := fs.Open(path); err == nil {
		scratch, loadErr := siloread.Load(f)
		_ = f.Close()
		if loadErr == nil {
			b.logger.Printf("silo: loaded candidate %s (guid %x)", path, scratch.GUID())
			if scratch.GUID() == cur.GUID() {
				return cur.Bytes(), nil
			}
			if scratch.GUID() == wantGUID {
				cur.rebind(scratch.Raw(), scratch.GUID())
				return cur.Bytes(), nil
			}
		} else {
			b.logger.Printf("silo: failed to load candidate %s: %v", path, loadErr)
		}
	}

	blob, err := b.Compile(ctx, flags)
	if err != nil {
		return nil, err
	}

	out, err := fs.Create(path)
	if err != nil {
		return nil, &Error{Kind: Io, Op: "create " + path, Err: err}
	}
	_, writeErr := out.Write(blob)
	closeErr := out.Close()
	if writeErr != nil {
		return nil, &Error{Kind: Io, Op: "write " + path, Err: writeErr}
	}
	if closeErr != nil {
		return nil, &Error{Kind: Io, Op: "write " + path, Err: closeErr}
	}

	cur.rebind(blob, ids.GUID(b.guid.String()))
	return cur.Bytes(), nil
}

// bytesEqual is a small readability helper for comparing two silo blobs
// for exact equality (spec.md §8.1, determinism).
func bytesEqual(a, b []byte) bool { return bytes.Equal(a, b) }
