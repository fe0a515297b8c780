package silo

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/bmatcuk/doublestar/v4"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/arion-silo/silo/internal/ids"
)

// CompileFlags controls Compile's behavior, per spec.md §6.2.
type CompileFlags uint8

const (
	// FlagLiteralText marks every text node so downstream consumers never
	// re-normalize whitespace in it.
	FlagLiteralText CompileFlags = 1 << iota
	// FlagNativeLangs drops elements whose xml:lang attribute isn't in
	// the host's locale preference list.
	FlagNativeLangs
	// FlagIgnoreInvalid skips individual imports that fail to parse
	// instead of aborting the whole compile.
	FlagIgnoreInvalid
)

// Builder collects imports and synthetic node trees and compiles them
// into a silo image. A Builder is single-threaded and synchronous: no
// operation on it, or on an in-flight Compile, may be invoked
// concurrently (spec.md §5).
type Builder struct {
	imports []*Import
	nodes   []*BuilderNode
	guid    ids.Accumulator
	logger  *log.Logger
}

// New creates an empty Builder.
func New() *Builder {
	return &Builder{logger: log.Default()}
}

// SetLogger overrides the logger used to report per-import failures that
// FlagIgnoreInvalid swallows. The default is log.Default().
func (b *Builder) SetLogger(l *log.Logger) { b.logger = l }

// ImportXML adds a literal XML string as an import.
func (b *Builder) ImportXML(xml string) error {
	imp := NewInlineImport(xml, nil)
	b.addImport(imp)
	return nil
}

// ImportFile adds an XML file (transparently gzip-decompressed when path
// ends ".xml.gz") resolved through fs. info, if non-nil, is grafted
// beneath the file's top-level element on every compile. A nil fs uses
// the host OS filesystem rooted at "/".
func (b *Builder) ImportFile(fs billy.Filesystem, path string, info *BuilderNode) error {
	imp, err := NewFileImport(fs, path, info)
	if err != nil {
		return err
	}
	b.addImport(imp)
	return nil
}

// ImportDir scans dir (through fs) for entries matching "*.xml" or
// "*.xml.gz" and imports each as by ImportFile, all sharing the same
// info tree.
func (b *Builder) ImportDir(fs billy.Filesystem, dir string, info *BuilderNode) error {
	if fs == nil {
		fs = osfs.New("/")
	}
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return &Error{Kind: NotFound, Op: "import dir " + dir, Err: err}
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		xmlMatch, _ := doublestar.Match("*.xml", name)
		gzMatch, _ := doublestar.Match("*.xml.gz", name)
		if !xmlMatch && !gzMatch {
			continue
		}
		if err := b.ImportFile(fs, fs.Join(dir, name), info); err != nil {
			return err
		}
	}
	return nil
}

// ImportNode appends a synthetic BuilderNode tree to be grafted under the
// synthetic root after all imports, in insertion order.
func (b *Builder) ImportNode(n *BuilderNode) {
	b.nodes = append(b.nodes, n)
}

// AppendGUID folds an additional token into the GUID accumulator, joined
// by "&" with whatever is already present.
func (b *Builder) AppendGUID(token string) {
	b.guid.Append(token)
}

func (b *Builder) addImport(imp *Import) {
	b.imports = append(b.imports, imp)
	b.guid.Append(imp.Identity())
}

// Compile runs the full pipeline — parse every import in insertion order,
// graft synthetic node trees, intern strings, emit the node table, and
// assemble header ∥ node table ∥ string table — and returns the finished
// silo bytes. Compile is a pure function of the Builder's accumulated
// state and flags: calling it twice on an unchanged Builder produces
// byte-identical output (spec.md §8.1).
func (b *Builder) Compile(ctx context.Context, flags CompileFlags) ([]byte, error) {
	root := NewBuilderNode("")
	locales := snapshotLocales()

	for _, imp := range b.imports {
		nrRootChildren := len(root.children)
		if err := parseImport(ctx, imp, root, flags, locales); err != nil {
			var silErr *Error
			if errors.As(err, &silErr) && silErr.Kind == Cancelled {
				return nil, err
			}
			if flags&FlagIgnoreInvalid != 0 {
				b.logger.Printf("silo: skipping invalid import %s: %v", imp.Identity(), err)
				// Drop whatever the failed import had already grafted.
				root.children = root.children[:nrRootChildren]
				continue
			}
			return nil, &Error{Kind: InvalidData, Op: fmt.Sprintf("compile %s", imp.Identity()), Err: err}
		}
	}

	for _, n := range b.nodes {
		root.AppendChild(n)
	}

	nodetabSize := headerSize + sizeNodeTable(root)

	it := newInterner()
	strtabNTags := internStrings(root, it)

	nodeBytes := emitNodes(root, headerSize)
	fixupLinks(root, nodeBytes, headerSize)

	if uint32(headerSize+len(nodeBytes)) != nodetabSize {
		// Pass A's size estimate and Pass C's actual emission must agree;
		// a mismatch means the compiler violated its own layout invariant.
		panic(fmt.Sprintf("silo: node table size mismatch: estimated %d, emitted %d", nodetabSize, headerSize+len(nodeBytes)))
	}

	hdr := header{
		Magic:       Magic,
		Version:     Version,
		Strtab:      nodetabSize,
		StrtabNTags: strtabNTags,
		GUID:        ids.GUID(b.guid.String()),
	}

	out := make([]byte, 0, nodetabSize+uint32(len(it.bytes())))
	out = append(out, hdr.encode()...)
	out = append(out, nodeBytes...)
	out = append(out, it.bytes()...)
	return out, nil
}
