package silo

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/orisano/gosax"
)

// chunkSize bounds how much gosax buffers per underlying read. spec.md
// §4.3 calls out 32 KiB as typical for the cancellation-check granularity
// this module targets; the teacher this parser adapter is built from
// tunes the same knob far larger purely for throughput, since it has no
// equivalent cancellation contract to honor.
const chunkSize = 32 * 1024

// parseImport drives gosax over imp's stream, building tree-construction
// events into the forest rooted at root. Exactly one top-level element
// may survive per import: a second top-level element is rejected at its
// start tag, a close tag with no open element is rejected as it is read,
// and a stream that ends with the cursor anywhere but root (more opens
// than closes) is rejected at the end; each fails with
// ErrMismatchedXML. ctx is polled once per event, which — given gosax's
// own internal buffering — is this module's approximation of "between
// bounded reads" from spec.md §4.3/§5.
func parseImport(ctx context.Context, imp *Import, root *BuilderNode, flags CompileFlags, locales []string) error {
	stream, err := imp.Stream()
	if err != nil {
		return err
	}
	defer stream.Close()

	r := gosax.NewReaderSize(stream, chunkSize)
	cursor := root
	rootChildrenAtStart := len(root.children)

	for {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: Cancelled, Op: "parse " + imp.Identity(), Err: err}
		}

		e, err := r.Event()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return &Error{Kind: InvalidData, Op: "parse " + imp.Identity(), Err: err}
		}

		switch e.Type() {
		case gosax.EventEOF:
			return finishStream(cursor, root, imp)

		case gosax.EventStart:
			if cursor == root && len(root.children)-rootChildrenAtStart >= 1 {
				// A prior top-level element from this same import already
				// closed; a second one starting makes the import not a
				// single well-formed document (spec.md S3).
				return &Error{Kind: InvalidData, Op: "parse " + imp.Identity(), Err: ErrMismatchedXML}
			}
			name, attrs := gosax.Name(e.Bytes)
			bn := NewBuilderNode(string(name))
			if cursor.HasFlag(FlagIgnoreCDATA) {
				bn.AddFlag(FlagIgnoreCDATA)
			}
			parsed := parseAttrList(attrs)
			if !bn.HasFlag(FlagIgnoreCDATA) && flags&FlagNativeLangs != 0 {
				for _, a := range parsed {
					if a.Name == "xml:lang" && !localeAllowed(locales, a.Value) {
						bn.AddFlag(FlagIgnoreCDATA)
						break
					}
				}
			}
			if !bn.HasFlag(FlagIgnoreCDATA) {
				for _, a := range parsed {
					bn.AppendAttribute(a.Name, a.Value)
				}
			}
			cursor.AppendChild(bn)

			if isSelfClosingTag(e.Bytes) {
				finishElement(bn, imp, root)
			} else {
				cursor = bn
			}

		case gosax.EventEnd:
			if cursor == root {
				return &Error{Kind: InvalidData, Op: "parse " + imp.Identity(), Err: ErrMismatchedXML}
			}
			finishElement(cursor, imp, root)
			cursor = cursor.parent

		case gosax.EventText:
			applyText(cursor, e.Bytes, flags)

		case gosax.EventCData:
			content := e.Bytes
			// gosax hands back the raw "<![CDATA[...]]>" markup; strip
			// the wrapper the same way the teacher's own CDATA handling
			// does, since the marker itself is never preserved (Non-goals).
			if len(content) > 12 {
				applyText(cursor, content[9:len(content)-3], flags)
			}

		case gosax.EventComment:
			// Comments are discarded entirely — Non-goals.
		}
	}
	return finishStream(cursor, root, imp)
}

func finishStream(cursor, root *BuilderNode, imp *Import) error {
	if cursor != root {
		return &Error{Kind: InvalidData, Op: "parse " + imp.Identity(), Err: ErrMismatchedXML}
	}
	return nil
}

// finishElement grafts the import's info tree under n when n is a
// top-level element (its parent is the synthetic root), just before it
// would be popped off the cursor.
func finishElement(n *BuilderNode, imp *Import, root *BuilderNode) {
	if n.parent == root {
		if info := imp.Info(); info != nil {
			n.AppendChild(info)
		}
	}
}

// applyText applies one text (or de-wrappered CDATA) chunk to n, per
// spec.md §4.3: discarded when empty, ignored, or all ASCII whitespace;
// otherwise stored verbatim, overwriting any previous text on the same
// node (gosax itself coalesces runs between markup, so repeated events
// for the same node are expected to be rare).
func applyText(n *BuilderNode, chunk []byte, flags CompileFlags) {
	if len(chunk) == 0 || n.HasFlag(FlagIgnoreCDATA) {
		return
	}
	if isAllASCIIWhitespace(chunk) {
		return
	}
	if flags&FlagLiteralText != 0 {
		n.AddFlag(FlagLiteralText)
	}
	n.SetText(string(chunk))
}

func isAllASCIIWhitespace(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

// isSelfClosingTag reports whether the raw start-tag bytes end in "/>".
// gosax emits a single EventStart for a self-closing element (no matching
// EventEnd), so the caller must detect this from the raw bytes itself.
func isSelfClosingTag(tag []byte) bool {
	return len(tag) >= 2 && tag[len(tag)-2] == '/' && tag[len(tag)-1] == '>'
}

// parseAttrList parses gosax's raw attribute byte span into an ordered
// slice of Attribute, preserving declaration order including duplicates.
func parseAttrList(attrs []byte) []Attribute {
	if len(attrs) == 0 {
		return nil
	}
	var out []Attribute
	i := 0
	for i < len(attrs) {
		for i < len(attrs) && isAttrSep(attrs[i]) {
			i++
		}
		if i >= len(attrs) {
			break
		}
		nameStart := i
		for i < len(attrs) && attrs[i] != '=' {
			i++
		}
		if i >= len(attrs) {
			break
		}
		name := string(bytes.TrimSpace(attrs[nameStart:i]))
		i++ // skip '='
		for i < len(attrs) && (attrs[i] == ' ' || attrs[i] == '\t') {
			i++
		}
		if i >= len(attrs) {
			break
		}
		quote := attrs[i]
		if quote != '"' && quote != '\'' {
			break
		}
		i++
		valueStart := i
		for i < len(attrs) && attrs[i] != quote {
			i++
		}
		value := string(attrs[valueStart:i])
		i++ // skip closing quote
		out = append(out, Attribute{Name: name, Value: value})
	}
	return out
}

func isAttrSep(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
