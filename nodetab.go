package silo

import "encoding/binary"

// liveChildren returns n's children that are not FlagIgnoreCDATA. Because
// the parser adapter unconditionally propagates FlagIgnoreCDATA from a
// node to every child it creates, a live node never has a dead ancestor:
// skipping a dead child here also correctly skips its entire (also dead)
// subtree without needing to recurse into it first.
func liveChildren(n *BuilderNode) []*BuilderNode {
	if len(n.children) == 0 {
		return nil
	}
	out := make([]*BuilderNode, 0, len(n.children))
	for _, c := range n.children {
		if !c.HasFlag(FlagIgnoreCDATA) {
			out = append(out, c)
		}
	}
	return out
}

// nextLiveSibling returns n's next live sibling, or nil if n is the last
// live child of its parent (or has no parent).
func nextLiveSibling(n *BuilderNode) *BuilderNode {
	if n.parent == nil {
		return nil
	}
	sibs := liveChildren(n.parent)
	for i, s := range sibs {
		if s == n && i+1 < len(sibs) {
			return sibs[i+1]
		}
	}
	return nil
}

// sizeNodeTable implements Pass A: sum of size_in_output(n) + sentinel
// size over every live node reachable from root (root itself, the
// synthetic null node, is never emitted).
func sizeNodeTable(root *BuilderNode) uint32 {
	var total uint32
	var walk func(*BuilderNode)
	walk = func(n *BuilderNode) {
		for _, c := range liveChildren(n) {
			total += c.sizeInOutput() + sentinelSize
			walk(c)
		}
	}
	walk(root)
	return total
}

// internStrings implements Pass B: four strictly sequential level-order
// sweeps over the live forest — element names, then attribute names,
// then attribute values, then text — so that short, frequently-repeated
// identifiers (tags) get the smallest offsets. strtabNTags is captured
// immediately after the first sweep, before any other sweep runs,
// because it is defined as the interner's distinct count at that exact
// point.
func internStrings(root *BuilderNode, it *interner) (strtabNTags uint32) {
	levels := levelOrder(root)

	for _, n := range levels {
		n.elementIdx = it.intern(n.element)
	}
	strtabNTags = uint32(it.count())

	for _, n := range levels {
		for i := range n.attrs {
			n.attrIdx[i].nameIdx = it.intern(n.attrs[i].Name)
		}
	}
	for _, n := range levels {
		for i := range n.attrs {
			n.attrIdx[i].valueIdx = it.intern(n.attrs[i].Value)
		}
	}
	for _, n := range levels {
		if n.HasText() {
			text, _ := n.Text()
			n.textIdx = it.intern(text)
		}
	}
	return strtabNTags
}

// levelOrder returns every live node reachable from root, breadth-first,
// also allocating each node's attrIdx slice for the intern sweeps above.
func levelOrder(root *BuilderNode) []*BuilderNode {
	var out []*BuilderNode
	queue := liveChildren(root)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if len(n.attrs) > 0 {
			n.attrIdx = make([]attrStrIdx, len(n.attrs))
		}
		out = append(out, n)
		queue = append(queue, liveChildren(n)...)
	}
	return out
}

// emitNodes implements Pass C: a depth-first pre-order walk emitting one
// NodeRecord + its AttrRecords per live node, with sentinel records
// closing subtrees as the walk ascends. Returns the assembled node-table
// bytes; node offsets are recorded on each BuilderNode as a side effect
// for Pass D to consume.
func emitNodes(root *BuilderNode, startOffset uint32) []byte {
	buf := make([]byte, 0, 256)
	level := 0

	type frame struct {
		node  *BuilderNode
		depth int
	}
	// Explicit stack, not recursion: keeps traversal depth independent of
	// Go's goroutine stack growth behavior for pathologically deep trees.
	var stack []frame
	top := liveChildren(root)
	for i := len(top) - 1; i >= 0; i-- {
		stack = append(stack, frame{top[i], 1})
	}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for level >= f.depth {
			buf = append(buf, encodeSentinel()...)
			level--
		}

		f.node.offset = startOffset + uint32(len(buf))
		buf = append(buf, encodeNodeRecord(f.node, 0, 0)...)
		for _, a := range f.node.attrIdx {
			buf = append(buf, encodeAttrRecord(a.nameIdx, a.valueIdx)...)
		}
		level = f.depth

		children := liveChildren(f.node)
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{children[i], f.depth + 1})
		}
	}

	// Trailing sentinels: exactly `level` of them close out every subtree
	// still open after the last node, bringing the +1-per-node/-1-per-
	// sentinel running sum back to zero. spec.md §9 documents the source
	// as emitting "level - 1", but that figure is stated in terms of
	// GLib's g_node_depth, which counts the synthetic root itself as
	// depth 1 (so a top-level element is depth 2); this module's `level`
	// counts a top-level element as depth 1, one less at every node, so
	// the trailing count shifts by the same one to `level`. See
	// DESIGN.md's Open Question notes for the worked example.
	for i := level; i > 0; i-- {
		buf = append(buf, encodeSentinel()...)
	}
	return buf
}

// fixupLinks implements Pass D: writes the resolved parent/next offsets
// into each live node's already-emitted NodeRecord.
func fixupLinks(root *BuilderNode, buf []byte, tableStart uint32) {
	var walk func(*BuilderNode)
	walk = func(n *BuilderNode) {
		for _, c := range liveChildren(n) {
			var parentOff uint32
			if c.parent != nil && c.parent != root {
				parentOff = c.parent.offset
			}
			var nextOff uint32
			if sib := nextLiveSibling(c); sib != nil {
				nextOff = sib.offset
			}
			rec := buf[c.offset-tableStart:]
			patchLinks(rec, nextOff, parentOff)
			walk(c)
		}
	}
	walk(root)
}

// patchLinks overwrites the next/parent fields of an already-encoded
// NodeRecord in place.
func patchLinks(rec []byte, next, parent uint32) {
	binary.LittleEndian.PutUint32(rec[6:10], next)
	binary.LittleEndian.PutUint32(rec[10:14], parent)
}
