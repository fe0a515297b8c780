package silo

import (
	"encoding/binary"
	"testing"
)

// buildS1Tree builds <a><b>hello</b></a> directly as BuilderNodes, bypassing
// the XML parser, to test the node-table serializer (C5) in isolation.
func buildS1Tree() *BuilderNode {
	root := NewBuilderNode("")
	a := NewBuilderNode("a")
	b := NewBuilderNode("b")
	b.SetText("hello")
	a.AppendChild(b)
	root.AppendChild(a)
	return root
}

func TestNodetabPassASize(t *testing.T) {
	root := buildS1Tree()
	got := sizeNodeTable(root)
	want := uint32((nodeRecordSize - 4 + sentinelSize) + (nodeRecordSize + sentinelSize))
	if got != want {
		t.Errorf("sizeNodeTable: got %d, want %d", got, want)
	}
}

func TestNodetabPassBLevelOrderAndNTags(t *testing.T) {
	root := buildS1Tree()
	it := newInterner()
	ntags := internStrings(root, it)
	if ntags != 2 {
		t.Errorf("expected strtab_ntags=2 (a, b), got %d", ntags)
	}
	if it.count() != 3 {
		t.Errorf("expected 3 distinct strings (a, b, hello), got %d", it.count())
	}
}

func TestNodetabPassCAndDOffsetsAndLinks(t *testing.T) {
	root := buildS1Tree()
	it := newInterner()
	internStrings(root, it)

	buf := emitNodes(root, headerSize)
	fixupLinks(root, buf, headerSize)

	a := root.children[0]
	b := a.children[0]

	if a.offset != headerSize {
		t.Errorf("a.offset: got %d, want %d", a.offset, headerSize)
	}
	if b.offset != headerSize+(nodeRecordSize-4) {
		t.Errorf("b.offset: got %d, want %d", b.offset, headerSize+(nodeRecordSize-4))
	}

	aRec := buf[a.offset-headerSize:]
	if aRec[0]&flagIsNode == 0 {
		t.Errorf("a's record must have is_node set")
	}
	if aRec[0]&flagHasText != 0 {
		t.Errorf("a has no text; has_text must be clear")
	}
	aNext := binary.LittleEndian.Uint32(aRec[6:10])
	aParent := binary.LittleEndian.Uint32(aRec[10:14])
	if aNext != 0 {
		t.Errorf("a.next: got %d, want 0 (no live siblings)", aNext)
	}
	if aParent != 0 {
		t.Errorf("a.parent: got %d, want 0 (parent is the synthetic root)", aParent)
	}

	bRec := buf[b.offset-headerSize:]
	if bRec[0]&flagHasText == 0 {
		t.Errorf("b has text; has_text must be set")
	}
	bNext := binary.LittleEndian.Uint32(bRec[6:10])
	bParent := binary.LittleEndian.Uint32(bRec[10:14])
	if bNext != 0 {
		t.Errorf("b.next: got %d, want 0", bNext)
	}
	if bParent != a.offset {
		t.Errorf("b.parent: got %d, want %d (offset of a)", bParent, a.offset)
	}

	// Tree balance (spec.md §8 invariant 4): +1 per node, -1 per
	// sentinel, ends at zero.
	sum := 0
	off := uint32(0)
	for off < uint32(len(buf)) {
		if buf[off]&flagIsNode != 0 {
			sum++
			nrAttrs := int(buf[off+1])
			size := nodeRecordSize + uint32(nrAttrs)*attrRecordSize
			if buf[off]&flagHasText == 0 {
				size -= 4
			}
			off += size
		} else {
			sum--
			off += sentinelSize
		}
	}
	if sum != 0 {
		t.Errorf("tree balance invariant violated: running sum ended at %d", sum)
	}
}

func TestNodetabIgnoreCDATASubtreeEntirelyAbsent(t *testing.T) {
	root := NewBuilderNode("")
	r := NewBuilderNode("r")
	dead := NewBuilderNode("dead")
	dead.AddFlag(FlagIgnoreCDATA)
	deadChild := NewBuilderNode("deadchild")
	dead.AppendChild(deadChild)
	live := NewBuilderNode("live")
	r.AppendChild(dead)
	r.AppendChild(live)
	root.AppendChild(r)

	it := newInterner()
	internStrings(root, it)
	if _, ok := it.offsets["dead"]; ok {
		t.Errorf("ignored element name must not be interned")
	}
	if _, ok := it.offsets["deadchild"]; ok {
		t.Errorf("descendant of an ignored node must not be interned")
	}

	buf := emitNodes(root, headerSize)
	fixupLinks(root, buf, headerSize)

	if nextLiveSibling(r.children[1]) != nil {
		t.Errorf("live's next live sibling must be nil; dead must not count")
	}
	// r's only live child is "live"; its next must be 0 since "dead" is skipped.
	liveOff := live.offset - headerSize
	liveNext := binary.LittleEndian.Uint32(buf[liveOff+6 : liveOff+10])
	if liveNext != 0 {
		t.Errorf("live.next: got %d, want 0 (dead sibling must not be linked)", liveNext)
	}
}

func TestNodetabVariableSizingMixedTextSiblings(t *testing.T) {
	// spec.md S6: siblings with/without text occupy different sizes, and
	// subsequent offsets must reflect that.
	root := NewBuilderNode("")
	p := NewBuilderNode("p")
	noText := NewBuilderNode("notext")
	withText := NewBuilderNode("withtext")
	withText.SetText("x")
	p.AppendChild(noText)
	p.AppendChild(withText)
	root.AppendChild(p)

	it := newInterner()
	internStrings(root, it)
	buf := emitNodes(root, headerSize)
	fixupLinks(root, buf, headerSize)

	if withText.offset != noText.offset+(nodeRecordSize-4)+sentinelSize {
		t.Errorf("withtext.offset should follow notext's (has_text=false) shorter record plus its closing sentinel: notext=%d withtext=%d", noText.offset, withText.offset)
	}
	noTextOff := noText.offset - headerSize
	noTextNext := binary.LittleEndian.Uint32(buf[noTextOff+6 : noTextOff+10])
	if noTextNext != withText.offset {
		t.Errorf("notext.next: got %d, want %d (offset of withtext)", noTextNext, withText.offset)
	}
}
