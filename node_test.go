package silo

import "testing"

func TestBuilderNodeTextAbsentVsEmpty(t *testing.T) {
	n := NewBuilderNode("a")
	if _, ok := n.Text(); ok {
		t.Fatalf("expected no text on a fresh node")
	}
	n.SetText("")
	text, ok := n.Text()
	if !ok {
		t.Fatalf("expected HasText after SetText(\"\")")
	}
	if text != "" {
		t.Errorf("expected empty text, got %q", text)
	}
}

func TestBuilderNodeAppendAttributeOrderAndDuplicates(t *testing.T) {
	n := NewBuilderNode("a")
	n.AppendAttribute("x", "1")
	n.AppendAttribute("y", "2")
	n.AppendAttribute("x", "3")

	attrs := n.Attributes()
	if len(attrs) != 3 {
		t.Fatalf("expected 3 attributes, got %d", len(attrs))
	}
	if attrs[0].Name != "x" || attrs[0].Value != "1" {
		t.Errorf("unexpected first attribute: %+v", attrs[0])
	}
	if attrs[2].Name != "x" || attrs[2].Value != "3" {
		t.Errorf("duplicate attribute not retained: %+v", attrs[2])
	}
}

func TestBuilderNodeSizeInOutput(t *testing.T) {
	n := NewBuilderNode("a")
	if got, want := n.sizeInOutput(), uint32(nodeRecordSize-4); got != want {
		t.Errorf("no text, no attrs: got %d, want %d", got, want)
	}
	n.SetText("hi")
	if got, want := n.sizeInOutput(), uint32(nodeRecordSize); got != want {
		t.Errorf("with text: got %d, want %d", got, want)
	}
	n.AppendAttribute("k", "v")
	if got, want := n.sizeInOutput(), uint32(nodeRecordSize+attrRecordSize); got != want {
		t.Errorf("with text+attr: got %d, want %d", got, want)
	}
}

func TestBuilderNodeCloneIsDeepAndDetached(t *testing.T) {
	root := NewBuilderNode("root")
	child := NewBuilderNode("child")
	child.SetText("hello")
	child.AppendAttribute("a", "1")
	root.AppendChild(child)

	clone := root.Clone()
	if clone.Parent() != nil {
		t.Errorf("clone of a root must itself be a root")
	}
	if len(clone.Children()) != 1 {
		t.Fatalf("expected 1 cloned child, got %d", len(clone.Children()))
	}
	cc := clone.Children()[0]
	if cc == child {
		t.Errorf("clone must allocate new nodes, not reuse originals")
	}
	cc.SetText("mutated")
	if text, _ := child.Text(); text != "hello" {
		t.Errorf("mutating the clone must not affect the original: got %q", text)
	}
}

func TestBuilderNodeFlags(t *testing.T) {
	n := NewBuilderNode("a")
	if n.HasFlag(FlagIgnoreCDATA) || n.HasFlag(FlagLiteralText) {
		t.Fatalf("fresh node should have no flags set")
	}
	n.AddFlag(FlagIgnoreCDATA)
	if !n.HasFlag(FlagIgnoreCDATA) {
		t.Errorf("expected FlagIgnoreCDATA to be set")
	}
	if n.HasFlag(FlagLiteralText) {
		t.Errorf("FlagLiteralText must remain unset")
	}
}
