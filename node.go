// Package silo compiles one or more XML documents into a single
// self-contained binary blob suitable for memory-mapped, offset-addressed
// traversal — see doc.go for the high-level data flow.
package silo

// NodeFlag marks a BuilderNode with a compile-time behavior.
type NodeFlag uint8

const (
	// FlagIgnoreCDATA excludes a node and its text from the compiled output.
	// The parser adapter sets it on every element it creates beneath a
	// flagged node; AppendChild itself does not propagate it.
	FlagIgnoreCDATA NodeFlag = 1 << iota
	// FlagLiteralText marks a node's text as already normalized, so
	// downstream consumers must not re-canonicalize whitespace in it.
	FlagLiteralText
)

// Attribute is a single (name, value) pair. Order and duplicates are
// preserved exactly as declared in the source XML.
type Attribute struct {
	Name  string
	Value string
}

// BuilderNode is an in-memory tree node: an element tag, optional text,
// ordered attributes, and ordered children. A node's text field is either
// absent or present-and-possibly-empty; the distinction survives into the
// compiled output as the has_text bit.
type BuilderNode struct {
	element  string
	text     *string
	attrs    []Attribute
	flags    NodeFlag
	children []*BuilderNode
	parent   *BuilderNode

	// Transient compile slots. Populated and consumed strictly within one
	// Compile invocation; meaningless outside it.
	elementIdx uint32
	textIdx    uint32
	attrIdx    []attrStrIdx
	offset     uint32
}

type attrStrIdx struct {
	nameIdx  uint32
	valueIdx uint32
}

// NewBuilderNode creates a node with the given element tag and no text,
// attributes, or children.
func NewBuilderNode(element string) *BuilderNode {
	return &BuilderNode{element: element}
}

// Element returns the node's tag.
func (n *BuilderNode) Element() string { return n.element }

// Text returns the node's text and whether it is present at all (nil text
// means "no text node", as distinct from an empty string).
func (n *BuilderNode) Text() (string, bool) {
	if n.text == nil {
		return "", false
	}
	return *n.text, true
}

// SetText sets the node's text verbatim, overwriting any previous value.
func (n *BuilderNode) SetText(text string) {
	n.text = &text
}

// HasText reports whether the node carries a text payload.
func (n *BuilderNode) HasText() bool { return n.text != nil }

// AppendAttribute appends an attribute, preserving insertion order.
// Duplicate names are permitted and retained.
func (n *BuilderNode) AppendAttribute(name, value string) {
	n.attrs = append(n.attrs, Attribute{Name: name, Value: value})
}

// Attributes returns the node's attributes in declaration order.
func (n *BuilderNode) Attributes() []Attribute { return n.attrs }

// Attribute returns the value of the first attribute with the given name.
func (n *BuilderNode) Attribute(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AppendChild appends a child node, taking ownership of it (the child's
// parent pointer is set to n).
func (n *BuilderNode) AppendChild(c *BuilderNode) {
	c.parent = n
	n.children = append(n.children, c)
}

// Children returns the node's children in document order.
func (n *BuilderNode) Children() []*BuilderNode { return n.children }

// Parent returns the node's parent, or nil for a root.
func (n *BuilderNode) Parent() *BuilderNode { return n.parent }

// HasFlag reports whether f is set.
func (n *BuilderNode) HasFlag(f NodeFlag) bool { return n.flags&f != 0 }

// AddFlag sets f on the node.
func (n *BuilderNode) AddFlag(f NodeFlag) { n.flags |= f }

// Clone returns a deep copy of the subtree rooted at n, with no parent.
// Used when grafting an Import's info tree, which must remain reusable
// across multiple compiles. A Builder's synthetic node trees are grafted
// as they are, without a copy.
func (n *BuilderNode) Clone() *BuilderNode {
	clone := &BuilderNode{
		element: n.element,
		flags:   n.flags,
	}
	if n.text != nil {
		t := *n.text
		clone.text = &t
	}
	if len(n.attrs) > 0 {
		clone.attrs = append([]Attribute(nil), n.attrs...)
	}
	for _, c := range n.children {
		clone.AppendChild(c.Clone())
	}
	return clone
}

// nrAttrs returns the number of attribute records this node will emit.
func (n *BuilderNode) nrAttrs() int { return len(n.attrs) }

// sizeInOutput returns the number of bytes this node occupies in the node
// table: a NodeRecord (minus the text field when absent) plus one
// AttrRecord per attribute.
func (n *BuilderNode) sizeInOutput() uint32 {
	sz := nodeRecordSize + uint32(n.nrAttrs())*attrRecordSize
	if !n.HasText() {
		sz -= 4
	}
	return sz
}
