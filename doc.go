package silo

// Compiling a silo runs four stages against the import list a Builder
// accumulates:
//
//  1. Parse — each Import's XML stream is pulled through an adapter
//     (parser.go) into a BuilderNode forest grafted under one synthetic
//     root, applying locale filtering and whitespace policy as it goes.
//  2. Size — a first pass over the live forest (nodetab.go) computes the
//     exact byte length of the node table before anything is emitted.
//  3. Intern — a second pass assigns every element name, attribute name,
//     attribute value, and text string an offset in a deduplicated string
//     table (strtab.go), in four sequential sweeps so frequently-repeated
//     tag names cluster at the smallest offsets.
//  4. Emit — a third and fourth pass (nodetab.go) write the fixed-size
//     records and patch in their resolved parent/next-sibling offsets.
//
// The result is a single self-contained blob: a fixed header, a flat
// depth-first node-record stream addressed entirely by byte offset, and
// a trailing string table (layout.go). Ensure (ensure.go) wraps Compile
// with a content-addressed freshness check so repeated runs can skip
// recompiling when nothing that feeds the GUID has changed.
