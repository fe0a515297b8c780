package silo

import (
	"os"
	"strings"
)

// snapshotLocales reads the host's ordered locale preference once, at the
// start of a Compile call, and returns it as a plain slice. Per spec.md §9
// ("Global locale state"), this is a deliberate snapshot: a later change
// to LANG/LC_ALL/LANGUAGE must not affect an in-flight compile, so the
// result is captured by value and threaded through the rest of the
// pipeline rather than read again later.
func snapshotLocales() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(tag string) {
		tag = normalizeLocaleTag(tag)
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}

	if langs := os.Getenv("LANGUAGE"); langs != "" {
		for _, l := range strings.Split(langs, ":") {
			add(l)
		}
	}
	add(os.Getenv("LC_ALL"))
	add(os.Getenv("LC_MESSAGES"))
	add(os.Getenv("LANG"))
	add("C")
	return out
}

// normalizeLocaleTag strips encoding/modifier suffixes (e.g. "en_US.UTF-8"
// becomes "en_US") and maps "POSIX" to its canonical form "C", but
// leaves everything else as declared since xml:lang values are matched
// against this list verbatim.
func normalizeLocaleTag(tag string) string {
	if tag == "" {
		return ""
	}
	if i := strings.IndexAny(tag, ".@"); i != -1 {
		tag = tag[:i]
	}
	if tag == "POSIX" {
		return "C"
	}
	return tag
}

// localeAllowed reports whether lang is present in locales.
func localeAllowed(locales []string, lang string) bool {
	for _, l := range locales {
		if l == lang {
			return true
		}
	}
	return false
}
