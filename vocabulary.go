package ppeprep

// The class vocabulary shared by all label dialects.

import (
	"strings"

	"github.com/pkg/errors"
)

// DefaultAnchorClass is the class name of anchor boxes.
const DefaultAnchorClass = "person"

// Vocabulary is an immutable ordered list of class names with one designated anchor class.
//
// The line index of a class in classes.txt is its ID in the YOLO label files.
type Vocabulary struct {
	names  []string
	index  map[string]int
	anchor int
}

// NewVocabulary creates a vocabulary from names, designating the class with ID anchor as the
// anchor class.
func NewVocabulary(names []string, anchor int) (Vocabulary, error) {
	if len(names) == 0 {
		return Vocabulary{}, ErrMissingVocabulary
	}
	if anchor < 0 || anchor >= len(names) {
		return Vocabulary{}, errors.Errorf("anchor class %d is not in the vocabulary of %d classes",
			anchor, len(names))
	}

	v := Vocabulary{
		names:  make([]string, len(names)),
		index:  make(map[string]int, len(names)),
		anchor: anchor,
	}
	for i, name := range names {
		if _, dup := v.index[name]; dup {
			return Vocabulary{}, errors.Errorf("duplicate class name %q", name)
		}
		v.names[i] = name
		v.index[name] = i
	}

	return v, nil
}

// LoadVocabulary reads class names from path, one per line, and designates anchorName as the
// anchor class. Blank lines are ignored.
func LoadVocabulary(path, anchorName string) (Vocabulary, error) {
	lines, err := readLines(path)
	if err != nil {
		return Vocabulary{}, errors.Wrap(ErrMissingVocabulary, err.Error())
	}

	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	if len(names) == 0 {
		return Vocabulary{}, errors.Wrapf(ErrMissingVocabulary, "no class names in %q", path)
	}

	anchor := -1
	for i, name := range names {
		if name == anchorName {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return Vocabulary{}, errors.Errorf("anchor class %q not found in %q", anchorName, path)
	}

	return NewVocabulary(names, anchor)
}

// Len is the number of classes.
func (v Vocabulary) Len() int {
	return len(v.names)
}

// Names returns a copy of the class names in ID order.
func (v Vocabulary) Names() []string {
	return append([]string(nil), v.names...)
}

// Name returns the name for class ID id, or "" if id is unknown.
func (v Vocabulary) Name(id int) string {
	if id < 0 || id >= len(v.names) {
		return ""
	}
	return v.names[id]
}

// ID returns the class ID for name.
func (v Vocabulary) ID(name string) (int, bool) {
	id, ok := v.index[name]
	return id, ok
}

// Anchor is the ID of the anchor class.
func (v Vocabulary) Anchor() int {
	return v.anchor
}

// IsAnchor reports whether id is the anchor class.
func (v Vocabulary) IsAnchor(id int) bool {
	return id == v.anchor
}

// DependentID maps the class ID of a dependent box to its ID in the dependent-only vocabulary,
// which is the full vocabulary without the anchor class. IDs above the anchor move down by one.
func (v Vocabulary) DependentID(id int) int {
	if id > v.anchor {
		return id - 1
	}
	return id
}

// DependentNames returns the class names of the dependent-only vocabulary in ID order.
func (v Vocabulary) DependentNames() []string {
	names := make([]string, 0, len(v.names)-1)
	for i, name := range v.names {
		if i != v.anchor {
			names = append(names, name)
		}
	}
	return names
}
