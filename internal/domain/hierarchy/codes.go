// internal/domain/hierarchy/codes.go

package hierarchy

import "strings"

// Code widths of Peru's administrative identifiers: departments use two
// digits, provinces two more, and the full district ubigeo is six.
const (
	DepartmentCodeWidth = 2
	ProvinceCodeWidth   = 4
	UbigeoWidth         = 6
)

// PadCode left-pads a numeric region code with zeros to the given width.
// Non-numeric or already-wide codes are returned unchanged.
func PadCode(code string, width int) string {
	code = strings.TrimSpace(code)
	if code == "" || len(code) >= width {
		return code
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return code
		}
	}
	return strings.Repeat("0", width-len(code)) + code
}

// StripCode removes leading zeros from a region code. The all-zero code
// collapses to "0" rather than the empty string.
func StripCode(code string) string {
	code = strings.TrimSpace(code)
	stripped := strings.TrimLeft(code, "0")
	if stripped == "" && code != "" {
		return "0"
	}
	return stripped
}

// CodeForms returns the raw, zero-padded and zero-stripped spellings of a
// code, deduplicated. Source layers are inconsistent about padding, so
// anything matching codes must accept every form.
func CodeForms(code string, width int) []string {
	forms := make([]string, 0, 3)
	seen := make(map[string]struct{}, 3)
	for _, f := range []string{strings.TrimSpace(code), PadCode(code, width), StripCode(code)} {
		if f == "" {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		forms = append(forms, f)
	}
	return forms
}

// CodeSet is an allow-list of region codes that accepts both padded and
// stripped spellings. A nil CodeSet allows everything.
type CodeSet struct {
	members map[string]struct{}
	width   int
}

// NewCodeSet builds a CodeSet from codes normalized to the given width.
func NewCodeSet(codes []string, width int) *CodeSet {
	members := make(map[string]struct{}, len(codes)*2)
	for _, c := range codes {
		for _, f := range CodeForms(c, width) {
			members[f] = struct{}{}
		}
	}
	return &CodeSet{members: members, width: width}
}

// Contains reports whether any spelling of code is in the set. A nil set
// contains every code.
func (s *CodeSet) Contains(code string) bool {
	if s == nil {
		return true
	}
	for _, f := range CodeForms(code, s.width) {
		if _, ok := s.members[f]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of distinct spellings held by the set.
func (s *CodeSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.members)
}
