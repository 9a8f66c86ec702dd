package models

// SectionRange selects sections by index. A bound of -1 leaves that side
// open.
type SectionRange struct {
	First int `yaml:"firstSection" validate:"gte=-1"`
	Last  int `yaml:"lastSection" validate:"gte=-1"`
}

// AllSections is the range without bounds.
var AllSections = SectionRange{First: -1, Last: -1}

// Contains reports whether the section index lies in the range.
func (r SectionRange) Contains(section int) bool {
	if r.First >= 0 && section < r.First {
		return false
	}
	if r.Last >= 0 && section > r.Last {
		return false
	}
	return true
}
