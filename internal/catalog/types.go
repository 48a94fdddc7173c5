package catalog

import (
	"strings"
	"unicode"
)

type Class string

const (
	ClassStandard  Class = "standard"
	ClassAlternate Class = "alternate"
)

// Part is a catalog entry. Key is the normalized Identifier and the primary key.
type Part struct {
	Key           string `dynamodbav:"part_key" json:"-"`
	Identifier    string `dynamodbav:"identifier" json:"identifier"`
	AltIdentifier string `dynamodbav:"alt_identifier,omitempty" json:"alt_identifier,omitempty"`
	Class         Class  `dynamodbav:"class" json:"class"`
	Rack          string `dynamodbav:"rack" json:"rack"`
	Packaging     int    `dynamodbav:"packaging" json:"packaging"`
	Unit          string `dynamodbav:"unit,omitempty" json:"unit,omitempty"`
	Type          string `dynamodbav:"type,omitempty" json:"type,omitempty"`
	Description   string `dynamodbav:"description,omitempty" json:"description,omitempty"`
	SortOrder     int    `dynamodbav:"sort_order" json:"sort_order"`
}

// Patch lists the mutable fields of a Part; nil fields are left untouched.
type Patch struct {
	AltIdentifier *string
	Class         *Class
	Rack          *string
	Packaging     *int
	Unit          *string
	Type          *string
	Description   *string
	SortOrder     *int
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.AltIdentifier == nil && p.Class == nil && p.Rack == nil && p.Packaging == nil &&
		p.Unit == nil && p.Type == nil && p.Description == nil && p.SortOrder == nil
}

// Apply copies the set fields of p onto part.
func (p Patch) Apply(part *Part) {
	if p.AltIdentifier != nil {
		part.AltIdentifier = *p.AltIdentifier
	}
	if p.Class != nil {
		part.Class = *p.Class
	}
	if p.Rack != nil {
		part.Rack = *p.Rack
	}
	if p.Packaging != nil {
		part.Packaging = *p.Packaging
	}
	if p.Unit != nil {
		part.Unit = *p.Unit
	}
	if p.Type != nil {
		part.Type = *p.Type
	}
	if p.Description != nil {
		part.Description = *p.Description
	}
	if p.SortOrder != nil {
		part.SortOrder = *p.SortOrder
	}
}

// NormalizeKey strips whitespace and upper-cases an identifier. Scanners
// and operators disagree on case and padding, so every lookup goes through it.
func NormalizeKey(identifier string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, identifier))
}

// Matches reports whether part's key contains the normalized query.
func (p Part) Matches(query string) bool {
	return strings.Contains(p.Key, NormalizeKey(query))
}
