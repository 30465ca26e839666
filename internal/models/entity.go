// Package models defines data structures shared across the intake pipeline.
package models

// Well-known property keys the heuristic scorer inspects. Entities may
// carry any number of additional properties; they pass through unchanged.
const (
	PropEmail        = "email"
	PropPhone        = "phone"
	PropOrganization = "organization"
	PropWebsite      = "website"
)

// Entity is a candidate entity extracted from a transcript. Class is an
// open string ("person", "organization", ...), not a fixed enumeration.
type Entity struct {
	Name  string            `json:"name"`
	Class string            `json:"class,omitempty"`
	Props map[string]string `json:"props,omitempty"`
}

// Prop returns the named property, or "" if absent.
func (e Entity) Prop(key string) string {
	if e.Props == nil {
		return ""
	}
	return e.Props[key]
}

// Relationship links two extracted entities by name.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Extraction is the extraction service output for one transcript.
type Extraction struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships,omitempty"`
}

// RecordRef identifies a canonical record in the record store.
type RecordRef string

// Record is a canonical entity previously written to the record store.
type Record struct {
	Ref   RecordRef         `json:"ref"`
	Name  string            `json:"name"`
	Class string            `json:"class,omitempty"`
	Props map[string]string `json:"props,omitempty"`
}

// AsEntity converts a stored record back into the entity shape the
// scorers operate on.
func (r Record) AsEntity() Entity {
	return Entity{Name: r.Name, Class: r.Class, Props: r.Props}
}
