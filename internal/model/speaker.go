package model

// PropertyType is the declared value type for a speaker property
type PropertyType string

const (
	PropertyString   PropertyType = "string"
	PropertyNumber   PropertyType = "number"
	PropertyBoolean  PropertyType = "boolean"
	PropertyCategory PropertyType = "category" // One of a closed set of values
)

// SpeakerProperty declares one key in the speaker property schema
type SpeakerProperty struct {
	Key         string       `json:"key"`
	Type        PropertyType `json:"type"`
	Description string       `json:"description,omitempty"`
	Required    bool         `json:"required"`
	Values      []string     `json:"values,omitempty"` // Allowed values when Type is category
}

// SpeakerSchema is the Phase 2 artifact: which properties a speaker
// attribution may carry and what type each must be. Like the taxonomy it
// is immutable once discovered.
type SpeakerSchema struct {
	Properties []SpeakerProperty `json:"properties"`
}

// Shape returns the declared properties keyed by name
func (s *SpeakerSchema) Shape() map[string]SpeakerProperty {
	shape := make(map[string]SpeakerProperty, len(s.Properties))
	for _, p := range s.Properties {
		shape[p.Key] = p
	}
	return shape
}

// SpeakerInfo attributes a quote to a speaker.
//
// Confidence is on a fixed scale: 1.0 means the speaker is explicitly and
// unambiguously identified in the transcript, 0.0 means a total guess with
// no supporting evidence. Values outside [0,1] are clamped at validation.
type SpeakerInfo struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties,omitempty"`
}
