package model

// EnhancedQuote is one extracted, speaker-attributed text span.
//
// A quote exists only because at least one taxonomy code applies to it:
// spans with no applicable code (greetings, procedural chatter) are
// deliberately not extracted. After validation CodeIDs is therefore always
// non-empty, and every id in it exists in the taxonomy.
type EnhancedQuote struct {
	ID          string      `json:"id"` // Deterministic: document id + sequence position
	Text        string      `json:"text"`
	Context     string      `json:"context,omitempty"` // Short summary of surrounding discussion
	CodeIDs     []string    `json:"code_ids"`
	Speaker     SpeakerInfo `json:"speaker"`
	InterviewID string      `json:"interview_id"`
	LineStart   int         `json:"line_start"`
	LineEnd     int         `json:"line_end"`
	EntityIDs   []string    `json:"entity_ids,omitempty"`       // Entities mentioned in this quote
	RelationIDs []string    `json:"relationship_ids,omitempty"` // Relationships scoped to this quote
}
