package apply

// Wire types: the shape the extraction backend returns for one document.
// Entities are referenced by name at this layer and resolved into the
// id-indexed arena during validation.

type wireSpeaker struct {
	Name       string         `json:"name"`
	Confidence float64        `json:"confidence"`
	Properties map[string]any `json:"properties"`
}

type wireQuote struct {
	Text      string      `json:"text"`
	Context   string      `json:"context"`
	CodeIDs   []string    `json:"code_ids"`
	Speaker   wireSpeaker `json:"speaker"`
	LineStart int         `json:"line_start"`
	LineEnd   int         `json:"line_end"`
}

type wireEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Scope       string `json:"scope"`
	QuoteIndex  []int  `json:"quote_indexes"` // Indexes into the returned quotes array
}

type wireRelationship struct {
	Type        string `json:"type"`
	Source      string `json:"source"` // Entity name from the entities array
	Target      string `json:"target"`
	Description string `json:"description"`
	Scope       string `json:"scope"`
}

type wireDocument struct {
	Quotes        []wireQuote        `json:"quotes"`
	Entities      []wireEntity       `json:"entities"`
	Relationships []wireRelationship `json:"relationships"`
	QuoteCount    int                `json:"quote_count"` // Backend-reported total, checked at aggregation
}
