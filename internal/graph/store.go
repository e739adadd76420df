// Package graph persists the extraction data model into a quote-centric
// SQLite graph. All writes are append/idempotent: node and edge identities
// are deterministic, so re-running persistence for a document id leaves
// the graph unchanged.
package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mzaremba/quotient/internal/model"
)

// Edge kinds
const (
	EdgeHasCode      = "HAS_CODE"
	EdgeSpokenBy     = "SPOKEN_BY"
	EdgeFromDocument = "FROM_DOCUMENT"
	EdgeChildOf      = "CHILD_OF"
	EdgeMentions     = "MENTIONS"
	EdgeRelatesTo    = "RELATES_TO"
	EdgeConnectsTo   = "CONNECTS_TO"
)

// Store wraps the SQLite database holding the graph
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the graph database at the given path and
// initialises the schema.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// PersistTaxonomy writes the code nodes and hierarchy edges
func (s *Store) PersistTaxonomy(tax *model.Taxonomy) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, c := range tax.Codes {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO codes (id, name, description, parent_id, level) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Description, c.ParentID, c.Level,
		); err != nil {
			return fmt.Errorf("insert code %s: %w", c.ID, err)
		}
		if c.ParentID != "" {
			if err := insertEdge(tx, EdgeChildOf, c.ID, c.ParentID, nil); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// PersistDocument writes one document's quotes, speakers, entities and all
// their edges. Calling it twice with the same result is a no-op.
func (s *Store) PersistDocument(result *model.DocumentResult, sourcePath string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO documents (id, path) VALUES (?, ?)`,
		result.DocumentID, sourcePath,
	); err != nil {
		return fmt.Errorf("insert document %s: %w", result.DocumentID, err)
	}

	// Entity arena ids are per-document; graph identity is (type, name)
	// so the same entity mentioned across documents lands on one node.
	entityNodes := make(map[string]string, len(result.Entities))
	for _, e := range result.Entities {
		nodeID := EntityNodeID(e.Type, e.Name)
		entityNodes[e.ID] = nodeID
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO entities (id, name, entity_type, description) VALUES (?, ?, ?, ?)`,
			nodeID, e.Name, e.Type, e.Description,
		); err != nil {
			return fmt.Errorf("insert entity %s: %w", nodeID, err)
		}
	}

	for pos, q := range result.Quotes {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO quotes (id, document_id, text, context, line_start, line_end, position) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			q.ID, result.DocumentID, q.Text, q.Context, q.LineStart, q.LineEnd, pos,
		); err != nil {
			return fmt.Errorf("insert quote %s: %w", q.ID, err)
		}

		speakerID := SpeakerNodeID(q.Speaker.Name)
		props, err := json.Marshal(q.Speaker.Properties)
		if err != nil {
			return fmt.Errorf("marshal speaker properties: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO speakers (id, name, properties) VALUES (?, ?, ?)`,
			speakerID, q.Speaker.Name, string(props),
		); err != nil {
			return fmt.Errorf("insert speaker %s: %w", speakerID, err)
		}

		if err := insertEdge(tx, EdgeFromDocument, q.ID, result.DocumentID, nil); err != nil {
			return err
		}
		if err := insertEdge(tx, EdgeSpokenBy, q.ID, speakerID, map[string]any{"confidence": q.Speaker.Confidence}); err != nil {
			return err
		}
		for _, codeID := range q.CodeIDs {
			if err := insertEdge(tx, EdgeHasCode, q.ID, codeID, nil); err != nil {
				return err
			}
		}
	}

	for _, e := range result.Entities {
		nodeID := entityNodes[e.ID]
		for _, quoteID := range e.QuoteIDs {
			if err := insertEdge(tx, EdgeMentions, quoteID, nodeID, map[string]any{"scope": string(e.Scope)}); err != nil {
				return err
			}
		}
	}

	for _, r := range result.Relationships {
		src, okSrc := entityNodes[r.SourceID]
		dst, okDst := entityNodes[r.TargetID]
		if !okSrc || !okDst {
			continue
		}
		if err := insertEdge(tx, EdgeRelatesTo, src, dst, map[string]any{
			"type":  r.Type,
			"scope": string(r.Scope),
		}); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// PersistLinks writes the cross-speaker thematic-connection edges
func (s *Store) PersistLinks(links []model.ThematicLink) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, link := range links {
		if err := insertEdge(tx, EdgeConnectsTo, link.FromQuoteID, link.ToQuoteID, map[string]any{"code_id": link.CodeID}); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RetractEdge marks an edge as retracted. Retraction is the only legal
// correction: edges are never updated or deleted in place.
func (s *Store) RetractEdge(edgeID string) error {
	res, err := s.db.Exec(`UPDATE edges SET retracted = 1 WHERE id = ?`, edgeID)
	if err != nil {
		return fmt.Errorf("retract edge %s: %w", edgeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("edge %s not found", edgeID)
	}
	return nil
}

// insertEdge writes one edge with a deterministic id. Properties vary a
// RELATES_TO edge's identity (two entities can be linked by two different
// relationship types); for all other kinds the endpoint pair plus any
// discriminating property is the identity.
func insertEdge(tx *sql.Tx, kind, sourceID, targetID string, props map[string]any) error {
	var propJSON string
	if props != nil {
		data, err := json.Marshal(props)
		if err != nil {
			return fmt.Errorf("marshal edge properties: %w", err)
		}
		propJSON = string(data)
	}

	id := EdgeID(kind, sourceID, targetID, props)
	if _, err := tx.Exec(
		`INSERT OR IGNORE INTO edges (id, kind, source_id, target_id, properties) VALUES (?, ?, ?, ?, ?)`,
		id, kind, sourceID, targetID, propJSON,
	); err != nil {
		return fmt.Errorf("insert edge %s: %w", id, err)
	}
	return nil
}

// EdgeID builds the deterministic edge identity
func EdgeID(kind, sourceID, targetID string, props map[string]any) string {
	discriminator := ""
	switch kind {
	case EdgeRelatesTo:
		if t, ok := props["type"].(string); ok {
			discriminator = "#" + t
		}
	case EdgeConnectsTo:
		if c, ok := props["code_id"].(string); ok {
			discriminator = "#" + c
		}
	}
	return kind + "|" + sourceID + "|" + targetID + discriminator
}

// SpeakerNodeID derives the stable speaker node id from the name
func SpeakerNodeID(name string) string {
	return "speaker:" + normalize(name)
}

// EntityNodeID derives the stable entity node id from type and name
func EntityNodeID(entityType, name string) string {
	return "entity:" + normalize(entityType) + ":" + normalize(name)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "_"))
}

// CodeQuoteCount is one row of the code-support query
type CodeQuoteCount struct {
	CodeID string
	Name   string
	Quotes int
}

// CodeQuoteCounts returns, per code, the number of distinct supporting
// quotes, ignoring retracted edges.
func (s *Store) CodeQuoteCounts() ([]CodeQuoteCount, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.name, COUNT(DISTINCT e.source_id)
		FROM codes c
		LEFT JOIN edges e ON e.kind = ? AND e.target_id = c.id AND e.retracted = 0
		GROUP BY c.id, c.name
		ORDER BY COUNT(DISTINCT e.source_id) DESC, c.id`, EdgeHasCode)
	if err != nil {
		return nil, fmt.Errorf("query code counts: %w", err)
	}
	defer rows.Close()

	var counts []CodeQuoteCount
	for rows.Next() {
		var c CodeQuoteCount
		if err := rows.Scan(&c.CodeID, &c.Name, &c.Quotes); err != nil {
			return nil, fmt.Errorf("scan code count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// QuoteRow is one persisted quote with its speaker
type QuoteRow struct {
	ID         string
	DocumentID string
	Text       string
	Context    string
	LineStart  int
	LineEnd    int
	Speaker    string
}

// QuotesForCode returns all non-retracted quotes supporting a code
func (s *Store) QuotesForCode(codeID string) ([]QuoteRow, error) {
	rows, err := s.db.Query(`
		SELECT q.id, q.document_id, q.text, q.context, q.line_start, q.line_end, COALESCE(sp.name, '')
		FROM quotes q
		JOIN edges hc ON hc.kind = ? AND hc.source_id = q.id AND hc.target_id = ? AND hc.retracted = 0
		LEFT JOIN edges sb ON sb.kind = ? AND sb.source_id = q.id AND sb.retracted = 0
		LEFT JOIN speakers sp ON sp.id = sb.target_id
		ORDER BY q.document_id, q.position`, EdgeHasCode, codeID, EdgeSpokenBy)
	if err != nil {
		return nil, fmt.Errorf("query quotes for code: %w", err)
	}
	defer rows.Close()

	var quotes []QuoteRow
	for rows.Next() {
		var q QuoteRow
		if err := rows.Scan(&q.ID, &q.DocumentID, &q.Text, &q.Context, &q.LineStart, &q.LineEnd, &q.Speaker); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// EntityMention is one row of the entity mention query
type EntityMention struct {
	ID       string
	Name     string
	Type     string
	Mentions int
}

// EntityMentions returns entities ordered by non-retracted mention count
func (s *Store) EntityMentions() ([]EntityMention, error) {
	rows, err := s.db.Query(`
		SELECT en.id, en.name, en.entity_type, COUNT(e.id)
		FROM entities en
		LEFT JOIN edges e ON e.kind = ? AND e.target_id = en.id AND e.retracted = 0
		GROUP BY en.id, en.name, en.entity_type
		ORDER BY COUNT(e.id) DESC, en.id`, EdgeMentions)
	if err != nil {
		return nil, fmt.Errorf("query entity mentions: %w", err)
	}
	defer rows.Close()

	var mentions []EntityMention
	for rows.Next() {
		var m EntityMention
		if err := rows.Scan(&m.ID, &m.Name, &m.Type, &m.Mentions); err != nil {
			return nil, fmt.Errorf("scan entity mention: %w", err)
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

// EdgeCount returns the number of non-retracted edges of a kind, used by
// re-import verification and tests.
func (s *Store) EdgeCount(kind string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM edges WHERE kind = ? AND retracted = 0`, kind).Scan(&n)
	return n, err
}

// QuoteCount returns the number of quote nodes for a document
func (s *Store) QuoteCount(documentID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM quotes WHERE document_id = ?`, documentID).Scan(&n)
	return n, err
}
