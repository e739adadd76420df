package graph

// schemaSQL is the DDL for the quote-centric graph. Quotes are first-class
// nodes with deterministic ids, never properties nested inside speaker or
// document rows. All edges share one table keyed by a deterministic edge
// id, so re-importing a document is a no-op and corrections are modeled as
// new edges plus retraction of superseded ones.
const schemaSQL = `
-- Node tables

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    path TEXT,
    imported_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS codes (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    parent_id TEXT,
    level INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS speakers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    properties JSON
);

CREATE TABLE IF NOT EXISTS quotes (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id),
    text TEXT NOT NULL,
    context TEXT,
    line_start INTEGER,
    line_end INTEGER,
    position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    description TEXT
);

-- Edge table: one row per edge, deterministic id, append-only.
-- Kinds: HAS_CODE (quote->code), SPOKEN_BY (quote->speaker),
-- FROM_DOCUMENT (quote->document), CHILD_OF (code->code),
-- MENTIONS (quote->entity), RELATES_TO (entity->entity),
-- CONNECTS_TO (quote->quote, cross-speaker idea flow).
CREATE TABLE IF NOT EXISTS edges (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    source_id TEXT NOT NULL,
    target_id TEXT NOT NULL,
    properties JSON,
    retracted INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_quotes_document ON quotes(document_id);
CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
`
