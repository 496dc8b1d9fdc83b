package loader

// schemaSQL is the DDL for every domain table, laid out in the same
// FK-dependency order the driver loads them in: structure, sections,
// refs, obligations, similarities, classifications, reporting (with
// its indicator/highlight children), anachronisms, implementation.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS structure (
    jurisdiction TEXT NOT NULL,
    id TEXT NOT NULL,
    parent_id TEXT,
    level INTEGER NOT NULL,
    label TEXT NOT NULL,
    heading TEXT,
    ordinal INTEGER NOT NULL,
    PRIMARY KEY (jurisdiction, id)
);

CREATE TABLE IF NOT EXISTS sections (
    jurisdiction TEXT NOT NULL,
    id TEXT NOT NULL,
    citation TEXT NOT NULL,
    heading TEXT,
    text_plain TEXT NOT NULL,
    text_html TEXT,
    ancestors JSON NOT NULL,
    title_label TEXT,
    chapter_label TEXT,
    effective_date DATETIME,
    PRIMARY KEY (jurisdiction, id)
);

CREATE TABLE IF NOT EXISTS section_refs (
    jurisdiction TEXT NOT NULL,
    from_id TEXT NOT NULL,
    to_id TEXT NOT NULL,
    raw_cite TEXT NOT NULL,
    PRIMARY KEY (jurisdiction, from_id, raw_cite),
    FOREIGN KEY (jurisdiction, from_id) REFERENCES sections(jurisdiction, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS obligations (
    jurisdiction TEXT NOT NULL,
    section_id TEXT NOT NULL,
    category TEXT NOT NULL,
    phrase TEXT NOT NULL,
    value REAL,
    unit TEXT,
    confidence REAL,
    PRIMARY KEY (jurisdiction, section_id, phrase),
    FOREIGN KEY (jurisdiction, section_id) REFERENCES sections(jurisdiction, id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS section_similarities (
    jurisdiction TEXT NOT NULL,
    section_a TEXT NOT NULL,
    section_b TEXT NOT NULL,
    similarity REAL NOT NULL,
    PRIMARY KEY (jurisdiction, section_a, section_b),
    CHECK (section_a < section_b)
);

CREATE TABLE IF NOT EXISTS section_similarity_classifications (
    jurisdiction TEXT NOT NULL,
    section_a TEXT NOT NULL,
    section_b TEXT NOT NULL,
    kind TEXT NOT NULL,
    explanation TEXT,
    model_used TEXT,
    analyzed_at DATETIME,
    PRIMARY KEY (jurisdiction, section_a, section_b),
    FOREIGN KEY (jurisdiction, section_a, section_b)
        REFERENCES section_similarities(jurisdiction, section_a, section_b) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS reporting_records (
    jurisdiction TEXT NOT NULL,
    section_id TEXT NOT NULL,
    summary TEXT,
    model_used TEXT,
    analyzed_at DATETIME,
    PRIMARY KEY (jurisdiction, section_id),
    FOREIGN KEY (jurisdiction, section_id) REFERENCES sections(jurisdiction, id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS reporting_indicators (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    jurisdiction TEXT NOT NULL,
    section_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    complexity TEXT NOT NULL,
    recommendation TEXT,
    FOREIGN KEY (jurisdiction, section_id) REFERENCES reporting_records(jurisdiction, section_id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS reporting_highlights (
    indicator_id INTEGER NOT NULL REFERENCES reporting_indicators(id) ON DELETE CASCADE,
    phrase TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS anachronism_records (
    jurisdiction TEXT NOT NULL,
    section_id TEXT NOT NULL,
    summary TEXT,
    model_used TEXT,
    analyzed_at DATETIME,
    PRIMARY KEY (jurisdiction, section_id),
    FOREIGN KEY (jurisdiction, section_id) REFERENCES sections(jurisdiction, id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS anachronism_indicators (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    jurisdiction TEXT NOT NULL,
    section_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    complexity TEXT NOT NULL,
    recommendation TEXT,
    FOREIGN KEY (jurisdiction, section_id) REFERENCES anachronism_records(jurisdiction, section_id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS anachronism_highlights (
    indicator_id INTEGER NOT NULL REFERENCES anachronism_indicators(id) ON DELETE CASCADE,
    phrase TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS implementation_records (
    jurisdiction TEXT NOT NULL,
    section_id TEXT NOT NULL,
    summary TEXT,
    model_used TEXT,
    analyzed_at DATETIME,
    PRIMARY KEY (jurisdiction, section_id),
    FOREIGN KEY (jurisdiction, section_id) REFERENCES sections(jurisdiction, id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS implementation_indicators (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    jurisdiction TEXT NOT NULL,
    section_id TEXT NOT NULL,
    severity TEXT NOT NULL,
    complexity TEXT NOT NULL,
    recommendation TEXT,
    FOREIGN KEY (jurisdiction, section_id) REFERENCES implementation_records(jurisdiction, section_id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS implementation_highlights (
    indicator_id INTEGER NOT NULL REFERENCES implementation_indicators(id) ON DELETE CASCADE,
    phrase TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_structure_parent ON structure(jurisdiction, parent_id);
CREATE INDEX IF NOT EXISTS idx_section_refs_to ON section_refs(jurisdiction, to_id);
CREATE INDEX IF NOT EXISTS idx_obligations_category ON obligations(jurisdiction, category);
CREATE INDEX IF NOT EXISTS idx_similarities_b ON section_similarities(jurisdiction, section_b);
CREATE INDEX IF NOT EXISTS idx_reporting_indicators_section ON reporting_indicators(jurisdiction, section_id);
CREATE INDEX IF NOT EXISTS idx_anachronism_indicators_section ON anachronism_indicators(jurisdiction, section_id);
CREATE INDEX IF NOT EXISTS idx_implementation_indicators_section ON implementation_indicators(jurisdiction, section_id);
`
