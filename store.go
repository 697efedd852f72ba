package engram

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// LexicalHit is one row returned by a Store's lexical search.
type LexicalHit struct {
	ID    string
	Score float64 // normalized to roughly [0,1]; higher is a better match
}

// HebbianEdge is one row of the co-activation table, keyed by an unordered
// pair of entry IDs stored in canonical order (A < B). Count < FormationThreshold
// and Formed == false means it is a tracking record (spec §4.4); Formed ==
// true means it is a usable link.
type HebbianEdge struct {
	A, B     string
	Strength float64
	Count    int
	Formed   bool
}

// Store is the persistence contract the engine is built against (spec §6).
// SQLiteStore is the only built-in implementation; anything satisfying this
// interface can back the engine instead.
type Store interface {
	InsertEntry(ctx context.Context, e *Entry) error
	GetEntry(ctx context.Context, id string) (*Entry, error)
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, id string) error
	AllEntries(ctx context.Context) ([]*Entry, error)

	LexicalSearch(ctx context.Context, query string, limit int) ([]LexicalHit, error)

	LogAccess(ctx context.Context, id string, at time.Time) error
	AccessTimes(ctx context.Context, id string) ([]time.Time, error)

	UpsertVector(ctx context.Context, id string, vec []float32) error

	AddGraphEdge(ctx context.Context, entryID, entityText, entityType string) error
	EntriesByEntity(ctx context.Context, entityText string, exclude map[string]bool) ([]string, error)
	EntitiesOf(ctx context.Context, entryID string) ([]Entity, error)

	GetAssoc(ctx context.Context, a, b string) (*HebbianEdge, error)
	UpsertAssoc(ctx context.Context, e *HebbianEdge) error
	DeleteAssoc(ctx context.Context, a, b string) error
	IterFormedAssoc(ctx context.Context) ([]*HebbianEdge, error)
	DecayAssoc(ctx context.Context, factor, pruneFloor float64) error
	AssocNeighbors(ctx context.Context, id string) ([]*HebbianEdge, error)

	Close() error
}

// SQLiteStore is the built-in Store, backed by a single-file SQLite database
// with an FTS5 virtual table for lexical search.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("engram: mkdir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: open db: %v", ErrStoreError, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrate: %v", ErrStoreError, err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)

	var version int
	s.db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	if version >= 1 {
		return nil
	}

	if _, err := s.db.Exec(`
		CREATE TABLE entries (
			id              TEXT PRIMARY KEY,
			content         TEXT NOT NULL,
			summary         TEXT NOT NULL DEFAULT '',
			type            TEXT NOT NULL,
			importance      REAL NOT NULL DEFAULT 0.5,
			working_strength REAL NOT NULL DEFAULT 1.0,
			core_strength   REAL NOT NULL DEFAULT 0.0,
			layer           TEXT NOT NULL DEFAULT 'working',
			access_count    INTEGER NOT NULL DEFAULT 0,
			last_access     TEXT,
			created_at      TEXT NOT NULL,
			pinned          INTEGER NOT NULL DEFAULT 0,
			tags            TEXT NOT NULL DEFAULT '',
			contradicts     TEXT NOT NULL DEFAULT '',
			contradicted_by TEXT NOT NULL DEFAULT '',
			source          TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX idx_entries_type  ON entries(type);
		CREATE INDEX idx_entries_layer ON entries(layer);

		CREATE VIRTUAL TABLE entries_fts USING fts5(id UNINDEXED, content, summary);

		CREATE TABLE access_log (
			entry_id    TEXT NOT NULL,
			accessed_at TEXT NOT NULL
		);
		CREATE INDEX idx_access_entry ON access_log(entry_id);

		CREATE TABLE vectors (
			entry_id TEXT PRIMARY KEY REFERENCES entries(id) ON DELETE CASCADE,
			vector   BLOB NOT NULL
		);

		CREATE TABLE graph_edges (
			entry_id    TEXT NOT NULL,
			entity_text TEXT NOT NULL,
			entity_type TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (entry_id, entity_text)
		);
		CREATE INDEX idx_graph_entity ON graph_edges(entity_text);

		CREATE TABLE hebbian_edges (
			a        TEXT NOT NULL,
			b        TEXT NOT NULL,
			strength REAL NOT NULL DEFAULT 0,
			count    INTEGER NOT NULL DEFAULT 0,
			formed   INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (a, b)
		);
		CREATE INDEX idx_hebbian_b ON hebbian_edges(b);
	`); err != nil {
		return err
	}
	s.db.Exec(`INSERT INTO schema_version (version) VALUES (1)`)
	return nil
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

// --- Entry CRUD ---

func (s *SQLiteStore) InsertEntry(ctx context.Context, e *Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer tx.Rollback()

	var lastAccess any
	if e.LastAccess != nil {
		lastAccess = formatTime(*e.LastAccess)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entries (id, content, summary, type, importance, working_strength,
			core_strength, layer, access_count, last_access, created_at, pinned, tags,
			contradicts, contradicted_by, source)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.Content, e.Summary, string(e.Type), e.Importance, e.WorkingStrength,
		e.CoreStrength, string(e.Layer), e.AccessCount, lastAccess, formatTime(e.CreatedAt),
		boolToInt(e.Pinned), strings.Join(e.Tags, ","), e.Contradicts, e.ContradictedBy, e.Source,
	); err != nil {
		return fmt.Errorf("%w: insert entry: %v", ErrStoreError, err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO entries_fts (id, content, summary) VALUES (?,?,?)`,
		e.ID, e.Content, e.Summary); err != nil {
		return fmt.Errorf("%w: index entry: %v", ErrStoreError, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetEntry(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, summary, type, importance, working_strength, core_strength,
			layer, access_count, last_access, created_at, pinned, tags, contradicts,
			contradicted_by, source
		FROM entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get entry: %v", ErrStoreError, err)
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var typ, layer, tags string
	var lastAccess sql.NullString
	var created string
	var pinned int

	if err := row.Scan(&e.ID, &e.Content, &e.Summary, &typ, &e.Importance,
		&e.WorkingStrength, &e.CoreStrength, &layer, &e.AccessCount, &lastAccess,
		&created, &pinned, &tags, &e.Contradicts, &e.ContradictedBy, &e.Source); err != nil {
		return nil, err
	}

	e.Type = MemoryType(typ)
	e.Layer = Layer(layer)
	e.Pinned = pinned != 0
	if tags != "" {
		e.Tags = strings.Split(tags, ",")
	}
	if lastAccess.Valid {
		t, err := parseTime(lastAccess.String)
		if err == nil {
			e.LastAccess = &t
		}
	}
	if t, err := parseTime(created); err == nil {
		e.CreatedAt = t
	}
	return &e, nil
}

func (s *SQLiteStore) UpdateEntry(ctx context.Context, e *Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer tx.Rollback()

	var lastAccess any
	if e.LastAccess != nil {
		lastAccess = formatTime(*e.LastAccess)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE entries SET content=?, summary=?, type=?, importance=?, working_strength=?,
			core_strength=?, layer=?, access_count=?, last_access=?, pinned=?, tags=?,
			contradicts=?, contradicted_by=?, source=?
		WHERE id=?`,
		e.Content, e.Summary, string(e.Type), e.Importance, e.WorkingStrength,
		e.CoreStrength, string(e.Layer), e.AccessCount, lastAccess, boolToInt(e.Pinned),
		strings.Join(e.Tags, ","), e.Contradicts, e.ContradictedBy, e.Source, e.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: update entry: %v", ErrStoreError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `UPDATE entries_fts SET content=?, summary=? WHERE id=?`,
		e.Content, e.Summary, e.ID); err != nil {
		return fmt.Errorf("%w: reindex entry: %v", ErrStoreError, err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) DeleteEntry(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("%w: delete entry: %v", ErrStoreError, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	tx.ExecContext(ctx, `DELETE FROM entries_fts WHERE id=?`, id)
	tx.ExecContext(ctx, `DELETE FROM access_log WHERE entry_id=?`, id)
	tx.ExecContext(ctx, `DELETE FROM vectors WHERE entry_id=?`, id)
	tx.ExecContext(ctx, `DELETE FROM graph_edges WHERE entry_id=?`, id)
	tx.ExecContext(ctx, `DELETE FROM hebbian_edges WHERE a=? OR b=?`, id, id)

	return tx.Commit()
}

func (s *SQLiteStore) AllEntries(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, summary, type, importance, working_strength, core_strength,
			layer, access_count, last_access, created_at, pinned, tags, contradicts,
			contradicted_by, source
		FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan entry: %v", ErrStoreError, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Lexical search ---

func (s *SQLiteStore) LexicalSearch(ctx context.Context, query string, limit int) ([]LexicalHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bm25(entries_fts) FROM entries_fts WHERE entries_fts MATCH ?
		ORDER BY bm25(entries_fts) LIMIT ?`, ftsQuery(query), limit)
	if err != nil {
		// A malformed MATCH expression (bare punctuation, dangling quote) is a
		// caller input problem, not a store failure.
		return nil, nil
	}
	defer rows.Close()

	var hits []LexicalHit
	for rows.Next() {
		var id string
		var bm25 float64
		if err := rows.Scan(&id, &bm25); err != nil {
			return nil, fmt.Errorf("%w: scan hit: %v", ErrStoreError, err)
		}
		// bm25() in SQLite is negative and unbounded; fold it into (0,1].
		hits = append(hits, LexicalHit{ID: id, Score: 1.0 / (1.0 + math.Exp(bm25/4))})
	}
	return hits, rows.Err()
}

// ftsQuery quotes each term so punctuation in free-form content never trips
// FTS5's query-syntax parser.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, ``)
		if f == "" {
			continue
		}
		quoted = append(quoted, `"`+f+`"`)
	}
	return strings.Join(quoted, " OR ")
}

// --- Access log ---

func (s *SQLiteStore) LogAccess(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO access_log (entry_id, accessed_at) VALUES (?,?)`,
		id, formatTime(at))
	if err != nil {
		return fmt.Errorf("%w: log access: %v", ErrStoreError, err)
	}
	return nil
}

func (s *SQLiteStore) AccessTimes(ctx context.Context, id string) ([]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT accessed_at FROM access_log WHERE entry_id=? ORDER BY accessed_at`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		if t, err := parseTime(s); err == nil {
			out = append(out, t)
		}
	}
	return out, rows.Err()
}

// --- Vectors ---

func (s *SQLiteStore) UpsertVector(ctx context.Context, id string, vec []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vectors (entry_id, vector) VALUES (?,?)
		ON CONFLICT(entry_id) DO UPDATE SET vector=excluded.vector`,
		id, encodeVector(vec))
	if err != nil {
		return fmt.Errorf("%w: upsert vector: %v", ErrStoreError, err)
	}
	return nil
}

// VectorSearch brute-forces cosine similarity in Go across every stored
// embedding. SQLiteStore satisfies VectorSearcher this way rather than via a
// native vector index, see DESIGN.md for why.
func (s *SQLiteStore) VectorSearch(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry_id, vector FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer rows.Close()

	var all []VectorHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		all = append(all, VectorHit{id, CosineSimilarity(query, decodeVector(blob))})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	if k > len(all) {
		k = len(all)
	}
	return all[:k], nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// --- Entity graph ---

func (s *SQLiteStore) AddGraphEdge(ctx context.Context, entryID, entityText, entityType string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO graph_edges (entry_id, entity_text, entity_type) VALUES (?,?,?)
		ON CONFLICT(entry_id, entity_text) DO UPDATE SET entity_type=excluded.entity_type`,
		entryID, entityText, entityType)
	if err != nil {
		return fmt.Errorf("%w: add graph edge: %v", ErrStoreError, err)
	}
	return nil
}

func (s *SQLiteStore) EntitiesOf(ctx context.Context, entryID string) ([]Entity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_text, entity_type FROM graph_edges WHERE entry_id=?`, entryID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.Text, &e.Type); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) EntriesByEntity(ctx context.Context, entityText string, exclude map[string]bool) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entry_id FROM graph_edges WHERE entity_text=?`, entityText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !exclude[id] {
			out = append(out, id)
		}
	}
	return out, rows.Err()
}

// --- Hebbian associations ---

func (s *SQLiteStore) GetAssoc(ctx context.Context, a, b string) (*HebbianEdge, error) {
	row := s.db.QueryRowContext(ctx, `SELECT a,b,strength,count,formed FROM hebbian_edges WHERE a=? AND b=?`, a, b)
	var e HebbianEdge
	var formed int
	if err := row.Scan(&e.A, &e.B, &e.Strength, &e.Count, &formed); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	e.Formed = formed != 0
	return &e, nil
}

func (s *SQLiteStore) UpsertAssoc(ctx context.Context, e *HebbianEdge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hebbian_edges (a,b,strength,count,formed) VALUES (?,?,?,?,?)
		ON CONFLICT(a,b) DO UPDATE SET strength=excluded.strength, count=excluded.count, formed=excluded.formed`,
		e.A, e.B, e.Strength, e.Count, boolToInt(e.Formed))
	if err != nil {
		return fmt.Errorf("%w: upsert assoc: %v", ErrStoreError, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAssoc(ctx context.Context, a, b string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hebbian_edges WHERE a=? AND b=?`, a, b)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	return nil
}

func (s *SQLiteStore) IterFormedAssoc(ctx context.Context) ([]*HebbianEdge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT a,b,strength,count,formed FROM hebbian_edges WHERE formed=1`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer rows.Close()

	var out []*HebbianEdge
	for rows.Next() {
		var e HebbianEdge
		var formed int
		if err := rows.Scan(&e.A, &e.B, &e.Strength, &e.Count, &formed); err != nil {
			return nil, err
		}
		e.Formed = formed != 0
		out = append(out, &e)
	}
	return out, rows.Err()
}

// DecayAssoc applies a multiplicative decay to every formed link and prunes
// anything below pruneFloor. Tracking records (formed=0) are untouched, per
// spec §4.4: they carry no strength to decay.
func (s *SQLiteStore) DecayAssoc(ctx context.Context, factor, pruneFloor float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE hebbian_edges SET strength = strength * ? WHERE formed = 1`, factor); err != nil {
		return fmt.Errorf("%w: decay assoc: %v", ErrStoreError, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hebbian_edges WHERE formed = 1 AND strength < ?`, pruneFloor); err != nil {
		return fmt.Errorf("%w: prune assoc: %v", ErrStoreError, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) AssocNeighbors(ctx context.Context, id string) ([]*HebbianEdge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a,b,strength,count,formed FROM hebbian_edges
		WHERE (a=? OR b=?) AND formed=1`, id, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreError, err)
	}
	defer rows.Close()

	var out []*HebbianEdge
	for rows.Next() {
		var e HebbianEdge
		var formed int
		if err := rows.Scan(&e.A, &e.B, &e.Strength, &e.Count, &formed); err != nil {
			return nil, err
		}
		e.Formed = formed != 0
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
