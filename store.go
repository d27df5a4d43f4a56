package cortex

import (
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

// EngramStore is the persistence + hash-lookup + fast-update-path
// collaborator (§6). Store is the SQLite-backed default implementation,
// grounded on the teacher's Store (same driver, same WAL/busy-timeout
// pragmas, same single-connection-pool choice for write contention at
// this scale).
type EngramStore interface {
	AddOrUpdate(e *Engram) error
	Get(id int64) (*Engram, bool, error)
	GetByContentHash(hash string) (*Engram, bool, error)
	UpdateMetrics(e *Engram) error
	Delete(id int64) error
	PruneOrphans(minQuality float64) (int, error)
	IterBy(pred func(*Engram) bool, orderBy string, limit int) ([]*Engram, error)
	AddLink(sourceID, targetID int64, linkType string, weight float64) error
	Links(engramID int64) ([]Link, error)
}

// Store wraps a SQLite connection for engram persistence.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database and runs migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, newErr(KindFatal, "NewStore", fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err))
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, newErr(KindFatal, "NewStore", fmt.Errorf("open db: %w", err))
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, newErr(KindFatal, "NewStore", fmt.Errorf("migrate: %w", err))
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS engrams (
			id                 INTEGER PRIMARY KEY AUTOINCREMENT,
			version            INTEGER NOT NULL DEFAULT 1,
			content            TEXT    NOT NULL,
			content_hash       TEXT    NOT NULL UNIQUE,
			cluster            TEXT    NOT NULL DEFAULT '',
			meta_source        TEXT    NOT NULL DEFAULT '',
			meta_domain        TEXT    NOT NULL DEFAULT '',
			meta_orig_len      INTEGER NOT NULL DEFAULT 0,
			meta_extra         TEXT    NOT NULL DEFAULT '{}',
			parent_id          INTEGER,
			salience           REAL    NOT NULL DEFAULT 1.0,
			quality_score      REAL    NOT NULL DEFAULT 0.0,
			usage_count        INTEGER NOT NULL DEFAULT 0,
			successful_count   INTEGER NOT NULL DEFAULT 0,
			last_used          TEXT    NOT NULL DEFAULT (datetime('now')),
			created_at         TEXT    NOT NULL DEFAULT (datetime('now')),
			compression_ratio  REAL    NOT NULL DEFAULT 1.0,
			accuracy_preserved REAL    NOT NULL DEFAULT 1.0,
			reuse_contexts     INTEGER NOT NULL DEFAULT 0,
			decay_score        REAL    NOT NULL DEFAULT 0.0,
			is_axiom_derived   INTEGER NOT NULL DEFAULT 0,
			proof_id           TEXT,
			consistency_score  REAL    NOT NULL DEFAULT 0.5,
			axioms_used        TEXT    NOT NULL DEFAULT '',
			integrity_score    REAL    NOT NULL DEFAULT 0.5
		);
		CREATE INDEX IF NOT EXISTS idx_engrams_cluster ON engrams(cluster);
		CREATE INDEX IF NOT EXISTS idx_engrams_quality ON engrams(quality_score);
		CREATE INDEX IF NOT EXISTS idx_engrams_parent  ON engrams(parent_id);

		CREATE TABLE IF NOT EXISTS links (
			source_id INTEGER NOT NULL REFERENCES engrams(id) ON DELETE CASCADE,
			target_id INTEGER NOT NULL REFERENCES engrams(id) ON DELETE CASCADE,
			type      TEXT    NOT NULL,
			weight    REAL    NOT NULL DEFAULT 0,
			UNIQUE(source_id, target_id, type)
		);
		CREATE INDEX IF NOT EXISTS idx_links_source ON links(source_id);
		CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);

		CREATE TABLE IF NOT EXISTS verification_history (
			engram_id INTEGER NOT NULL REFERENCES engrams(id) ON DELETE CASCADE,
			sequence  INTEGER NOT NULL,
			action    TEXT    NOT NULL,
			source    TEXT    NOT NULL DEFAULT '',
			ts        TEXT    NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (engram_id, sequence)
		);

		CREATE TABLE IF NOT EXISTS system_kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS engram_vectors (
			engram_id INTEGER PRIMARY KEY REFERENCES engrams(id) ON DELETE CASCADE,
			vector    BLOB NOT NULL
		);

		PRAGMA foreign_keys = ON;
	`)
	return err
}

// EncodeVector packs a float32 embedding into a little-endian byte blob.
func EncodeVector(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DecodeVector unpacks a byte blob produced by EncodeVector back into a
// float32 embedding.
func DecodeVector(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// InsertVector stores (or replaces) the embedding for an engram.
func (s *Store) InsertVector(engramID int64, vec []float32) error {
	_, err := s.db.Exec(`
		INSERT INTO engram_vectors (engram_id, vector) VALUES (?, ?)
		ON CONFLICT(engram_id) DO UPDATE SET vector = excluded.vector`,
		engramID, EncodeVector(vec))
	if err != nil {
		return newErr(KindTransientExternal, "InsertVector", err)
	}
	return nil
}

// engramVector pairs an engram with its stored embedding, for similarity
// scoring in Retriever implementations.
type engramVector struct {
	Engram *Engram
	Vector []float32
}

// AllVectors loads every engram that has a stored embedding, optionally
// restricted to a cluster.
func (s *Store) AllVectors(cluster string) ([]engramVector, error) {
	query := `SELECT ` + engramSelectCols + `, v.vector
		FROM engrams JOIN engram_vectors v ON v.engram_id = engrams.id`
	args := []any{}
	if cluster != "" {
		query += ` WHERE engrams.cluster = ?`
		args = append(args, cluster)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, newErr(KindTransientExternal, "AllVectors", err)
	}
	defer rows.Close()

	var out []engramVector
	for rows.Next() {
		e, vec, err := scanEngramWithVector(rows)
		if err != nil {
			return nil, newErr(KindTransientExternal, "AllVectors", err)
		}
		out = append(out, engramVector{Engram: e, Vector: vec})
	}
	return out, rows.Err()
}

// scanEngramWithVector scans an engramSelectCols row plus a trailing
// vector blob column, as produced by AllVectors' join.
func scanEngramWithVector(rows *sql.Rows) (*Engram, []float32, error) {
	var e Engram
	var lastUsed, created, extraJSON, axiomsJoined string
	var parentID sql.NullInt64
	var proofID sql.NullString
	var isAxiom int
	var vecBlob []byte

	if err := rows.Scan(
		&e.ID, &e.Version, &e.Content, &e.Hash, &e.Cluster, &e.Metadata.Source, &e.Metadata.Domain,
		&e.Metadata.OriginalLength, &extraJSON, &parentID, &e.Salience, &e.QualityScore, &e.UsageCount,
		&e.SuccessfulApplicationCount, &lastUsed, &created, &e.CompressionRatio, &e.AccuracyPreserved,
		&e.ReuseContexts, &e.DecayScore, &isAxiom, &proofID, &e.ConsistencyScore,
		&axiomsJoined, &e.IntegrityScore, &vecBlob,
	); err != nil {
		return nil, nil, err
	}

	e.LastUsed, _ = time.Parse("2006-01-02 15:04:05", lastUsed)
	e.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
	e.IsAxiomDerived = isAxiom != 0
	if parentID.Valid {
		id := parentID.Int64
		e.ParentID = &id
	}
	if proofID.Valid {
		p := proofID.String
		e.ProofID = &p
	}
	e.Metadata.Extra = decodeExtra(extraJSON)
	if axiomsJoined != "" {
		e.AxiomsUsed = strings.Split(axiomsJoined, ",")
	}
	return &e, DecodeVector(vecBlob), nil
}

const engramSelectCols = `id, version, content, content_hash, cluster, meta_source, meta_domain,
	meta_orig_len, meta_extra, parent_id, salience, quality_score, usage_count,
	successful_count, last_used, created_at, compression_ratio, accuracy_preserved,
	reuse_contexts, decay_score, is_axiom_derived, proof_id, consistency_score,
	axioms_used, integrity_score`

func scanEngram(row interface{ Scan(...any) error }) (*Engram, error) {
	var e Engram
	var lastUsed, created, extraJSON, axiomsJoined string
	var parentID sql.NullInt64
	var proofID sql.NullString
	var isAxiom int

	if err := row.Scan(
		&e.ID, &e.Version, &e.Content, &e.Hash, &e.Cluster, &e.Metadata.Source, &e.Metadata.Domain,
		&e.Metadata.OriginalLength, &extraJSON, &parentID, &e.Salience, &e.QualityScore, &e.UsageCount,
		&e.SuccessfulApplicationCount, &lastUsed, &created, &e.CompressionRatio, &e.AccuracyPreserved,
		&e.ReuseContexts, &e.DecayScore, &isAxiom, &proofID, &e.ConsistencyScore,
		&axiomsJoined, &e.IntegrityScore,
	); err != nil {
		return nil, err
	}

	e.LastUsed, _ = time.Parse("2006-01-02 15:04:05", lastUsed)
	e.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", created)
	e.IsAxiomDerived = isAxiom != 0
	if parentID.Valid {
		id := parentID.Int64
		e.ParentID = &id
	}
	if proofID.Valid {
		p := proofID.String
		e.ProofID = &p
	}
	e.Metadata.Extra = decodeExtra(extraJSON)
	if axiomsJoined != "" {
		e.AxiomsUsed = strings.Split(axiomsJoined, ",")
	}
	return &e, nil
}

func encodeExtra(extra map[string]string) string {
	if len(extra) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strings.ReplaceAll(k, ":", "_"))
		b.WriteByte(':')
		b.WriteString(strings.ReplaceAll(extra[k], ":", "_"))
	}
	b.WriteByte('}')
	return b.String()
}

func decodeExtra(s string) map[string]string {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return nil
	}
	s = s[1 : len(s)-1]
	if s == "" {
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}

// AddOrUpdate upserts an engram. Duplicate detection by content hash is
// atomic: inserting identical content returns the existing engram (caller
// must check ID after the call if it cares) per the invariant in §3.
func (s *Store) AddOrUpdate(e *Engram) error {
	e.clampAll()
	if e.ID == 0 {
		existing, found, err := s.GetByContentHash(e.Hash)
		if err != nil {
			return newErr(KindTransientExternal, "AddOrUpdate", err)
		}
		if found {
			*e = *existing
			return nil
		}
		return s.insert(e)
	}
	return s.update(e)
}

func (s *Store) insert(e *Engram) error {
	var parentID any
	if e.ParentID != nil {
		parentID = *e.ParentID
	}
	var proofID any
	if e.ProofID != nil {
		proofID = *e.ProofID
	}
	res, err := s.db.Exec(`
		INSERT INTO engrams (version, content, content_hash, cluster, meta_source, meta_domain,
			meta_orig_len, meta_extra, parent_id, salience, quality_score, usage_count,
			successful_count, last_used, created_at, compression_ratio, accuracy_preserved,
			reuse_contexts, decay_score, is_axiom_derived, proof_id, consistency_score,
			axioms_used, integrity_score)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.Version, e.Content, e.Hash, e.Cluster, e.Metadata.Source, e.Metadata.Domain,
		e.Metadata.OriginalLength, encodeExtra(e.Metadata.Extra), parentID, e.Salience, e.QualityScore,
		e.UsageCount, e.SuccessfulApplicationCount, e.LastUsed.Format("2006-01-02 15:04:05"),
		e.CreatedAt.Format("2006-01-02 15:04:05"), e.CompressionRatio, e.AccuracyPreserved,
		e.ReuseContexts, e.DecayScore, boolToInt(e.IsAxiomDerived), proofID, e.ConsistencyScore,
		strings.Join(e.AxiomsUsed, ","), e.IntegrityScore,
	)
	if err != nil {
		return newErr(KindTransientExternal, "insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return newErr(KindTransientExternal, "insert", err)
	}
	e.ID = id
	return nil
}

func (s *Store) update(e *Engram) error {
	var parentID any
	if e.ParentID != nil {
		parentID = *e.ParentID
	}
	var proofID any
	if e.ProofID != nil {
		proofID = *e.ProofID
	}
	_, err := s.db.Exec(`
		UPDATE engrams SET version=?, content=?, content_hash=?, cluster=?, meta_source=?,
			meta_domain=?, meta_orig_len=?, meta_extra=?, parent_id=?, salience=?, quality_score=?,
			usage_count=?, successful_count=?, last_used=?, compression_ratio=?, accuracy_preserved=?,
			reuse_contexts=?, decay_score=?, is_axiom_derived=?, proof_id=?, consistency_score=?,
			axioms_used=?, integrity_score=?
		WHERE id=?`,
		e.Version, e.Content, e.Hash, e.Cluster, e.Metadata.Source, e.Metadata.Domain,
		e.Metadata.OriginalLength, encodeExtra(e.Metadata.Extra), parentID, e.Salience, e.QualityScore,
		e.UsageCount, e.SuccessfulApplicationCount, e.LastUsed.Format("2006-01-02 15:04:05"),
		e.CompressionRatio, e.AccuracyPreserved, e.ReuseContexts, e.DecayScore,
		boolToInt(e.IsAxiomDerived), proofID, e.ConsistencyScore, strings.Join(e.AxiomsUsed, ","),
		e.IntegrityScore, e.ID,
	)
	if err != nil {
		return newErr(KindTransientExternal, "update", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Get loads an engram by id.
func (s *Store) Get(id int64) (*Engram, bool, error) {
	row := s.db.QueryRow(`SELECT `+engramSelectCols+` FROM engrams WHERE id = ?`, id)
	e, err := scanEngram(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newErr(KindTransientExternal, "Get", err)
	}
	return e, true, nil
}

// GetByContentHash loads an engram by its content hash.
func (s *Store) GetByContentHash(hash string) (*Engram, bool, error) {
	row := s.db.QueryRow(`SELECT `+engramSelectCols+` FROM engrams WHERE content_hash = ?`, hash)
	e, err := scanEngram(row)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newErr(KindTransientExternal, "GetByContentHash", err)
	}
	return e, true, nil
}

// UpdateMetrics is the atomic fast-path that mutates only the hot numeric
// fields (usage counters, decay, quality, access time), avoiding a full
// content rewrite. It does not bump Version — it is not a content update.
func (s *Store) UpdateMetrics(e *Engram) error {
	e.clampAll()
	_, err := s.db.Exec(`
		UPDATE engrams SET salience=?, quality_score=?, usage_count=?, successful_count=?,
			last_used=?, decay_score=?, consistency_score=?, integrity_score=?, reuse_contexts=?
		WHERE id=?`,
		e.Salience, e.QualityScore, e.UsageCount, e.SuccessfulApplicationCount,
		e.LastUsed.Format("2006-01-02 15:04:05"), e.DecayScore, e.ConsistencyScore,
		e.IntegrityScore, e.ReuseContexts, e.ID,
	)
	if err != nil {
		return newErr(KindTransientExternal, "UpdateMetrics", err)
	}
	return nil
}

// Delete removes an engram. Links referencing it are removed by cascade.
func (s *Store) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM engrams WHERE id = ?`, id)
	if err != nil {
		return newErr(KindTransientExternal, "Delete", err)
	}
	return nil
}

// PruneOrphans deletes engrams below minQuality that are not the last
// member of a non-noise cluster (orphan protection, §3 Lifecycle).
func (s *Store) PruneOrphans(minQuality float64) (int, error) {
	rows, err := s.db.Query(`
		SELECT e.id, e.cluster, (
			SELECT COUNT(*) FROM engrams e2 WHERE e2.cluster = e.cluster AND e.cluster != ''
		) AS cluster_size
		FROM engrams e WHERE e.quality_score < ?`, minQuality)
	if err != nil {
		return 0, newErr(KindTransientExternal, "PruneOrphans", err)
	}
	var toDelete []int64
	for rows.Next() {
		var id int64
		var cluster string
		var clusterSize int
		if err := rows.Scan(&id, &cluster, &clusterSize); err != nil {
			rows.Close()
			return 0, newErr(KindTransientExternal, "PruneOrphans", err)
		}
		if cluster != "" && clusterSize <= 1 {
			continue // last member of a non-noise cluster: protected
		}
		toDelete = append(toDelete, id)
	}
	rows.Close()

	for _, id := range toDelete {
		s.db.Exec(`DELETE FROM engrams WHERE id = ?`, id)
	}
	return len(toDelete), nil
}

// IterBy returns engrams matching pred, ordered by orderBy, capped at limit.
// At the scale this core operates (single-tenant cognitive loop, not a
// multi-tenant SaaS store) loading candidates and filtering/sorting in Go
// is fast enough, matching the teacher's GetMemoriesWithVectors approach.
func (s *Store) IterBy(pred func(*Engram) bool, orderBy string, limit int) ([]*Engram, error) {
	order := "created_at DESC"
	switch orderBy {
	case "quality_asc":
		order = "quality_score ASC"
	case "quality_desc":
		order = "quality_score DESC"
	case "decay_desc":
		order = "decay_score DESC"
	}
	rows, err := s.db.Query(`SELECT ` + engramSelectCols + ` FROM engrams ORDER BY ` + order)
	if err != nil {
		return nil, newErr(KindTransientExternal, "IterBy", err)
	}
	defer rows.Close()

	var out []*Engram
	for rows.Next() {
		e, err := scanEngram(rows)
		if err != nil {
			return nil, newErr(KindTransientExternal, "IterBy", err)
		}
		if pred == nil || pred(e) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, rows.Err()
}

// AddLink upserts a directed link. Re-adding with a different weight
// replaces the weight and type in place (Design Notes §9 duplicate-link
// policy). Both endpoints must exist at write time (§3 invariant).
func (s *Store) AddLink(sourceID, targetID int64, linkType string, weight float64) error {
	if _, found, err := s.Get(sourceID); err != nil {
		return err
	} else if !found {
		return newErr(KindInvalidInput, "AddLink", fmt.Errorf("source %d not found", sourceID))
	}
	if _, found, err := s.Get(targetID); err != nil {
		return err
	} else if !found {
		return newErr(KindInvalidInput, "AddLink", fmt.Errorf("target %d not found", targetID))
	}
	_, err := s.db.Exec(`
		INSERT INTO links (source_id, target_id, type, weight) VALUES (?,?,?,?)
		ON CONFLICT(source_id, target_id, type) DO UPDATE SET weight = excluded.weight`,
		sourceID, targetID, linkType, weight,
	)
	if err != nil {
		return newErr(KindTransientExternal, "AddLink", err)
	}
	return nil
}

// Links returns all outgoing links from an engram.
func (s *Store) Links(engramID int64) ([]Link, error) {
	rows, err := s.db.Query(`SELECT source_id, target_id, type, weight FROM links WHERE source_id = ?`, engramID)
	if err != nil {
		return nil, newErr(KindTransientExternal, "Links", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.SourceID, &l.TargetID, &l.Type, &l.Weight); err != nil {
			return nil, newErr(KindTransientExternal, "Links", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// AppendVerification records a verification_history entry for an engram.
func (s *Store) AppendVerification(engramID int64, action, source string) error {
	var seq int
	s.db.QueryRow(`SELECT COALESCE(MAX(sequence), -1) + 1 FROM verification_history WHERE engram_id = ?`, engramID).Scan(&seq)
	_, err := s.db.Exec(`INSERT INTO verification_history (engram_id, sequence, action, source) VALUES (?,?,?,?)`,
		engramID, seq, action, source)
	if err != nil {
		return newErr(KindTransientExternal, "AppendVerification", err)
	}
	return nil
}

// SystemGet reads a key from the system key/value store.
func (s *Store) SystemGet(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM system_kv WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, newErr(KindTransientExternal, "SystemGet", err)
	}
	return v, true, nil
}

// SystemSet writes a key to the system key/value store.
func (s *Store) SystemSet(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO system_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return newErr(KindTransientExternal, "SystemSet", err)
	}
	return nil
}

// QualitySummary aggregates the counters the Heartbeat snapshots every tick.
func (s *Store) QualitySummary() (total int, avgQuality, avgConsistency float64, axiomDerived, lowConsistency int, err error) {
	row := s.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(AVG(quality_score), 0.0),
			COALESCE(AVG(consistency_score), 1.0),
			COALESCE(SUM(CASE WHEN is_axiom_derived = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN consistency_score < 0.5 THEN 1 ELSE 0 END), 0)
		FROM engrams`)
	if scanErr := row.Scan(&total, &avgQuality, &avgConsistency, &axiomDerived, &lowConsistency); scanErr != nil {
		return 0, 0, 0, 0, 0, newErr(KindTransientExternal, "QualitySummary", scanErr)
	}
	return total, avgQuality, avgConsistency, axiomDerived, lowConsistency, nil
}

// WeakEngrams returns up to limit engrams with the lowest consistency
// scores, used by the Heartbeat's metacognitive escalation rule.
func (s *Store) WeakEngrams(limit int) ([]*Engram, error) {
	rows, err := s.db.Query(`SELECT `+engramSelectCols+` FROM engrams ORDER BY consistency_score ASC LIMIT ?`, limit)
	if err != nil {
		return nil, newErr(KindTransientExternal, "WeakEngrams", err)
	}
	defer rows.Close()

	var out []*Engram
	for rows.Next() {
		e, err := scanEngram(rows)
		if err != nil {
			return nil, newErr(KindTransientExternal, "WeakEngrams", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close shuts down the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ EngramStore = (*Store)(nil)
