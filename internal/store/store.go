// Package store persists validation sessions: the idea, every turn result,
// staged reflections and the score-evolution ledger. It runs on SQLite by
// default and on MySQL when configured.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Iron-Ham/ideaforge/internal/errors"
	"github.com/Iron-Ham/ideaforge/internal/persona"
	"github.com/Iron-Ham/ideaforge/internal/reflection"
	"github.com/Iron-Ham/ideaforge/internal/scorecard"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "ideaforge.db"

// Config selects and locates the database.
type Config struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string
	// DSN is the MySQL data source name.
	DSN string
	// DataDir holds the SQLite file.
	DataDir string
}

// Session is one idea under validation.
type Session struct {
	ID              string            `json:"id"`
	IdeaText        string            `json:"ideaText"`
	ValidationLevel string            `json:"validationLevel"`
	Personas        []persona.Persona `json:"personas"`
	CompactSummary  string            `json:"compactSummary,omitempty"`
	TurnCount       int               `json:"turnCount"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// NewSession holds the input for CreateSession. An empty ID is generated.
type NewSession struct {
	ID              string
	IdeaText        string
	ValidationLevel string
	Personas        []persona.Persona
}

// TurnRecord is one persisted turn. Result is the encoded turn result as
// sent to the client; Scorecard is kept alongside so callers can resume
// without decoding it.
type TurnRecord struct {
	SessionID string                     `json:"sessionId"`
	Turn      int                        `json:"turn"`
	TurnID    string                     `json:"turnId"`
	Scorecard scorecard.Scorecard        `json:"scorecard"`
	Result    json.RawMessage            `json:"result"`
	Evolution []scorecard.EvolutionEntry `json:"evolution,omitempty"`
	CreatedAt time.Time                  `json:"createdAt"`
}

// Store is a session store backed by database/sql.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open connects to the database described by cfg and runs migrations.
func Open(cfg Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}

	var (
		db  *sql.DB
		d   dialect
		err error
	)
	switch driver {
	case "sqlite":
		db, err = openSQLite(cfg.DataDir)
		d = sqliteDialect
	case "mysql":
		db, err = openMySQL(cfg.DSN)
		d = mysqlDialect
	default:
		return nil, errors.NewValidationError("store driver must be sqlite or mysql").
			WithField("store.driver").WithValue(cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, dialect: d, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError("migrate", err)
	}
	return s, nil
}

func openSQLite(dataDir string) (*sql.DB, error) {
	if dataDir == "" {
		return nil, errors.NewValidationError("sqlite store needs a data directory").WithField("store.data_dir")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, errors.NewStoreError("create data dir", err)
	}
	db, err := openDB("sqlite", filepath.Join(dataDir, DatabaseFile))
	if err != nil {
		return nil, errors.NewStoreError("open sqlite", err)
	}
	// one writer at a time; WAL lets readers proceed
	db.SetMaxOpenConns(1)
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, errors.NewStoreError(fmt.Sprintf("pragma %q", p), err)
		}
	}
	return db, nil
}

func openMySQL(dsn string) (*sql.DB, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil || dsn == "" {
		return nil, errors.NewValidationError("invalid mysql dsn").WithField("store.dsn").WithCause(err)
	}
	if mc.DBName == "" {
		return nil, errors.NewValidationError("mysql dsn names no database").WithField("store.dsn")
	}
	db, err := openDB("mysql", mc.FormatDSN())
	if err != nil {
		return nil, errors.NewStoreError("open mysql", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError("ping mysql", err)
	}
	return db, nil
}

// Driver reports the database driver in use.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// stampLayout has a fixed width so stored timestamps sort as strings.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) stamp() string {
	return s.now().UTC().Format(stampLayout)
}

func parseStamp(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func notFound(id string) error {
	return errors.NewNotFoundError("session", id).WithCause(errors.ErrSessionNotFound)
}

// ─── Sessions ────────────────────────────────────────────────────────────────

// CreateSession stores a new session and returns it.
func (s *Store) CreateSession(ctx context.Context, in NewSession) (*Session, error) {
	if strings.TrimSpace(in.IdeaText) == "" {
		return nil, errors.NewValidationError("idea text is required").WithField("ideaText")
	}
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	personas, err := json.Marshal(nonNil(in.Personas))
	if err != nil {
		return nil, errors.NewStoreError("encode personas", err)
	}
	now := s.stamp()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, idea_text, validation_level, personas, compact_summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?)`,
		id, in.IdeaText, in.ValidationLevel, string(personas), now, now)
	if err != nil {
		return nil, errors.NewStoreError("create session", err).WithSessionID(id)
	}
	return s.GetSession(ctx, id)
}

const sessionColumns = `s.id, s.idea_text, s.validation_level, s.personas, s.compact_summary, s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id)`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		sess             Session
		personas         string
		created, updated string
	)
	if err := row.Scan(&sess.ID, &sess.IdeaText, &sess.ValidationLevel, &personas,
		&sess.CompactSummary, &created, &updated, &sess.TurnCount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(personas), &sess.Personas); err != nil {
		return nil, fmt.Errorf("decode personas: %w", err)
	}
	sess.CreatedAt = parseStamp(created)
	sess.UpdatedAt = parseStamp(updated)
	return &sess, nil
}

// GetSession returns the session with id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, errors.NewStoreError("get session", err).WithSessionID(id)
	}
	return sess, nil
}

// ListSessions returns sessions, most recently updated first. limit <= 0
// means no limit.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions s ORDER BY s.updated_at DESC, s.id`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.NewStoreError("list sessions", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, errors.NewStoreError("list sessions", err)
		}
		out = append(out, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list sessions", err)
	}
	return out, nil
}

// SetCompactSummary stores the summary of reflections that fell out of the
// episodic window.
func (s *Store) SetCompactSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET compact_summary = ?, updated_at = ? WHERE id = ?`,
		summary, s.stamp(), id)
	if err != nil {
		return errors.NewStoreError("set compact summary", err).WithSessionID(id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	return nil
}

// ─── Turns ───────────────────────────────────────────────────────────────────

// SaveTurn stores a turn result and its evolution entries in one
// transaction. A turn is written once: saving a turn number the session
// already has fails with errors.ErrTurnExists and leaves the stored turn
// untouched, so an overlapping submit can never lower a persisted score.
func (s *Store) SaveTurn(ctx context.Context, rec TurnRecord) error {
	if rec.Turn < 1 {
		return errors.NewValidationError("turn number must be positive").WithField("turn").WithValue(rec.Turn)
	}
	if _, err := s.GetSession(ctx, rec.SessionID); err != nil {
		return err
	}
	card, err := json.Marshal(rec.Scorecard)
	if err != nil {
		return errors.NewStoreError("encode scorecard", err).WithSessionID(rec.SessionID)
	}
	result := rec.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("begin save turn", err).WithSessionID(rec.SessionID)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE session_id = ? AND turn = ?`, rec.SessionID, rec.Turn).
		Scan(&existing); err != nil {
		return errors.NewStoreError("check turn", err).WithSessionID(rec.SessionID)
	}
	if existing > 0 {
		return errors.NewStoreError(fmt.Sprintf("save turn %d", rec.Turn), errors.ErrTurnExists).
			WithSessionID(rec.SessionID)
	}

	now := s.stamp()
	// the primary key still rejects a concurrent insert that passed the check
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO turns (session_id, turn, turn_id, scorecard, result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.Turn, rec.TurnID, string(card), string(result), now); err != nil {
		return errors.NewStoreError("save turn", err).WithSessionID(rec.SessionID)
	}
	for _, e := range rec.Evolution {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO evolution (session_id, turn, category, from_score, to_score, delta, reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.SessionID, rec.Turn, string(e.Category), e.From, e.To, e.Delta, e.Reason); err != nil {
			return errors.NewStoreError("save evolution", err).WithSessionID(rec.SessionID)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, now, rec.SessionID); err != nil {
		return errors.NewStoreError("touch session", err).WithSessionID(rec.SessionID)
	}
	if err := tx.Commit(); err != nil {
		return errors.NewStoreError("commit save turn", err).WithSessionID(rec.SessionID)
	}
	return nil
}

// LatestTurn returns the highest-numbered turn of a session, or nil when the
// session has none.
func (s *Store) LatestTurn(ctx context.Context, sessionID string) (*TurnRecord, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	var (
		rec              TurnRecord
		card, result, at string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, turn, turn_id, scorecard, result, created_at
		 FROM turns WHERE session_id = ? ORDER BY turn DESC LIMIT 1`, sessionID).
		Scan(&rec.SessionID, &rec.Turn, &rec.TurnID, &card, &result, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("latest turn", err).WithSessionID(sessionID)
	}
	if err := json.Unmarshal([]byte(card), &rec.Scorecard); err != nil {
		return nil, errors.NewStoreError("decode scorecard", err).WithSessionID(sessionID)
	}
	rec.Result = json.RawMessage(result)
	rec.CreatedAt = parseStamp(at)

	all, err := s.ListEvolution(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, e := range all {
		if e.Turn == rec.Turn {
			rec.Evolution = append(rec.Evolution, e)
		}
	}
	return &rec, nil
}

// ListEvolution returns every evolution entry of a session in turn order.
func (s *Store) ListEvolution(ctx context.Context, sessionID string) ([]scorecard.EvolutionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn, category, from_score, to_score, delta, reason
		 FROM evolution WHERE session_id = ? ORDER BY turn, id`, sessionID)
	if err != nil {
		return nil, errors.NewStoreError("list evolution", err).WithSessionID(sessionID)
	}
	defer rows.Close()

	var out []scorecard.EvolutionEntry
	for rows.Next() {
		var (
			e   scorecard.EvolutionEntry
			cat string
		)
		if err := rows.Scan(&e.Turn, &cat, &e.From, &e.To, &e.Delta, &e.Reason); err != nil {
			return nil, errors.NewStoreError("list evolution", err).WithSessionID(sessionID)
		}
		e.Category = scorecard.Category(cat)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list evolution", err).WithSessionID(sessionID)
	}
	return out, nil
}

// ─── Reflections ─────────────────────────────────────────────────────────────

// AddReflection stages an accepted piece of advice.
func (s *Store) AddReflection(ctx context.Context, sessionID string, r reflection.StagedReflection) error {
	if strings.TrimSpace(r.ReflectedText) == "" {
		return errors.NewValidationError("reflected text is required").WithField("reflectedText")
	}
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}
	cats, err := json.Marshal(nonNil(r.LinkedCategories))
	if err != nil {
		return errors.NewStoreError("encode categories", err).WithSessionID(sessionID)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reflections (session_id, turn, persona, text, categories, impact_score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sessionID, r.Turn, string(r.Persona), r.ReflectedText, string(cats), r.ImpactScore, s.stamp())
	if err != nil {
		return errors.NewStoreError("add reflection", err).WithSessionID(sessionID)
	}
	return nil
}

// ListReflections returns the staged reflections of a session, oldest first.
func (s *Store) ListReflections(ctx context.Context, sessionID string) ([]reflection.StagedReflection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn, persona, text, categories, impact_score
		 FROM reflections WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, errors.NewStoreError("list reflections", err).WithSessionID(sessionID)
	}
	defer rows.Close()

	var out []reflection.StagedReflection
	for rows.Next() {
		var (
			r       reflection.StagedReflection
			p, cats string
		)
		if err := rows.Scan(&r.Turn, &p, &r.ReflectedText, &cats, &r.ImpactScore); err != nil {
			return nil, errors.NewStoreError("list reflections", err).WithSessionID(sessionID)
		}
		r.Persona = persona.Persona(p)
		if err := json.Unmarshal([]byte(cats), &r.LinkedCategories); err != nil {
			return nil, errors.NewStoreError("decode categories", err).WithSessionID(sessionID)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list reflections", err).WithSessionID(sessionID)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
