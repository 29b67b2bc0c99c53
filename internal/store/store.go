package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateQuestion is returned when an assigned work lists a question more than once.
var ErrDuplicateQuestion = errors.New("duplicate question")

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type Store struct {
	db     *sql.DB
	driver Driver
}

// New opens the database and ensures the schema exists. An empty dsn
// selects the driver's default location.
func New(driver Driver, dsn string) (*Store, error) {
	var drvName string
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		drvName = "sqlite"
		if dsn == "" {
			dsn = "trainer.db"
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
		}
	case DriverPostgres:
		drvName = "pgx"
		if dsn == "" {
			dsn = "postgres://localhost:5432/trainer?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// A single connection keeps ":memory:" databases shared and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Driver returns the backend in use.
func (s *Store) Driver() Driver {
	return s.driver
}

func (s *Store) migrate() error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	_, err := s.db.Exec(schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS learners (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	level INTEGER NOT NULL DEFAULT 1,
	text TEXT NOT NULL,
	answer TEXT NOT NULL,
	full_mark INTEGER NOT NULL,
	tags_json TEXT NOT NULL,
	rotate BOOLEAN NOT NULL DEFAULT 0,
	self_check BOOLEAN NOT NULL DEFAULT 0,
	question_image BOOLEAN NOT NULL DEFAULT 0,
	answer_image BOOLEAN NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	volume TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	tags_json TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS assigned_works (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	question_ids_json TEXT NOT NULL,
	deleted BOOLEAN NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS works (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id INTEGER NOT NULL REFERENCES learners(id),
	mode TEXT NOT NULL,
	topic_id INTEGER REFERENCES topics(id),
	assigned_work_id INTEGER REFERENCES assigned_works(id),
	started_at INTEGER NOT NULL,
	ended_at INTEGER,
	share_token TEXT
);
CREATE INDEX IF NOT EXISTS works_owner_idx ON works(owner_id);
CREATE UNIQUE INDEX IF NOT EXISTS works_share_token_idx ON works(share_token);

CREATE TABLE IF NOT EXISTS work_questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	work_id INTEGER NOT NULL REFERENCES works(id) ON DELETE CASCADE,
	question_id INTEGER NOT NULL REFERENCES questions(id),
	position INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'waiting',
	answer TEXT NOT NULL DEFAULT '',
	mark INTEGER,
	started_at INTEGER,
	ended_at INTEGER,
	UNIQUE (work_id, position)
);

CREATE TABLE IF NOT EXISTS mark_conversion (
	raw INTEGER PRIMARY KEY,
	scaled INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS learners (
	id BIGSERIAL PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	id BIGSERIAL PRIMARY KEY,
	kind TEXT NOT NULL,
	level INTEGER NOT NULL DEFAULT 1,
	text TEXT NOT NULL,
	answer TEXT NOT NULL,
	full_mark INTEGER NOT NULL,
	tags_json TEXT NOT NULL,
	rotate BOOLEAN NOT NULL DEFAULT FALSE,
	self_check BOOLEAN NOT NULL DEFAULT FALSE,
	question_image BOOLEAN NOT NULL DEFAULT FALSE,
	answer_image BOOLEAN NOT NULL DEFAULT FALSE,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
	id BIGSERIAL PRIMARY KEY,
	volume TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	tags_json TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS assigned_works (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	question_ids_json TEXT NOT NULL,
	deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS works (
	id BIGSERIAL PRIMARY KEY,
	owner_id BIGINT NOT NULL REFERENCES learners(id),
	mode TEXT NOT NULL,
	topic_id BIGINT REFERENCES topics(id),
	assigned_work_id BIGINT REFERENCES assigned_works(id),
	started_at BIGINT NOT NULL,
	ended_at BIGINT,
	share_token TEXT
);
CREATE INDEX IF NOT EXISTS works_owner_idx ON works(owner_id);
CREATE UNIQUE INDEX IF NOT EXISTS works_share_token_idx ON works(share_token);

CREATE TABLE IF NOT EXISTS work_questions (
	id BIGSERIAL PRIMARY KEY,
	work_id BIGINT NOT NULL REFERENCES works(id) ON DELETE CASCADE,
	question_id BIGINT NOT NULL REFERENCES questions(id),
	position INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'waiting',
	answer TEXT NOT NULL DEFAULT '',
	mark INTEGER,
	started_at BIGINT,
	ended_at BIGINT,
	UNIQUE (work_id, position)
);

CREATE TABLE IF NOT EXISTS mark_conversion (
	raw INTEGER PRIMARY KEY,
	scaled INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Timestamps are stored as unix milliseconds so both backends scan them the same way.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// expectOne maps an update that touched no row to ErrNotFound.
func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// inList returns "$1, $2, ..." placeholders for ids and the matching args.
func inList(ids []int64) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	return strings.Join(ph, ", "), args
}
