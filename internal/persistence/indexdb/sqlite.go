package indexdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteIndex holds the agent roster and an append-only audit log of layout
// writes. Audit rows go through a single writer goroutine; roster saves ride
// the same queue so the connection is never contended.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqRoster
	reqCatalog
)

type req struct {
	kind reqKind

	audit   AuditEntry
	roster  []int
	catalog catalogRow
	done    chan error
}

type catalogRow struct {
	Name   string
	Digest string
	JSON   string
}

// AuditEntry is one write to (or change observed on) the shared layout.
type AuditEntry struct {
	Seq       int64     `json:"seq,omitempty"`
	At        time.Time `json:"at"`
	Source    string    `json:"source"`
	Action    string    `json:"action"`
	Digest    string    `json:"digest"`
	Cols      int       `json:"cols"`
	Rows      int       `json:"rows"`
	Furniture int       `json:"furniture"`
	Backup    string    `json:"backup,omitempty"`
}

const (
	SourceLocal    = "local"
	SourceExternal = "external"
)

type Stats struct {
	DropAuditTotal uint64
	QueueDepth     int
	QueueCapacity  int
}

var errClosed = errors.New("index closed")

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := newSQLiteIndex(db)
	s.start()
	return s, nil
}

func newSQLiteIndex(db *sql.DB) *SQLiteIndex {
	return &SQLiteIndex{
		db: db,
		ch: make(chan req, 4096),
	}
}

func (s *SQLiteIndex) start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS roster (
			agent_id INTEGER PRIMARY KEY
		);`,
		`CREATE TABLE IF NOT EXISTS layout_audits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			source TEXT NOT NULL,
			action TEXT NOT NULL,
			digest TEXT NOT NULL,
			cols INTEGER NOT NULL,
			rows INTEGER NOT NULL,
			furniture INTEGER NOT NULL,
			backup TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_layout_audits_action ON layout_audits(action, seq);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteAudit queues an audit row. It never blocks; rows are dropped (and
// counted) when the writer falls behind.
func (s *SQLiteIndex) WriteAudit(entry AuditEntry) {
	if s == nil || s.closed.Load() {
		return
	}
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
}

// UpsertCatalog records the catalog the office is running with.
func (s *SQLiteIndex) UpsertCatalog(ctx context.Context, name, digest string, raw []byte) error {
	return s.send(ctx, req{kind: reqCatalog, catalog: catalogRow{Name: name, Digest: digest, JSON: string(raw)}})
}

func (s *SQLiteIndex) SaveRoster(ctx context.Context, ids []int) error {
	cp := append([]int(nil), ids...)
	return s.send(ctx, req{kind: reqRoster, roster: cp})
}

func (s *SQLiteIndex) send(ctx context.Context, r req) error {
	if s == nil || s.closed.Load() {
		return errClosed
	}
	r.done = make(chan error, 1)
	select {
	case s.ch <- r:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) LoadRoster(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT agent_id FROM roster ORDER BY agent_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Audits returns the most recent audit rows, newest first.
func (s *SQLiteIndex) Audits(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq,at,source,action,digest,cols,rows,furniture,COALESCE(backup,'') FROM layout_audits ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEntry
	for rows.Next() {
		var (
			e  AuditEntry
			at string
		)
		if err := rows.Scan(&e.Seq, &at, &e.Source, &e.Action, &e.Digest, &e.Cols, &e.Rows, &e.Furniture, &e.Backup); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropAuditTotal: s.dropAudit.Load(),
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT INTO layout_audits(at,source,action,digest,cols,rows,furniture,backup) VALUES(?,?,?,?,?,?,?,?)`)
	upsertCatalog, _ := s.db.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	defer func() {
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if upsertCatalog != nil {
			_ = upsertCatalog.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		pendingAudits int
		lastCommit    = time.Now()
		commitEvery   = 256
		commitMaxWait = 500 * time.Millisecond
	)

	begin := func() error {
		if tx != nil {
			return nil
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
		return nil
	}
	commit := func() error {
		if tx == nil {
			return nil
		}
		err := tx.Commit()
		if err != nil {
			s.dropAudit.Add(uint64(pendingAudits))
		}
		tx = nil
		opCount = 0
		pendingAudits = 0
		lastCommit = time.Now()
		return err
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.dropAudit.Add(uint64(pendingAudits))
		tx = nil
		opCount = 0
		pendingAudits = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		// Synchronous requests get their own transaction so their failure
		// cannot roll back batched audit rows.
		if r.done != nil {
			_ = commit()
		}
		if err := begin(); err != nil {
			reply(r, err)
			continue
		}
		var err error
		switch r.kind {
		case reqAudit:
			a := r.audit
			if insertAudit == nil {
				break
			}
			_, err = tx.Stmt(insertAudit).Exec(
				a.At.UTC().Format(time.RFC3339Nano),
				a.Source,
				a.Action,
				a.Digest,
				a.Cols,
				a.Rows,
				a.Furniture,
				a.Backup,
			)
		case reqRoster:
			err = replaceRoster(tx, r.roster)
		case reqCatalog:
			if upsertCatalog == nil {
				err = fmt.Errorf("catalog statement unavailable")
				break
			}
			c := r.catalog
			_, err = tx.Stmt(upsertCatalog).Exec(c.Name, c.Digest, c.JSON, time.Now().UTC().Format(time.RFC3339Nano))
		}
		if err != nil {
			if r.kind == reqAudit {
				pendingAudits++
			}
			rollback()
			reply(r, err)
			continue
		}
		opCount++
		if r.kind == reqAudit {
			pendingAudits++
		}

		// Synchronous callers wait for durability; audits batch until the
		// queue drains or the batch grows.
		if r.done != nil || len(s.ch) == 0 || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			err = commit()
		}
		reply(r, err)
	}

	_ = commit()
}

func replaceRoster(tx *sql.Tx, ids []int) error {
	if _, err := tx.Exec(`DELETE FROM roster`); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO roster(agent_id) VALUES(?)`, id); err != nil {
			return err
		}
	}
	return nil
}

func reply(r req, err error) {
	if r.done != nil {
		r.done <- err
	}
}
