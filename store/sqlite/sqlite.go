// Package sqlite keeps a history of exported topology graphs in an
// SQLite database so earlier snapshots can be listed and rendered
// again.
//
// Mutating methods take a lock.Held: the database is shared by every
// nsview invocation on the host and writers are serialised by the
// writer lock rather than by SQLite's own locking.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	nsview "github.com/frobware/go-nsview"
	"github.com/frobware/go-nsview/lock"
	"github.com/frobware/go-nsview/topology"
)

//go:embed schema.sql
var schemaSQL string

// Snapshot is one recorded export. List leaves Graph nil.
type Snapshot struct {
	ID         int64           `json:"id"`
	TakenAt    time.Time       `json:"taken_at"`
	Source     string          `json:"source"`
	Namespaces int             `json:"namespaces"`
	Nodes      int             `json:"nodes"`
	Edges      int             `json:"edges"`
	Unresolved int             `json:"unresolved"`
	Graph      *topology.Graph `json:"graph,omitempty"`
}

// NewSnapshot summarises g for storage.
func NewSnapshot(g *topology.Graph, source string, takenAt time.Time) Snapshot {
	return Snapshot{
		TakenAt:    takenAt.UTC(),
		Source:     source,
		Namespaces: len(g.Clusters),
		Nodes:      g.NodeCount(),
		Edges:      len(g.Edges),
		Unresolved: len(g.Unresolved),
		Graph:      g,
	}
}

// Store is the snapshot history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	stmtInsert *sql.Stmt
	stmtGet    *sql.Stmt
	stmtList   *sql.Stmt
	stmtDelete *sql.Stmt
}

// New opens (creating if needed) the database at path.
func New(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	return open(ctx, dsn(path, [][2]string{{"journal_mode", "WAL"}, {"busy_timeout", "5000"}}), path, logger)
}

// NewInMemory opens a private in-memory database.
func NewInMemory(ctx context.Context, logger *slog.Logger) (*Store, error) {
	return open(ctx, dsn(":memory:", nil), ":memory:", logger)
}

func open(ctx context.Context, source, name string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store", "db", name)

	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := s.prepare(ctx); err != nil {
		s.Close()
		return nil, err
	}

	logger.Debug("opened database")
	return s, nil
}

func (s *Store) prepare(ctx context.Context) error {
	var err error
	prep := func(query string) *sql.Stmt {
		if err != nil {
			return nil
		}
		var stmt *sql.Stmt
		stmt, err = s.db.PrepareContext(ctx, query)
		if err != nil {
			err = fmt.Errorf("prepare %q: %w", query, err)
		}
		return stmt
	}

	s.stmtInsert = prep(`INSERT INTO snapshots (taken_at, source, namespaces, nodes, edges, unresolved, graph)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	s.stmtGet = prep(`SELECT id, taken_at, source, namespaces, nodes, edges, unresolved, graph
		FROM snapshots WHERE id = ?`)
	s.stmtList = prep(`SELECT id, taken_at, source, namespaces, nodes, edges, unresolved
		FROM snapshots ORDER BY id`)
	s.stmtDelete = prep(`DELETE FROM snapshots WHERE id = ?`)
	return err
}

// Close releases the prepared statements and the database.
func (s *Store) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtInsert, s.stmtGet, s.stmtList, s.stmtDelete} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

// Save records snap and returns its id.
func (s *Store) Save(ctx context.Context, _ lock.Held, snap Snapshot) (int64, error) {
	if snap.Graph == nil {
		return 0, errors.New("save snapshot: no graph")
	}
	graph, err := json.Marshal(snap.Graph)
	if err != nil {
		return 0, fmt.Errorf("marshal graph: %w", err)
	}

	res, err := s.stmtInsert.ExecContext(ctx,
		snap.TakenAt.UTC().Format(time.RFC3339Nano), snap.Source,
		snap.Namespaces, snap.Nodes, snap.Edges, snap.Unresolved, string(graph))
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}

	s.logger.Info("recorded snapshot", "id", id, "nodes", snap.Nodes, "edges", snap.Edges)
	return id, nil
}

// Get returns the snapshot with its graph.
func (s *Store) Get(ctx context.Context, id int64) (Snapshot, error) {
	var (
		snap    Snapshot
		takenAt string
		graph   string
	)
	err := s.stmtGet.QueryRowContext(ctx, id).Scan(
		&snap.ID, &takenAt, &snap.Source,
		&snap.Namespaces, &snap.Nodes, &snap.Edges, &snap.Unresolved, &graph)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, &nsview.NotFoundError{Kind: "snapshot", Key: strconv.FormatInt(id, 10), Scope: "history"}
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot %d: %w", id, err)
	}

	if snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %d: taken_at: %w", id, err)
	}
	snap.Graph = &topology.Graph{}
	if err := json.Unmarshal([]byte(graph), snap.Graph); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot %d: graph: %w", id, err)
	}
	return snap, nil
}

// List returns every snapshot, oldest first, without graphs.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var (
			snap    Snapshot
			takenAt string
		)
		if err := rows.Scan(&snap.ID, &takenAt, &snap.Source,
			&snap.Namespaces, &snap.Nodes, &snap.Edges, &snap.Unresolved); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.TakenAt, err = time.Parse(time.RFC3339Nano, takenAt); err != nil {
			return nil, fmt.Errorf("snapshot %d: taken_at: %w", snap.ID, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Delete removes a snapshot.
func (s *Store) Delete(ctx context.Context, _ lock.Held, id int64) error {
	res, err := s.stmtDelete.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	if n == 0 {
		return &nsview.NotFoundError{Kind: "snapshot", Key: strconv.FormatInt(id, 10), Scope: "history"}
	}
	s.logger.Info("deleted snapshot", "id", id)
	return nil
}
