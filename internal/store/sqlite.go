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

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vinayprograms/taskforge/internal/events"
	"github.com/vinayprograms/taskforge/internal/work"
)

// SQLiteStore implements Store using SQLite. Lifecycle events are
// published to the bus (when one is attached) after each successful
// write; publishing is fire-and-forget.
type SQLiteStore struct {
	db  *sql.DB
	bus *events.Bus
}

// NewSQLiteStore creates a SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys
// and a busy timeout. bus may be nil.
func NewSQLiteStore(ctx context.Context, dbPath string, bus *events.Bus) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return initStore(ctx, db, bus)
}

// NewMemoryStore creates an in-memory store for testing. A shared cache
// lets multiple connections see the same database.
func NewMemoryStore(ctx context.Context, bus *events.Bus) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}

	return initStore(ctx, db, bus)
}

func initStore(ctx context.Context, db *sql.DB, bus *events.Bus) (*SQLiteStore, error) {
	// modernc.org/sqlite does not support _foreign_keys in the
	// connection string, so enable it via PRAGMA.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Single connection keeps every read-modify-write serialized.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, bus: bus}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS work_items (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		parent_id TEXT REFERENCES work_items(id) ON DELETE CASCADE,
		created_by TEXT NOT NULL DEFAULT '',
		assigned_to TEXT NOT NULL DEFAULT '',
		strategy TEXT NOT NULL DEFAULT '',
		result TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		started_at TEXT,
		completed_at TEXT,
		last_updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_items_parent ON work_items(parent_id);
	CREATE INDEX IF NOT EXISTS idx_work_items_status ON work_items(status);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts a new item with a store-generated id and status open.
// The parent existence check and the insert run in one transaction.
func (s *SQLiteStore) Create(ctx context.Context, spec work.Spec) (*work.Item, error) {
	if spec.Title == "" {
		return nil, fmt.Errorf("%w: title is required", work.ErrInvalidState)
	}

	now := time.Now().UTC()
	it := &work.Item{
		ID:            uuid.NewString(),
		Kind:          spec.Kind,
		Title:         spec.Title,
		Description:   spec.Description,
		Status:        work.StatusOpen,
		Priority:      spec.Priority,
		ParentID:      spec.ParentID,
		CreatedBy:     spec.CreatedBy,
		AssignedTo:    spec.AssignedTo,
		Tags:          append([]string(nil), spec.Tags...),
		Metadata:      map[string]interface{}{},
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if it.Priority == "" {
		it.Priority = work.PriorityMedium
	}
	for k, v := range spec.Metadata {
		it.Metadata[k] = v
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if it.ParentID != "" {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM work_items WHERE id = ?`, it.ParentID).Scan(&exists)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: parent %s", work.ErrNotFound, it.ParentID)
		}
		if err != nil {
			return nil, fmt.Errorf("checking parent: %w", err)
		}
	}

	tags, _ := json.Marshal(it.Tags)
	meta, _ := json.Marshal(it.Metadata)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO work_items (id, kind, title, description, status, priority, parent_id,
			created_by, assigned_to, strategy, result, error_message, tags, metadata,
			created_at, started_at, completed_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', '', ?, ?, ?, NULL, NULL, ?)
	`, it.ID, it.Kind, it.Title, it.Description, string(it.Status), string(it.Priority),
		nullable(it.ParentID), it.CreatedBy, it.AssignedTo, string(tags), string(meta),
		formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("inserting work item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.publish(events.ItemCreatedEvent{ID: it.ID, ParentID: it.ParentID, Title: it.Title, Timestamp: now})
	return it, nil
}

// Get loads an item by id, including its derived child id list.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*work.Item, error) {
	it, err := s.getTx(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	it.ChildIDs, err = s.childIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const itemColumns = `id, kind, title, description, status, priority, parent_id,
	created_by, assigned_to, strategy, result, error_message, tags, metadata,
	created_at, started_at, completed_at, last_updated_at`

func (s *SQLiteStore) getTx(ctx context.Context, q querier, id string) (*work.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM work_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", work.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading work item: %w", err)
	}
	return it, nil
}

// Update applies a partial merge in a single read-modify-write
// transaction. Status transition rules:
//   - unknown status values are rejected
//   - completed is terminal; any transition out of it is rejected
//   - entering in_progress stamps StartedAt once
//   - entering completed or failed stamps CompletedAt once
func (s *SQLiteStore) Update(ctx context.Context, id string, upd work.Update) (*work.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	it, err := s.getTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	oldStatus := it.Status

	if upd.Status != nil && *upd.Status != oldStatus {
		if !upd.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", work.ErrInvalidState, *upd.Status)
		}
		if oldStatus == work.StatusCompleted {
			return nil, fmt.Errorf("%w: %s is completed", work.ErrInvalidState, id)
		}
		it.Status = *upd.Status
	}

	if upd.Title != nil {
		it.Title = *upd.Title
	}
	if upd.Description != nil {
		it.Description = *upd.Description
	}
	if upd.Priority != nil {
		it.Priority = *upd.Priority
	}
	if upd.AssignedTo != nil {
		it.AssignedTo = *upd.AssignedTo
	}
	if upd.Strategy != nil {
		it.Strategy = *upd.Strategy
	}
	if upd.Result != nil {
		it.Result = *upd.Result
	}
	if upd.ErrorMessage != nil {
		it.ErrorMessage = *upd.ErrorMessage
	}
	if upd.Tags != nil {
		it.Tags = append([]string(nil), upd.Tags...)
	}
	if upd.Metadata != nil {
		if it.Metadata == nil {
			it.Metadata = map[string]interface{}{}
		}
		for k, v := range upd.Metadata {
			it.Metadata[k] = v
		}
	}

	now := time.Now().UTC()
	it.LastUpdatedAt = now

	// Timestamp stamping is idempotent: only the first transition into
	// a state sets its timestamp.
	if it.Status == work.StatusInProgress && it.StartedAt == nil {
		t := now
		it.StartedAt = &t
	}
	if it.Status.Terminal() && it.CompletedAt == nil {
		t := now
		it.CompletedAt = &t
	}

	tags, _ := json.Marshal(it.Tags)
	meta, _ := json.Marshal(it.Metadata)

	_, err = tx.ExecContext(ctx, `
		UPDATE work_items SET kind = ?, title = ?, description = ?, status = ?, priority = ?,
			assigned_to = ?, strategy = ?, result = ?, error_message = ?, tags = ?, metadata = ?,
			started_at = ?, completed_at = ?, last_updated_at = ?
		WHERE id = ?
	`, it.Kind, it.Title, it.Description, string(it.Status), string(it.Priority),
		it.AssignedTo, it.Strategy, it.Result, it.ErrorMessage, string(tags), string(meta),
		formatTimePtr(it.StartedAt), formatTimePtr(it.CompletedAt), formatTime(now), id)
	if err != nil {
		return nil, fmt.Errorf("updating work item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.publish(events.ItemUpdatedEvent{ID: id, OldStatus: oldStatus, NewStatus: it.Status, Timestamp: now})

	it.ChildIDs, err = s.childIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// Query returns items matching the filter in creation order.
func (s *SQLiteStore) Query(ctx context.Context, f work.Filter) ([]*work.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM work_items WHERE 1=1`
	var args []interface{}

	if len(f.Statuses) > 0 {
		query += ` AND status IN (?` + strings.Repeat(",?", len(f.Statuses)-1) + `)`
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.ParentID != nil {
		if *f.ParentID == "" {
			query += ` AND parent_id IS NULL`
		} else {
			query += ` AND parent_id = ?`
			args = append(args, *f.ParentID)
		}
	}
	if f.AssignedTo != "" {
		query += ` AND assigned_to = ?`
		args = append(args, f.AssignedTo)
	}
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying work items: %w", err)
	}
	defer rows.Close()

	var items []*work.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning work item: %w", err)
		}
		if f.Tag != "" && !it.HasTag(f.Tag) {
			continue
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, it := range items {
		it.ChildIDs, err = s.childIDs(ctx, it.ID)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Children returns the direct children of an item in creation order.
func (s *SQLiteStore) Children(ctx context.Context, parentID string) ([]*work.Item, error) {
	pid := parentID
	return s.Query(ctx, work.Filter{ParentID: &pid})
}

// Tree materializes the subtree rooted at rootID. A visited set guards
// against a corrupt cyclic parent graph.
func (s *SQLiteStore) Tree(ctx context.Context, rootID string) (*work.TreeNode, error) {
	root, err := s.Get(ctx, rootID)
	if err != nil {
		return nil, err
	}
	visited := map[string]bool{}
	return s.buildTree(ctx, root, 0, visited)
}

func (s *SQLiteStore) buildTree(ctx context.Context, it *work.Item, depth int, visited map[string]bool) (*work.TreeNode, error) {
	if visited[it.ID] {
		return nil, fmt.Errorf("%w: cycle detected at %s", work.ErrInvalidState, it.ID)
	}
	visited[it.ID] = true

	node := &work.TreeNode{Item: it, Depth: depth}
	children, err := s.Children(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if visited[c.ID] {
			continue
		}
		child, err := s.buildTree(ctx, c, depth+1, visited)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}

// Delete removes an item and its subtree. It is refused when the item
// or any descendant is in_progress or blocked.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	node, err := s.Tree(ctx, id)
	if err != nil {
		return err
	}

	var busy string
	node.Walk(func(n *work.TreeNode) {
		if busy != "" {
			return
		}
		if n.Item.Status == work.StatusInProgress || n.Item.Status == work.StatusBlocked {
			busy = n.Item.ID
		}
	})
	if busy != "" {
		return fmt.Errorf("%w: cannot delete, %s is in progress or blocked", work.ErrInvalidState, busy)
	}

	// ON DELETE CASCADE removes the subtree.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM work_items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting work item: %w", err)
	}

	s.publish(events.ItemDeletedEvent{ID: id, Timestamp: time.Now().UTC()})
	return nil
}

func (s *SQLiteStore) childIDs(ctx context.Context, parentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM work_items WHERE parent_id = ? ORDER BY rowid`, parentID)
	if err != nil {
		return nil, fmt.Errorf("loading child ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) publish(ev events.Event) {
	if s.bus != nil {
		s.bus.Publish(events.TopicItem, ev)
	}
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (*work.Item, error) {
	var (
		it                      work.Item
		status, priority        string
		parentID                sql.NullString
		tags, meta              string
		createdAt, lastUpdated  string
		startedAt, completedAt  sql.NullString
	)
	err := row.Scan(&it.ID, &it.Kind, &it.Title, &it.Description, &status, &priority, &parentID,
		&it.CreatedBy, &it.AssignedTo, &it.Strategy, &it.Result, &it.ErrorMessage, &tags, &meta,
		&createdAt, &startedAt, &completedAt, &lastUpdated)
	if err != nil {
		return nil, err
	}

	it.Status = work.Status(status)
	it.Priority = work.Priority(priority)
	it.ParentID = parentID.String

	if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
		it.Tags = nil
	}
	if err := json.Unmarshal([]byte(meta), &it.Metadata); err != nil {
		it.Metadata = map[string]interface{}{}
	}

	it.CreatedAt = parseTime(createdAt)
	it.LastUpdatedAt = parseTime(lastUpdated)
	if startedAt.Valid {
		t := parseTime(startedAt.String)
		it.StartedAt = &t
	}
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		it.CompletedAt = &t
	}
	return &it, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
