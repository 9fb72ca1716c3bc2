package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/pdxmph/todo-tui/internal/tasks"
)

// ErrNoDatabase is returned by Open when the file has not been created yet
var ErrNoDatabase = errors.New("database not found")

// DB wraps the database connection
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection.
// driver is "sqlite3" (mattn, cgo) or "sqlite" (modernc, pure Go).
func Open(driver, dbPath string) (*DB, error) {
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w at %s\nRun 'todo init' to create it", ErrNoDatabase, dbPath)
	}

	conn, err := sql.Open(driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps pragmas in effect and serializes our own writes.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}

	if err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}

// Path returns the database file location
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// ListTodos returns all todos ordered by creation time
func (db *DB) ListTodos() ([]tasks.Document, error) {
	query := `
		SELECT id, title, due_date, is_done, created_at
		FROM todos
		ORDER BY created_at, id
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying todos: %w", err)
	}
	defer rows.Close()

	var docs []tasks.Document
	for rows.Next() {
		var t Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.DueDate, &t.IsDone, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning todo: %w", err)
		}
		docs = append(docs, t.Document())
	}

	return docs, rows.Err()
}

// GetTodo retrieves a single todo by ID
func (db *DB) GetTodo(id string) (*tasks.Document, error) {
	query := `SELECT id, title, due_date, is_done, created_at FROM todos WHERE id = ?`

	var t Todo
	err := db.conn.QueryRow(query, id).Scan(&t.ID, &t.Title, &t.DueDate, &t.IsDone, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tasks.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting todo %s: %w", id, err)
	}

	doc := t.Document()
	return &doc, nil
}

// AddTodo inserts a todo; the caller chooses the id
func (db *DB) AddTodo(doc tasks.Document) error {
	query := `
		INSERT INTO todos (id, title, due_date, is_done, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.conn.Exec(query,
		doc.ID,
		doc.Title,
		doc.DueDate.Value(),
		doc.IsDone,
		doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting todo: %w", err)
	}

	return nil
}

// UpdateTodo applies a patch. It returns tasks.ErrNotFound if no row has the id.
func (db *DB) UpdateTodo(id string, p tasks.Patch) error {
	var sets []string
	var args []interface{}

	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *p.DueDate)
	}
	if p.IsDone != nil {
		sets = append(sets, "is_done = ?")
		args = append(args, *p.IsDone)
	}

	if len(sets) == 0 {
		_, err := db.GetTodo(id)
		return err
	}

	query := `UPDATE todos SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)

	result, err := db.conn.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("updating todo: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if n == 0 {
		return tasks.ErrNotFound
	}

	return nil
}

// DeleteTodo permanently deletes a todo. Missing ids are not an error.
func (db *DB) DeleteTodo(id string) error {
	_, err := db.conn.Exec(`DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting todo: %w", err)
	}
	return nil
}
