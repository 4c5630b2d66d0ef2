// Package db opens the workspace SQLite database.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	workspaceDirName = ".hrflow"
	dbFileName       = "hrflow.db"
)

type Config struct {
	Workspace string
}

// EnsureWorkspace creates the workspace directory if missing and returns it.
func EnsureWorkspace(workspace string) (string, error) {
	dir := workspaceDir(workspace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// Open opens the workspace database with foreign keys on and a busy timeout
// so concurrent CLI invocations queue instead of failing on SQLITE_BUSY.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", Path(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids lock churn.
	conn.SetMaxOpenConns(1)
	return conn, nil
}

// Path returns the database file path for a workspace.
func Path(workspace string) string {
	return filepath.Join(workspaceDir(workspace), dbFileName)
}

func workspaceDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, workspaceDirName)
}
