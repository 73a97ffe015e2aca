// Package project is the read-side client for the persistent project store.
// The preview service never writes through it; files are authored elsewhere.
package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrProjectNotFound is returned when the project id has no row at all,
// as opposed to an existing project that simply has no files yet.
var ErrProjectNotFound = errors.New("project not found")

// Project represents a stored project
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File represents a single source file belonging to a project
type File struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reader is the store capability the preview pipeline consumes.
type Reader interface {
	GetProject(ctx context.Context, projectID uuid.UUID) (*Project, error)
	ListFiles(ctx context.Context, projectID uuid.UUID) ([]File, error)
}

// Store manages project persistence reads
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a new project store
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetProject fetches a project by id
func (s *Store) GetProject(ctx context.Context, projectID uuid.UUID) (*Project, error) {
	var p Project
	err := s.db.QueryRow(ctx, `
		SELECT id, name, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// ListFiles fetches all files for a project. An empty slice is a valid
// result: a freshly created project may not have any files yet.
func (s *Store) ListFiles(ctx context.Context, projectID uuid.UUID) ([]File, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, project_id, path, content, created_at, updated_at
		FROM project_files
		WHERE project_id = $1
		ORDER BY path
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Content, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read project files: %w", err)
	}

	return files, nil
}
