package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atcms-project/atcms-api/internal/models"
)

// FacultyRepository manages persistence for faculty reference data.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository constructs a FacultyRepository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// List returns every faculty ordered by name.
func (r *FacultyRepository) List(ctx context.Context) ([]models.Faculty, error) {
	const query = `SELECT id, name, code, programs FROM faculties ORDER BY name ASC`
	var faculties []models.Faculty
	if err := r.db.SelectContext(ctx, &faculties, query); err != nil {
		return nil, fmt.Errorf("list faculties: %w", err)
	}
	return faculties, nil
}

// FindByCode fetches a faculty by its code.
func (r *FacultyRepository) FindByCode(ctx context.Context, code string) (*models.Faculty, error) {
	const query = `SELECT id, name, code, programs FROM faculties WHERE code = $1`
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, query, code); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// Upsert inserts a faculty or refreshes its name and programs when the code
// already exists. Seeding relies on this being idempotent.
func (r *FacultyRepository) Upsert(ctx context.Context, faculty *models.Faculty) error {
	if faculty.ID == "" {
		faculty.ID = uuid.NewString()
	}
	const query = `INSERT INTO faculties (id, name, code, programs, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $5)
        ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, programs = EXCLUDED.programs, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, faculty.ID, faculty.Name, faculty.Code, faculty.Programs, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert faculty %s: %w", faculty.Code, err)
	}
	return nil
}
