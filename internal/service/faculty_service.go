package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/internal/models"
	appErrors "github.com/atcms-project/atcms-api/pkg/errors"
)

type facultyRepository interface {
	List(ctx context.Context) ([]models.Faculty, error)
	FindByCode(ctx context.Context, code string) (*models.Faculty, error)
}

// FacultyService exposes faculty reference data.
type FacultyService struct {
	repo   facultyRepository
	logger *zap.Logger
}

// NewFacultyService constructs the faculty service.
func NewFacultyService(repo facultyRepository, logger *zap.Logger) *FacultyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FacultyService{repo: repo, logger: logger}
}

// List returns every faculty with its programs.
func (s *FacultyService) List(ctx context.Context) ([]models.Faculty, error) {
	faculties, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculties")
	}
	return faculties, nil
}

// Get returns a faculty by code.
func (s *FacultyService) Get(ctx context.Context, code string) (*models.Faculty, error) {
	faculty, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	return faculty, nil
}
