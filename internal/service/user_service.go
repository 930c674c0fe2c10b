package service

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/internal/models"
	appErrors "github.com/atcms-project/atcms-api/pkg/errors"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateStatus(ctx context.Context, id string, status models.UserStatus) error
}

// UserService handles account administration use-cases.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// List returns accounts and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return users, pagination, nil
}

// Get returns a single account.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// SetStatus activates or deactivates an account. Admins cannot deactivate
// themselves, to keep at least one operable admin session.
func (s *UserService) SetStatus(ctx context.Context, actorID, id string, status models.UserStatus) (*models.User, error) {
	if status != models.StatusActive && status != models.StatusInactive {
		return nil, appErrors.Validation("invalid status", appErrors.FieldError{Field: "status", Message: "status must be Active or Inactive"})
	}
	if actorID == id && status == models.StatusInactive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot deactivate your own account")
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	s.logger.Info("user status changed", zap.String("user_id", id), zap.String("status", string(status)))
	return s.Get(ctx, id)
}
