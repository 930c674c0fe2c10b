package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atcms-project/atcms-api/internal/models"
)

func newUserMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUserRepositoryFindByIdentifier(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "matricule", "role", "status", "password_hash"}).
		AddRow("user-1", "Jane Doe", "jane@ub.edu", "CT2021001", "student", "Active", "hash")
	mock.ExpectQuery("SELECT (.+) FROM users WHERE LOWER\\(email\\) = LOWER\\(\\$1\\) OR matricule = \\$1 LIMIT 1").
		WithArgs("CT2021001").
		WillReturnRows(rows)

	user, err := repo.FindByIdentifier(context.Background(), "CT2021001")
	require.NoError(t, err)
	assert.Equal(t, "jane@ub.edu", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryExistsByEmailOrMatricule(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT 1 FROM users WHERE LOWER\\(email\\) = LOWER\\(\\$1\\) OR matricule = \\$2 LIMIT 1").
		WithArgs("jane@ub.edu", "CT2021001").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByEmailOrMatricule(context.Background(), "jane@ub.edu", "CT2021001")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindFirstAdmin(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "email", "role", "status"}).
		AddRow("admin-1", "System Admin", "admin@ub.edu", "admin", "Active")
	mock.ExpectQuery("SELECT (.+) FROM users WHERE role = \\$1 AND status = \\$2 ORDER BY created_at ASC LIMIT 1").
		WithArgs(models.RoleAdmin, models.StatusActive).
		WillReturnRows(rows)

	admin, err := repo.FindFirstAdmin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin-1", admin.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindFirstAdminMissing(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM users WHERE role = \\$1 AND status = \\$2").
		WithArgs(models.RoleAdmin, models.StatusActive).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindFirstAdmin(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	matricule := "CT2021001"
	faculty := "COT"
	program := "CSE"
	user := &models.User{
		Name:         "Jane Doe",
		Email:        "jane@ub.edu",
		Matricule:    &matricule,
		Role:         models.RoleStudent,
		Faculty:      &faculty,
		Program:      &program,
		PasswordHash: "hash",
	}
	err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, models.StatusActive, user.Status)
	assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Minute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newUserMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("UPDATE users SET status = \\$2").
		WithArgs("missing", models.StatusInactive, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.StatusInactive)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
