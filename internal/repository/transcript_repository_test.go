package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atcms-project/atcms-api/internal/models"
)

func newTranscriptMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTranscriptRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTranscriptMock(t)
	defer cleanup()
	repo := NewTranscriptRepository(db)

	mock.ExpectExec("INSERT INTO transcript_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))

	request := &models.TranscriptRequest{
		Matricule:       "CT2021001",
		StudentName:     "Jane Doe",
		Level:           "L400",
		Faculty:         "COT",
		Program:         "CSE",
		Semester:        models.TranscriptSemesterFirst,
		ModeOfTreatment: models.ModeFast,
		NumberOfCopies:  2,
		DeliveryMethod:  models.DeliveryCollect,
		Status:          models.TranscriptProcessing,
		CreatedBy:       "user-1",
	}
	request.ApplyModeOfTreatment()
	err := repo.Create(context.Background(), request)
	require.NoError(t, err)
	assert.NotEmpty(t, request.ID)
	assert.False(t, request.DateOfRequest.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptRepositoryListByMatricule(t *testing.T) {
	db, mock, cleanup := newTranscriptMock(t)
	defer cleanup()
	repo := NewTranscriptRepository(db)

	rows := sqlmock.NewRows([]string{"id", "matricule", "student_name", "status"}).
		AddRow("t-1", "CT2021001", "Jane Doe", "Processing").
		AddRow("t-2", "CT2021001", "Jane Doe", "Completed")
	mock.ExpectQuery("SELECT (.+) FROM transcript_requests WHERE matricule = \\$1 ORDER BY date_of_request DESC").
		WithArgs("CT2021001").
		WillReturnRows(rows)

	scope := models.Scope{Role: models.RoleAdmin, UserID: "admin-1"}
	requests, err := repo.ListByMatricule(context.Background(), scope, "CT2021001")
	require.NoError(t, err)
	assert.Len(t, requests, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptRepositoryListByMatriculeAppliesScope(t *testing.T) {
	db, mock, cleanup := newTranscriptMock(t)
	defer cleanup()
	repo := NewTranscriptRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM transcript_requests WHERE matricule = \\$1 AND program = \\$2 ORDER BY date_of_request DESC").
		WithArgs("CT2021001", "MATH").
		WillReturnRows(sqlmock.NewRows([]string{"id", "matricule", "student_name", "status"}))

	scope := models.Scope{Role: models.RoleHOD, UserID: "hod-2", Program: "MATH"}
	requests, err := repo.ListByMatricule(context.Background(), scope, "CT2021001")
	require.NoError(t, err)
	assert.Empty(t, requests)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptRepositoryComplete(t *testing.T) {
	db, mock, cleanup := newTranscriptMock(t)
	defer cleanup()
	repo := NewTranscriptRepository(db)

	completedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE transcript_requests\\s+SET status = \\$2, pdf_url = \\$3, completed_at = \\$4").
		WithArgs("t-1", models.TranscriptCompleted, "/transcripts/t-1.pdf", completedAt, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := models.StatusEntry{Status: string(models.TranscriptCompleted), UpdatedBy: "system", Timestamp: completedAt}
	notifications := []models.Notification{{Message: "Your Transcript is Ready", Recipient: "user-1", CreatedAt: completedAt}}
	err := repo.Complete(context.Background(), "t-1", "/transcripts/t-1.pdf", completedAt, entry, notifications)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranscriptRepositoryStatistics(t *testing.T) {
	db, mock, cleanup := newTranscriptMock(t)
	defer cleanup()
	repo := NewTranscriptRepository(db)

	mock.ExpectQuery("SELECT status AS label, COUNT\\(\\*\\) AS count FROM transcript_requests WHERE 1=1 GROUP BY status").
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).
			AddRow("Processing", 4).
			AddRow("Completed", 6))
	mock.ExpectQuery("SELECT mode_of_treatment AS label, COUNT\\(\\*\\) AS count FROM transcript_requests WHERE 1=1 GROUP BY mode_of_treatment").
		WillReturnRows(sqlmock.NewRows([]string{"label", "count"}).
			AddRow("Normal", 7).
			AddRow("Super Fast", 3))

	stats, err := repo.Statistics(context.Background(), models.Scope{Role: models.RoleAdmin, UserID: "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 4, stats.ByStatus["Processing"])
	assert.Equal(t, 3, stats.ByTier["Super Fast"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
