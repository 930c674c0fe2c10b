package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/internal/models"
)

type mockComplaintRepo struct {
	complaints map[string]*models.Complaint
	err        error
}

func (m *mockComplaintRepo) Create(ctx context.Context, complaint *models.Complaint) error {
	if m.err != nil {
		return m.err
	}
	if m.complaints == nil {
		m.complaints = make(map[string]*models.Complaint)
	}
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	stored := *complaint
	m.complaints[complaint.ID] = &stored
	return nil
}

func (m *mockComplaintRepo) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	if c, ok := m.complaints[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockComplaintRepo) List(ctx context.Context, scope models.Scope, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	var out []models.Complaint
	for _, c := range m.complaints {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockComplaintRepo) ListEscalatedOrAssigned(ctx context.Context, adminID string) ([]models.Complaint, error) {
	var out []models.Complaint
	for _, c := range m.complaints {
		if c.Status == models.ComplaintEscalated || (c.AssignedTo != nil && *c.AssignedTo == adminID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockComplaintRepo) UpdateStatus(ctx context.Context, id string, status models.ComplaintStatus, entry models.StatusEntry, notification models.Notification) error {
	c, ok := m.complaints[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = status
	c.StatusHistory = append(c.StatusHistory, entry)
	c.Notifications = append(c.Notifications, notification)
	return nil
}

func (m *mockComplaintRepo) Escalate(ctx context.Context, id, adminID string, entry models.StatusEntry, notifications []models.Notification, files []string) error {
	c, ok := m.complaints[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = models.ComplaintEscalated
	c.AssignedTo = &adminID
	c.StatusHistory = append(c.StatusHistory, entry)
	c.Notifications = append(c.Notifications, notifications...)
	c.Files = append(c.Files, files...)
	return nil
}

func (m *mockComplaintRepo) Resolve(ctx context.Context, id string, entry models.StatusEntry, notifications []models.Notification, files []string) error {
	c, ok := m.complaints[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Status = models.ComplaintResolved
	c.StatusHistory = append(c.StatusHistory, entry)
	c.Notifications = append(c.Notifications, notifications...)
	c.Files = append(c.Files, files...)
	return nil
}

func (m *mockComplaintRepo) AppendComment(ctx context.Context, id string, comment models.Comment) error {
	c, ok := m.complaints[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Comments = append(c.Comments, comment)
	return nil
}

func (m *mockComplaintRepo) AppendFiles(ctx context.Context, id string, files []string) error {
	c, ok := m.complaints[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.Files = append(c.Files, files...)
	return nil
}

func (m *mockComplaintRepo) BulkResolve(ctx context.Context, ids []string, entry models.StatusEntry, notification models.Notification) (int, error) {
	count := 0
	for _, id := range ids {
		if c, ok := m.complaints[id]; ok {
			c.Status = models.ComplaintResolved
			c.StatusHistory = append(c.StatusHistory, entry)
			c.Notifications = append(c.Notifications, notification)
			count++
		}
	}
	return count, nil
}

func (m *mockComplaintRepo) Analytics(ctx context.Context, scope models.Scope) (*models.ComplaintAnalytics, error) {
	analytics := &models.ComplaintAnalytics{StatusCounts: map[string]int{}}
	for _, c := range m.complaints {
		analytics.TotalComplaints++
		analytics.StatusCounts[string(c.Status)]++
	}
	return analytics, nil
}

type mockAdminLookup struct {
	admin *models.User
}

func (m *mockAdminLookup) FindFirstAdmin(ctx context.Context) (*models.User, error) {
	if m.admin == nil {
		return nil, sql.ErrNoRows
	}
	return m.admin, nil
}

type mockUploadStore struct {
	deleted []string
}

func (m *mockUploadStore) DeleteAll(filenames []string) error {
	m.deleted = append(m.deleted, filenames...)
	return nil
}

func studentActor() Actor {
	return Actor{ID: "user-1", Name: "Jane Doe", Matricule: "CT2021001", Role: models.RoleStudent, Faculty: "COT", Program: "CSE"}
}

func hodActor() Actor {
	return Actor{ID: "hod-1", Name: "Dr. Smith", Role: models.RoleHOD, Faculty: "COT", Program: "CSE"}
}

func validCreateComplaint() CreateComplaintRequest {
	return CreateComplaintRequest{
		ComplaintType: models.ComplaintTypeCAMark,
		CourseCode:    "CSE401",
		Subject:       "Missing CA mark",
		Body:          "My CA mark for CSE401 is missing",
		Recipient:     models.RecipientHOD,
		Semester:      models.SemesterFirst,
		Level:         "400",
	}
}

func newComplaintService(repo *mockComplaintRepo, admins *mockAdminLookup, uploads *mockUploadStore) *ComplaintService {
	return NewComplaintService(repo, admins, uploads, nil, 0, validator.New(), zap.NewNop())
}

func TestComplaintServiceCreate(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newComplaintService(repo, &mockAdminLookup{}, &mockUploadStore{})

	complaint, err := svc.Create(context.Background(), studentActor(), validCreateComplaint())
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintPending, complaint.Status)
	assert.Equal(t, "CSE", complaint.Program)
	assert.Equal(t, "user-1", complaint.CreatedBy)
	assert.Len(t, complaint.StatusHistory, 1)
	assert.Len(t, complaint.Notifications, 1)
}

func TestComplaintServiceCreateRejectsStaff(t *testing.T) {
	svc := newComplaintService(&mockComplaintRepo{}, &mockAdminLookup{}, &mockUploadStore{})

	_, err := svc.Create(context.Background(), hodActor(), validCreateComplaint())
	require.Error(t, err)
}

func TestComplaintServiceCreateRejectsBadLevel(t *testing.T) {
	svc := newComplaintService(&mockComplaintRepo{}, &mockAdminLookup{}, &mockUploadStore{})

	req := validCreateComplaint()
	req.Level = "800"
	_, err := svc.Create(context.Background(), studentActor(), req)
	require.Error(t, err)
}

func TestComplaintServiceEscalationScenario(t *testing.T) {
	repo := &mockComplaintRepo{}
	admins := &mockAdminLookup{admin: &models.User{ID: "admin-1", Name: "System Admin", Role: models.RoleAdmin}}
	svc := newComplaintService(repo, admins, &mockUploadStore{})

	created, err := svc.Create(context.Background(), studentActor(), validCreateComplaint())
	require.NoError(t, err)

	escalated, err := svc.Escalate(context.Background(), hodActor(), created.ID, EscalateComplaintRequest{Instructions: "needs HOD review"})
	require.NoError(t, err)

	assert.Equal(t, models.ComplaintEscalated, escalated.Status)
	require.NotNil(t, escalated.AssignedTo)
	assert.Equal(t, "admin-1", *escalated.AssignedTo)
	assert.Len(t, escalated.StatusHistory, 2)
	assert.Len(t, escalated.Notifications, 3)
	assert.Equal(t, "needs HOD review", escalated.StatusHistory[1].Comment)
}

func TestComplaintServiceEscalateWithoutAdminCleansUploads(t *testing.T) {
	repo := &mockComplaintRepo{}
	uploads := &mockUploadStore{}
	svc := newComplaintService(repo, &mockAdminLookup{}, uploads)

	created, err := svc.Create(context.Background(), studentActor(), validCreateComplaint())
	require.NoError(t, err)

	_, err = svc.Escalate(context.Background(), hodActor(), created.ID, EscalateComplaintRequest{
		Instructions: "needs review",
		Files:        []string{"evidence.pdf"},
	})
	require.Error(t, err)
	assert.Contains(t, uploads.deleted, "evidence.pdf")
	assert.Equal(t, models.ComplaintPending, repo.complaints[created.ID].Status)
}

func TestComplaintServiceUpdateStatusAppendsHistory(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newComplaintService(repo, &mockAdminLookup{}, &mockUploadStore{})

	created, err := svc.Create(context.Background(), studentActor(), validCreateComplaint())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), hodActor(), created.ID, UpdateComplaintStatusRequest{Status: models.ComplaintInProgress, Comment: "looking into it"})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintInProgress, updated.Status)
	assert.Len(t, updated.StatusHistory, 2)

	resolved, err := svc.UpdateStatus(context.Background(), hodActor(), created.ID, UpdateComplaintStatusRequest{Status: models.ComplaintResolved})
	require.NoError(t, err)
	assert.Len(t, resolved.StatusHistory, 3)
}

func TestComplaintServiceStudentCannotSeeOthers(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newComplaintService(repo, &mockAdminLookup{}, &mockUploadStore{})

	created, err := svc.Create(context.Background(), studentActor(), validCreateComplaint())
	require.NoError(t, err)

	other := Actor{ID: "user-2", Role: models.RoleStudent, Program: "CSE"}
	_, err = svc.Get(context.Background(), other, created.ID)
	require.Error(t, err)
}

func TestComplaintServiceBulkResolveScenario(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newComplaintService(repo, &mockAdminLookup{}, &mockUploadStore{})

	var ids []string
	for i := 0; i < 3; i++ {
		req := validCreateComplaint()
		created, err := svc.Create(context.Background(), studentActor(), req)
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}

	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}
	resolved, err := svc.BulkResolve(context.Background(), admin, BulkResolveRequest{IDs: ids, Resolution: "closed"})
	require.NoError(t, err)
	assert.Equal(t, 3, resolved)
	for _, id := range ids {
		c := repo.complaints[id]
		assert.Equal(t, models.ComplaintResolved, c.Status)
		assert.Len(t, c.StatusHistory, 2)
		assert.Len(t, c.Notifications, 2)
	}
}

func TestComplaintServiceBulkResolveSkipsUnknownIDs(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newComplaintService(repo, &mockAdminLookup{}, &mockUploadStore{})

	created, err := svc.Create(context.Background(), studentActor(), validCreateComplaint())
	require.NoError(t, err)

	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}
	resolved, err := svc.BulkResolve(context.Background(), admin, BulkResolveRequest{IDs: []string{created.ID, "missing"}, Resolution: "closed"})
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
}

func TestComplaintServiceAddComment(t *testing.T) {
	repo := &mockComplaintRepo{}
	svc := newComplaintService(repo, &mockAdminLookup{}, &mockUploadStore{})

	created, err := svc.Create(context.Background(), studentActor(), validCreateComplaint())
	require.NoError(t, err)

	updated, err := svc.AddComment(context.Background(), studentActor(), created.ID, "any update on this?")
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, "user-1", updated.Comments[0].Author)
	assert.WithinDuration(t, time.Now(), updated.Comments[0].Timestamp, time.Minute)
}

func TestComplaintServiceAnalyticsRequiresStaff(t *testing.T) {
	svc := newComplaintService(&mockComplaintRepo{}, &mockAdminLookup{}, &mockUploadStore{})

	_, err := svc.Analytics(context.Background(), studentActor())
	require.Error(t, err)
}
