package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/internal/models"
	"github.com/atcms-project/atcms-api/pkg/config"
	"github.com/atcms-project/atcms-api/pkg/mailer"
	"github.com/atcms-project/atcms-api/pkg/payment"
	"github.com/atcms-project/atcms-api/pkg/pdf"
)

type mockTranscriptRepo struct {
	requests map[string]*models.TranscriptRequest
}

func (m *mockTranscriptRepo) Create(ctx context.Context, request *models.TranscriptRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]*models.TranscriptRequest)
	}
	if request.ID == "" {
		request.ID = "generated"
	}
	stored := *request
	m.requests[request.ID] = &stored
	return nil
}

func (m *mockTranscriptRepo) FindByID(ctx context.Context, id string) (*models.TranscriptRequest, error) {
	if r, ok := m.requests[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTranscriptRepo) List(ctx context.Context, scope models.Scope, filter models.TranscriptFilter) ([]models.TranscriptRequest, int, error) {
	var out []models.TranscriptRequest
	for _, r := range m.requests {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockTranscriptRepo) ListByMatricule(ctx context.Context, scope models.Scope, matricule string) ([]models.TranscriptRequest, error) {
	var out []models.TranscriptRequest
	for _, r := range m.requests {
		if r.Matricule != matricule || !scopeAllows(scope, r.Program, r.CreatedBy) {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

// scopeAllows mirrors the SQL scope predicate for in-memory fixtures.
func scopeAllows(scope models.Scope, program, createdBy string) bool {
	switch scope.Role {
	case models.RoleStudent:
		return createdBy == scope.UserID
	case models.RoleHOD:
		return program == scope.Program
	case models.RoleCoordinator:
		for _, p := range scope.Programs {
			if program == p {
				return true
			}
		}
		return false
	}
	return true
}

func (m *mockTranscriptRepo) Complete(ctx context.Context, id, pdfURL string, completedAt time.Time, entry models.StatusEntry, notifications []models.Notification) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = models.TranscriptCompleted
	r.PdfURL = &pdfURL
	r.CompletedAt = &completedAt
	r.StatusHistory = append(r.StatusHistory, entry)
	r.Notifications = append(r.Notifications, notifications...)
	return nil
}

func (m *mockTranscriptRepo) UpdateStatus(ctx context.Context, id string, status models.TranscriptStatus, entry models.StatusEntry) error {
	r, ok := m.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Status = status
	r.StatusHistory = append(r.StatusHistory, entry)
	return nil
}

func (m *mockTranscriptRepo) Statistics(ctx context.Context, scope models.Scope) (*models.TranscriptStatistics, error) {
	stats := &models.TranscriptStatistics{ByStatus: map[string]int{}, ByTier: map[string]int{}}
	for _, r := range m.requests {
		stats.Total++
		stats.ByStatus[string(r.Status)]++
		stats.ByTier[string(r.ModeOfTreatment)]++
	}
	return stats, nil
}

type mockCharger struct {
	err     error
	lastReq payment.ChargeRequest
	calls   int
}

func (m *mockCharger) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error) {
	m.calls++
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &payment.ChargeResult{Success: true, TransactionID: "txn-1", Status: "SUCCESSFUL"}, nil
}

type mockRenderer struct {
	err   error
	calls int
}

func (m *mockRenderer) Render(data pdf.TranscriptData) ([]byte, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF-1.4 stub"), nil
}

type mockArtifacts struct {
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func (m *mockArtifacts) Save(filename string, data []byte) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockArtifacts) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

func (m *mockArtifacts) Path(filename string) string {
	return "/srv/transcripts/" + filename
}

type mockEmails struct {
	sent []mailer.Message
}

func (m *mockEmails) QueueEmail(msg mailer.Message) {
	m.sent = append(m.sent, msg)
}

type mockUserLookup struct {
	users map[string]*models.User
}

func (m *mockUserLookup) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type transcriptFixture struct {
	repo      *mockTranscriptRepo
	charger   *mockCharger
	renderer  *mockRenderer
	artifacts *mockArtifacts
	emails    *mockEmails
	svc       *TranscriptService
}

func newTranscriptFixture() *transcriptFixture {
	repo := &mockTranscriptRepo{}
	charger := &mockCharger{}
	renderer := &mockRenderer{}
	artifacts := &mockArtifacts{}
	emails := &mockEmails{}
	users := &mockUserLookup{users: map[string]*models.User{
		"user-1": {ID: "user-1", Name: "Jane Doe", Email: "jane@ub.edu"},
	}}
	svc := NewTranscriptService(repo, users, charger, renderer, artifacts, emails, nil,
		config.TranscriptConfig{StorageDir: "./transcripts", BaseURL: "/transcripts"}, 0, validator.New(), zap.NewNop())
	return &transcriptFixture{repo: repo, charger: charger, renderer: renderer, artifacts: artifacts, emails: emails, svc: svc}
}

func validCreateTranscript() CreateTranscriptRequest {
	return CreateTranscriptRequest{
		Level:           "L400",
		Semester:        models.TranscriptSemesterFirst,
		ModeOfTreatment: models.ModeFast,
		NumberOfCopies:  1,
		DeliveryMethod:  models.DeliveryCollect,
		Provider:        "MTN Mobile Money",
		PhoneNumber:     "+237670000001",
	}
}

func TestTranscriptServiceCreateDerivesFee(t *testing.T) {
	fx := newTranscriptFixture()

	cases := []struct {
		mode   models.ModeOfTreatment
		amount int
	}{
		{models.ModeNormal, 1000},
		{models.ModeFast, 2000},
		{models.ModeSuperFast, 3000},
	}
	for _, tc := range cases {
		req := validCreateTranscript()
		req.ModeOfTreatment = tc.mode
		created, err := fx.svc.Create(context.Background(), studentActor(), req)
		require.NoError(t, err, string(tc.mode))
		assert.Equal(t, tc.amount, created.Amount, string(tc.mode))
		assert.Equal(t, tc.mode, created.ProcessingTime, string(tc.mode))
	}
}

func TestTranscriptServiceCreateVerification(t *testing.T) {
	fx := newTranscriptFixture()

	req := validCreateTranscript()
	req.ModeOfTreatment = models.ModeVerification
	req.VerifierEmail = "registrar@other.edu"
	created, err := fx.svc.Create(context.Background(), studentActor(), req)
	require.NoError(t, err)
	assert.Equal(t, 10000, created.Amount)
	assert.Equal(t, models.ModeNormal, created.ProcessingTime)
	assert.Equal(t, models.DeliveryEmail, created.DeliveryMethod)
	require.NotNil(t, created.VerifierEmail)
	assert.Equal(t, "registrar@other.edu", *created.VerifierEmail)
}

func TestTranscriptServiceCreateVerificationRequiresVerifier(t *testing.T) {
	fx := newTranscriptFixture()

	req := validCreateTranscript()
	req.ModeOfTreatment = models.ModeVerification
	req.VerifierEmail = ""
	_, err := fx.svc.Create(context.Background(), studentActor(), req)
	require.Error(t, err)
	assert.Zero(t, fx.charger.calls)
}

func TestTranscriptServiceCreatePaymentDeclineLeavesNoState(t *testing.T) {
	fx := newTranscriptFixture()
	fx.charger.err = errors.New("charge declined")

	_, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.Error(t, err)
	assert.Empty(t, fx.repo.requests)
}

func TestTranscriptServiceCreateChargesDerivedAmount(t *testing.T) {
	fx := newTranscriptFixture()

	req := validCreateTranscript()
	req.ModeOfTreatment = models.ModeSuperFast
	_, err := fx.svc.Create(context.Background(), studentActor(), req)
	require.NoError(t, err)
	assert.Equal(t, 3000, fx.charger.lastReq.Amount)
	assert.Equal(t, payment.ProviderMTN, fx.charger.lastReq.Provider)
}

func TestTranscriptServiceCreateRejectsStaff(t *testing.T) {
	fx := newTranscriptFixture()

	_, err := fx.svc.Create(context.Background(), hodActor(), validCreateTranscript())
	require.Error(t, err)
	assert.Zero(t, fx.charger.calls)
}

func TestTranscriptServiceCompleteGeneratesPDFAndEmails(t *testing.T) {
	fx := newTranscriptFixture()

	created, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.NoError(t, err)

	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}
	completed, err := fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptCompleted})
	require.NoError(t, err)

	assert.Equal(t, models.TranscriptCompleted, completed.Status)
	require.NotNil(t, completed.PdfURL)
	assert.Equal(t, "/transcripts/"+created.ID+".pdf", *completed.PdfURL)
	assert.NotNil(t, completed.CompletedAt)
	assert.Len(t, completed.StatusHistory, 2)
	assert.Contains(t, fx.artifacts.saved, created.ID+".pdf")

	require.Len(t, fx.emails.sent, 1)
	assert.Equal(t, "Your Transcript is Ready", fx.emails.sent[0].Subject)
	assert.Equal(t, "jane@ub.edu", fx.emails.sent[0].ToEmail)
}

func TestTranscriptServiceCompleteVerificationEmailsVerifier(t *testing.T) {
	fx := newTranscriptFixture()

	req := validCreateTranscript()
	req.ModeOfTreatment = models.ModeVerification
	req.VerifierEmail = "registrar@other.edu"
	created, err := fx.svc.Create(context.Background(), studentActor(), req)
	require.NoError(t, err)

	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}
	completed, err := fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptCompleted})
	require.NoError(t, err)

	// One entry for the owner, one for the verifier.
	assert.Len(t, completed.Notifications, 3)
	require.Len(t, fx.emails.sent, 2)
	assert.Equal(t, "Transcript Verification Request", fx.emails.sent[1].Subject)
	assert.Equal(t, "registrar@other.edu", fx.emails.sent[1].ToEmail)
}

func TestTranscriptServiceCompleteRenderFailureKeepsProcessing(t *testing.T) {
	fx := newTranscriptFixture()

	created, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.NoError(t, err)

	fx.renderer.err = errors.New("render failed")
	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}
	_, err = fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptCompleted})
	require.Error(t, err)

	current := fx.repo.requests[created.ID]
	assert.Equal(t, models.TranscriptProcessing, current.Status)
	assert.Nil(t, current.PdfURL)
	assert.Empty(t, fx.emails.sent)
}

func TestTranscriptServiceUpdateStatusRequiresAdmin(t *testing.T) {
	fx := newTranscriptFixture()

	created, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), hodActor(), created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptFailed})
	require.Error(t, err)
}

func TestTranscriptServiceDownloadRequiresCompletion(t *testing.T) {
	fx := newTranscriptFixture()

	created, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.NoError(t, err)

	_, err = fx.svc.Download(context.Background(), studentActor(), created.ID)
	require.Error(t, err)

	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}
	_, err = fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptCompleted})
	require.NoError(t, err)

	path, err := fx.svc.Download(context.Background(), studentActor(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "/srv/transcripts/"+created.ID+".pdf", path)
}

func TestTranscriptServiceUpdateStatusRejectsTerminalStates(t *testing.T) {
	fx := newTranscriptFixture()
	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}

	created, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.NoError(t, err)
	_, err = fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptCompleted})
	require.NoError(t, err)

	// A delivered request cannot be reopened.
	_, err = fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptProcessing})
	require.Error(t, err)
	current := fx.repo.requests[created.ID]
	assert.Equal(t, models.TranscriptCompleted, current.Status)
	assert.NotNil(t, current.PdfURL)
	assert.Len(t, current.StatusHistory, 2)

	// Nor re-completed.
	renders := fx.renderer.calls
	_, err = fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptCompleted})
	require.Error(t, err)
	assert.Equal(t, renders, fx.renderer.calls)
}

func TestTranscriptServiceUpdateStatusFailedIsTerminal(t *testing.T) {
	fx := newTranscriptFixture()
	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}

	created, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.NoError(t, err)
	_, err = fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptFailed})
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptCompleted})
	require.Error(t, err)
	assert.Zero(t, fx.renderer.calls)
	assert.Empty(t, fx.emails.sent)
	assert.Equal(t, models.TranscriptFailed, fx.repo.requests[created.ID].Status)
}

func TestTranscriptServiceUpdateStatusRejectsSameStatus(t *testing.T) {
	fx := newTranscriptFixture()
	admin := Actor{ID: "admin-1", Role: models.RoleAdmin}

	created, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.NoError(t, err)

	_, err = fx.svc.UpdateStatus(context.Background(), admin, created.ID, UpdateTranscriptStatusRequest{Status: models.TranscriptProcessing})
	require.Error(t, err)
	assert.Len(t, fx.repo.requests[created.ID].StatusHistory, 1)
}

func TestTranscriptServiceListByMatriculeScoped(t *testing.T) {
	fx := newTranscriptFixture()

	created, err := fx.svc.Create(context.Background(), studentActor(), validCreateTranscript())
	require.NoError(t, err)

	inScope, err := fx.svc.ListByMatricule(context.Background(), hodActor(), created.Matricule)
	require.NoError(t, err)
	assert.Len(t, inScope, 1)

	otherHOD := Actor{ID: "hod-2", Role: models.RoleHOD, Faculty: "SCI", Program: "MATH"}
	outOfScope, err := fx.svc.ListByMatricule(context.Background(), otherHOD, created.Matricule)
	require.NoError(t, err)
	assert.Empty(t, outOfScope)
}

func TestTranscriptServiceStatisticsRequiresStaff(t *testing.T) {
	fx := newTranscriptFixture()

	_, err := fx.svc.Statistics(context.Background(), studentActor())
	require.Error(t, err)

	stats, err := fx.svc.Statistics(context.Background(), Actor{ID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.NotNil(t, stats)
}
