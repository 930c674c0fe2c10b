package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/internal/models"
	"github.com/atcms-project/atcms-api/pkg/config"
	appErrors "github.com/atcms-project/atcms-api/pkg/errors"
	"github.com/atcms-project/atcms-api/pkg/mailer"
	"github.com/atcms-project/atcms-api/pkg/payment"
	"github.com/atcms-project/atcms-api/pkg/pdf"
)

type transcriptRepository interface {
	Create(ctx context.Context, request *models.TranscriptRequest) error
	FindByID(ctx context.Context, id string) (*models.TranscriptRequest, error)
	List(ctx context.Context, scope models.Scope, filter models.TranscriptFilter) ([]models.TranscriptRequest, int, error)
	ListByMatricule(ctx context.Context, scope models.Scope, matricule string) ([]models.TranscriptRequest, error)
	Complete(ctx context.Context, id, pdfURL string, completedAt time.Time, entry models.StatusEntry, notifications []models.Notification) error
	UpdateStatus(ctx context.Context, id string, status models.TranscriptStatus, entry models.StatusEntry) error
	Statistics(ctx context.Context, scope models.Scope) (*models.TranscriptStatistics, error)
}

type paymentCharger interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, error)
}

type transcriptRenderer interface {
	Render(data pdf.TranscriptData) ([]byte, error)
}

type artifactStore interface {
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
	Path(filename string) string
}

type emailDispatcher interface {
	QueueEmail(msg mailer.Message)
}

type transcriptUserLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CreateTranscriptRequest is the payload for ordering a transcript.
type CreateTranscriptRequest struct {
	Level           string                    `json:"level" validate:"required"`
	Semester        models.TranscriptSemester `json:"semester" validate:"required"`
	ModeOfTreatment models.ModeOfTreatment    `json:"modeOfTreatment" validate:"required"`
	NumberOfCopies  int                       `json:"numberOfCopies" validate:"required,min=1,max=10"`
	DeliveryMethod  models.DeliveryMethod     `json:"deliveryMethod"`
	VerifierEmail   string                    `json:"verifierEmail" validate:"omitempty,email"`
	Provider        string                    `json:"provider" validate:"required"`
	PhoneNumber     string                    `json:"phoneNumber" validate:"required"`
}

// UpdateTranscriptStatusRequest transitions a transcript request.
type UpdateTranscriptStatusRequest struct {
	Status  models.TranscriptStatus `json:"status" validate:"required"`
	Comment string                  `json:"comment"`
}

const transcriptStatsKeyPrefix = "statistics:transcripts"

// TranscriptService drives the paid transcript workflow: synchronous payment
// on creation, PDF generation on completion, email fan-out on both.
type TranscriptService struct {
	repo      transcriptRepository
	users     transcriptUserLookup
	payments  paymentCharger
	renderer  transcriptRenderer
	artifacts artifactStore
	emails    emailDispatcher
	cache     analyticsCache
	metrics   *MetricsService
	cfg       config.TranscriptConfig
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTranscriptService constructs the transcript service.
func NewTranscriptService(
	repo transcriptRepository,
	users transcriptUserLookup,
	payments paymentCharger,
	renderer transcriptRenderer,
	artifacts artifactStore,
	emails emailDispatcher,
	cache analyticsCache,
	cfg config.TranscriptConfig,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *TranscriptService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &TranscriptService{
		repo:      repo,
		users:     users,
		payments:  payments,
		renderer:  renderer,
		artifacts: artifacts,
		emails:    emails,
		cache:     cache,
		cfg:       cfg,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger,
	}
}

// WithMetrics attaches workflow instrumentation. A nil metrics service is a
// no-op, so tests can skip it.
func (s *TranscriptService) WithMetrics(m *MetricsService) *TranscriptService {
	s.metrics = m
	return s
}

// Create orders a transcript. The charge runs synchronously before anything
// is persisted: a declined or failed payment leaves no partial state behind.
func (s *TranscriptService) Create(ctx context.Context, actor Actor, req CreateTranscriptRequest) (*models.TranscriptRequest, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may request transcripts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transcript payload")
	}
	if details := validateTranscriptFields(req); len(details) > 0 {
		return nil, appErrors.Validation("invalid transcript payload", details...)
	}

	provider, err := payment.NormalizeProvider(req.Provider)
	if err != nil {
		return nil, appErrors.Validation("unknown payment provider", appErrors.FieldError{Field: "provider", Message: err.Error()})
	}

	request := &models.TranscriptRequest{
		Matricule:       actor.Matricule,
		StudentName:     actor.Name,
		Level:           req.Level,
		Faculty:         actor.Faculty,
		Program:         actor.Program,
		Semester:        req.Semester,
		ModeOfTreatment: req.ModeOfTreatment,
		NumberOfCopies:  req.NumberOfCopies,
		DeliveryMethod:  req.DeliveryMethod,
		Status:          models.TranscriptProcessing,
		CreatedBy:       actor.ID,
	}
	if req.ModeOfTreatment == models.ModeVerification {
		request.VerifierEmail = &req.VerifierEmail
	}
	request.ApplyModeOfTreatment()

	result, err := s.payments.Charge(ctx, payment.ChargeRequest{
		Amount:      request.Amount,
		Provider:    provider,
		PhoneNumber: req.PhoneNumber,
		Description: fmt.Sprintf("Transcript request (%s) for %s", request.ModeOfTreatment, request.Matricule),
	})
	if err != nil {
		s.metrics.CountPaymentCharge(string(provider), "declined")
		return nil, appErrors.Wrap(err, appErrors.ErrExternalService.Code, appErrors.ErrExternalService.Status, "payment was not accepted")
	}
	s.metrics.CountPaymentCharge(string(provider), "accepted")

	now := time.Now().UTC()
	paidAt := now
	request.PaymentDetails = models.PaymentDetails{
		Provider:      string(provider),
		PhoneNumber:   req.PhoneNumber,
		TransactionID: result.TransactionID,
		PaidAt:        &paidAt,
		Amount:        request.Amount,
	}
	request.DateOfRequest = now
	request.StatusHistory = models.StatusHistory{{
		Status:    string(models.TranscriptProcessing),
		UpdatedBy: actor.ID,
		Timestamp: now,
	}}
	request.Notifications = models.NotificationList{{
		Message:   "Transcript request received and payment confirmed",
		Recipient: actor.ID,
		CreatedAt: now,
	}}

	if err := s.repo.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create transcript request")
	}

	s.invalidateStatistics(ctx)
	s.metrics.CountTranscript(string(models.TranscriptProcessing))
	s.logger.Info("transcript request created",
		zap.String("request_id", request.ID),
		zap.String("matricule", request.Matricule),
		zap.String("mode", string(request.ModeOfTreatment)),
		zap.Int("amount", request.Amount))
	return request, nil
}

// List returns transcript requests visible to the actor.
func (s *TranscriptService) List(ctx context.Context, actor Actor, filter models.TranscriptFilter) ([]models.TranscriptRequest, *models.Pagination, error) {
	requests, total, err := s.repo.List(ctx, actor.Scope(), filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transcript requests")
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
	return requests, pagination, nil
}

// Get returns one transcript request if the actor's scope allows it.
func (s *TranscriptService) Get(ctx context.Context, actor Actor, id string) (*models.TranscriptRequest, error) {
	return s.loadVisible(ctx, actor, id)
}

// ListByMatricule is a staff lookup of every request a student has made,
// limited to the requests the actor's scope can see.
func (s *TranscriptService) ListByMatricule(ctx context.Context, actor Actor, matricule string) ([]models.TranscriptRequest, error) {
	if !isStaff(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may look up requests by matricule")
	}
	requests, err := s.repo.ListByMatricule(ctx, actor.Scope(), matricule)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transcript requests")
	}
	return requests, nil
}

// UpdateStatus transitions a transcript request. Moving to Completed renders
// the PDF first: a failed render rejects the transition and leaves the row in
// Processing, and a failed persist removes the orphaned artifact.
func (s *TranscriptService) UpdateStatus(ctx context.Context, actor Actor, id string, req UpdateTranscriptStatusRequest) (*models.TranscriptRequest, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may change transcript status")
	}
	if !models.ValidTranscriptStatus(req.Status) {
		return nil, appErrors.Validation("invalid status", appErrors.FieldError{Field: "status", Message: "unknown transcript status"})
	}

	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript request")
	}

	// Completed and Failed are terminal; the only legal transitions are
	// Processing -> Completed and Processing -> Failed.
	if request.Status != models.TranscriptProcessing {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("request is already %s and cannot change", request.Status))
	}
	if req.Status == models.TranscriptProcessing {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is already Processing")
	}

	if req.Status == models.TranscriptCompleted {
		return s.complete(ctx, actor, request, req.Comment)
	}

	entry := models.StatusEntry{
		Status:    string(req.Status),
		UpdatedBy: actor.ID,
		Comment:   req.Comment,
		Timestamp: time.Now().UTC(),
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update transcript status")
	}

	s.invalidateStatistics(ctx)
	s.metrics.CountTranscript(string(req.Status))
	s.logger.Info("transcript status updated", zap.String("request_id", id), zap.String("status", string(req.Status)))
	return s.repo.FindByID(ctx, id)
}

// Download resolves the stored PDF path for a completed request the actor may
// see.
func (s *TranscriptService) Download(ctx context.Context, actor Actor, id string) (string, error) {
	request, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return "", err
	}
	if request.Status != models.TranscriptCompleted || request.PdfURL == nil {
		return "", appErrors.Clone(appErrors.ErrConflict, "transcript is not ready for download")
	}
	return s.artifacts.Path(artifactName(request.ID)), nil
}

// Statistics aggregates transcript counts within the actor's scope, served
// from cache when fresh.
func (s *TranscriptService) Statistics(ctx context.Context, actor Actor) (*models.TranscriptStatistics, error) {
	if !isStaff(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may view statistics")
	}

	key := fmt.Sprintf("%s:%s:%s", transcriptStatsKeyPrefix, actor.Role, actor.ID)
	if s.cache != nil {
		var cached models.TranscriptStatistics
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.repo.Statistics(ctx, actor.Scope())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute statistics")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache statistics", zap.Error(err))
		}
	}
	return stats, nil
}

// complete renders and stores the PDF, persists the terminal transition and
// fans out the ready/verification emails.
func (s *TranscriptService) complete(ctx context.Context, actor Actor, request *models.TranscriptRequest, comment string) (*models.TranscriptRequest, error) {
	now := time.Now().UTC()
	data := pdf.TranscriptData{
		Matricule:       request.Matricule,
		StudentName:     request.StudentName,
		Level:           request.Level,
		Faculty:         request.Faculty,
		Program:         request.Program,
		Semester:        string(request.Semester),
		ModeOfTreatment: string(request.ModeOfTreatment),
		NumberOfCopies:  request.NumberOfCopies,
		RequestedAt:     request.DateOfRequest,
		CompletedAt:     now,
	}
	if request.VerifierEmail != nil {
		data.VerifierEmail = *request.VerifierEmail
	}

	rendered, err := s.renderer.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate transcript document")
	}

	filename := artifactName(request.ID)
	if _, err := s.artifacts.Save(filename, rendered); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store transcript document")
	}
	pdfURL := s.cfg.BaseURL + "/" + filename

	entry := models.StatusEntry{
		Status:    string(models.TranscriptCompleted),
		UpdatedBy: actor.ID,
		Comment:   comment,
		Timestamp: now,
	}
	notifications := []models.Notification{
		{Message: "Your Transcript is Ready", Recipient: request.CreatedBy, CreatedAt: now},
	}
	if request.VerifierEmail != nil {
		notifications = append(notifications, models.Notification{
			Message:   "Transcript Verification Request",
			Recipient: *request.VerifierEmail,
			CreatedAt: now,
		})
	}

	if err := s.repo.Complete(ctx, request.ID, pdfURL, now, entry, notifications); err != nil {
		if cleanupErr := s.artifacts.Delete(filename); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned transcript document", zap.String("file", filename), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete transcript request")
	}

	s.sendCompletionEmails(ctx, request)
	s.invalidateStatistics(ctx)
	s.metrics.CountTranscript(string(models.TranscriptCompleted))
	s.logger.Info("transcript completed", zap.String("request_id", request.ID), zap.String("pdf_url", pdfURL))
	return s.repo.FindByID(ctx, request.ID)
}

func (s *TranscriptService) sendCompletionEmails(ctx context.Context, request *models.TranscriptRequest) {
	if s.emails == nil {
		return
	}
	if s.users != nil {
		if owner, err := s.users.FindByID(ctx, request.CreatedBy); err == nil {
			s.emails.QueueEmail(mailer.Message{
				ToName:  owner.Name,
				ToEmail: owner.Email,
				Subject: "Your Transcript is Ready",
				Body:    fmt.Sprintf("Dear %s, your transcript request %s has been completed and is ready for %s.", owner.Name, request.ID, request.DeliveryMethod),
			})
		} else {
			s.logger.Warn("failed to resolve transcript owner for email", zap.String("request_id", request.ID), zap.Error(err))
		}
	}
	if request.VerifierEmail != nil {
		s.emails.QueueEmail(mailer.Message{
			ToEmail: *request.VerifierEmail,
			Subject: "Transcript Verification Request",
			Body:    fmt.Sprintf("A verified academic transcript for matricule %s is attached for your review.", request.Matricule),
		})
	}
}

func (s *TranscriptService) loadVisible(ctx context.Context, actor Actor, id string) (*models.TranscriptRequest, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "transcript request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript request")
	}
	if !canSeeTranscript(actor, request) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "transcript request is outside your scope")
	}
	return request, nil
}

func canSeeTranscript(actor Actor, request *models.TranscriptRequest) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return request.CreatedBy == actor.ID
	case models.RoleHOD:
		return request.Program == actor.Program
	case models.RoleCoordinator:
		for _, program := range actor.Programs {
			if request.Program == program {
				return true
			}
		}
	}
	return false
}

func validateTranscriptFields(req CreateTranscriptRequest) []appErrors.FieldError {
	var details []appErrors.FieldError
	if !models.ValidTranscriptLevel(req.Level) {
		details = append(details, appErrors.FieldError{Field: "level", Message: "level must be L200 through L700"})
	}
	if !models.ValidTranscriptSemester(req.Semester) {
		details = append(details, appErrors.FieldError{Field: "semester", Message: "unknown semester"})
	}
	if !models.ValidModeOfTreatment(req.ModeOfTreatment) {
		details = append(details, appErrors.FieldError{Field: "modeOfTreatment", Message: "unknown processing tier"})
	}
	if req.ModeOfTreatment == models.ModeVerification {
		if req.VerifierEmail == "" {
			details = append(details, appErrors.FieldError{Field: "verifierEmail", Message: "verifierEmail is required for verification requests"})
		}
	} else if !models.ValidDeliveryMethod(req.DeliveryMethod) {
		details = append(details, appErrors.FieldError{Field: "deliveryMethod", Message: "unknown delivery method"})
	}
	return details
}

func (s *TranscriptService) invalidateStatistics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, transcriptStatsKeyPrefix+":*"); err != nil {
		s.logger.Warn("failed to invalidate statistics cache", zap.Error(err))
	}
}

func artifactName(requestID string) string {
	return requestID + ".pdf"
}
