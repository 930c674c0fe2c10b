package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atcms-project/atcms-api/internal/models"
	appErrors "github.com/atcms-project/atcms-api/pkg/errors"
)

type complaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint) error
	FindByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, scope models.Scope, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	ListEscalatedOrAssigned(ctx context.Context, adminID string) ([]models.Complaint, error)
	UpdateStatus(ctx context.Context, id string, status models.ComplaintStatus, entry models.StatusEntry, notification models.Notification) error
	Escalate(ctx context.Context, id, adminID string, entry models.StatusEntry, notifications []models.Notification, files []string) error
	Resolve(ctx context.Context, id string, entry models.StatusEntry, notifications []models.Notification, files []string) error
	AppendComment(ctx context.Context, id string, comment models.Comment) error
	AppendFiles(ctx context.Context, id string, files []string) error
	BulkResolve(ctx context.Context, ids []string, entry models.StatusEntry, notification models.Notification) (int, error)
	Analytics(ctx context.Context, scope models.Scope) (*models.ComplaintAnalytics, error)
}

type adminLookup interface {
	FindFirstAdmin(ctx context.Context) (*models.User, error)
}

type uploadStore interface {
	DeleteAll(filenames []string) error
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	ID        string
	Name      string
	Matricule string
	Role      models.UserRole
	Faculty   string
	Program   string
	Programs  []string
}

// Scope projects the actor into a query scope.
func (a Actor) Scope() models.Scope {
	return models.Scope{
		Role:     a.Role,
		UserID:   a.ID,
		Program:  a.Program,
		Programs: a.Programs,
	}
}

// CreateComplaintRequest holds the payload for submitting a complaint.
type CreateComplaintRequest struct {
	ComplaintType models.ComplaintType     `json:"complaintType" validate:"required"`
	CourseCode    string                   `json:"courseCode" validate:"required,max=16"`
	Subject       string                   `json:"subject" validate:"required,max=200"`
	Body          string                   `json:"body" validate:"required"`
	Recipient     models.Recipient         `json:"recipient" validate:"required"`
	Semester      models.ComplaintSemester `json:"semester" validate:"required"`
	Level         string                   `json:"level" validate:"required"`
	PhoneNumber   string                   `json:"phoneNumber"`
}

// UpdateComplaintStatusRequest transitions a complaint.
type UpdateComplaintStatusRequest struct {
	Status  models.ComplaintStatus `json:"status" validate:"required"`
	Comment string                 `json:"comment"`
}

// EscalateComplaintRequest reassigns a complaint to the admin.
type EscalateComplaintRequest struct {
	Instructions string   `json:"instructions" validate:"required"`
	Files        []string `json:"-"`
}

// ResolveComplaintRequest closes a complaint.
type ResolveComplaintRequest struct {
	Resolution string   `json:"resolution" validate:"required"`
	Files      []string `json:"-"`
}

// BulkResolveRequest closes a batch of complaints with one resolution note.
type BulkResolveRequest struct {
	IDs        []string `json:"ids" validate:"required,min=1,dive,required"`
	Resolution string   `json:"resolution" validate:"required"`
}

const complaintAnalyticsKeyPrefix = "analytics:complaints"

// ComplaintService drives the complaint triage workflow.
type ComplaintService struct {
	repo      complaintRepository
	admins    adminLookup
	uploads   uploadStore
	cache     analyticsCache
	metrics   *MetricsService
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewComplaintService constructs the complaint service. cache may be nil;
// analytics then always hit the database.
func NewComplaintService(repo complaintRepository, admins adminLookup, uploads uploadStore, cache analyticsCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &ComplaintService{repo: repo, admins: admins, uploads: uploads, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// WithMetrics attaches workflow instrumentation. A nil metrics service is a
// no-op, so tests can skip it.
func (s *ComplaintService) WithMetrics(m *MetricsService) *ComplaintService {
	s.metrics = m
	return s
}

// Create submits a new complaint. Only students may create; the program is
// copied from the acting user so it cannot be spoofed from client input.
func (s *ComplaintService) Create(ctx context.Context, actor Actor, req CreateComplaintRequest) (*models.Complaint, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may submit complaints")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}
	if details := validateComplaintEnums(req); len(details) > 0 {
		return nil, appErrors.Validation("invalid complaint payload", details...)
	}

	now := time.Now().UTC()
	complaint := &models.Complaint{
		Name:          actor.Name,
		Matricule:     actor.Matricule,
		Program:       actor.Program,
		Level:         req.Level,
		PhoneNumber:   req.PhoneNumber,
		ComplaintType: req.ComplaintType,
		CourseCode:    req.CourseCode,
		Subject:       req.Subject,
		Body:          req.Body,
		Recipient:     req.Recipient,
		Semester:      req.Semester,
		Status:        models.ComplaintPending,
		CreatedBy:     actor.ID,
		StatusHistory: models.StatusHistory{{
			Status:    string(models.ComplaintPending),
			UpdatedBy: actor.ID,
			Timestamp: now,
		}},
		Comments: models.CommentList{},
		Files:    models.FileList{},
		Notifications: models.NotificationList{{
			Message:   fmt.Sprintf("New complaint submitted: %s", req.Subject),
			Recipient: string(req.Recipient),
			CreatedAt: now,
		}},
	}
	if err := s.repo.Create(ctx, complaint); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}

	s.invalidateAnalytics(ctx)
	s.metrics.CountComplaintEvent("created")
	s.logger.Info("complaint created",
		zap.String("complaint_id", complaint.ID),
		zap.String("created_by", actor.ID),
		zap.String("type", string(req.ComplaintType)))
	return complaint, nil
}

// List returns complaints visible to the actor.
func (s *ComplaintService) List(ctx context.Context, actor Actor, filter models.ComplaintFilter) ([]models.Complaint, *models.Pagination, error) {
	complaints, total, err := s.repo.List(ctx, actor.Scope(), filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
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
	return complaints, pagination, nil
}

// ListAssigned is the admin triage view of escalated or assigned complaints.
func (s *ComplaintService) ListAssigned(ctx context.Context, actor Actor) ([]models.Complaint, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins may view the escalation queue")
	}
	complaints, err := s.repo.ListEscalatedOrAssigned(ctx, actor.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list escalated complaints")
	}
	return complaints, nil
}

// Get returns one complaint if the actor's scope allows it.
func (s *ComplaintService) Get(ctx context.Context, actor Actor, id string) (*models.Complaint, error) {
	return s.loadVisible(ctx, actor, id)
}

// UpdateStatus transitions a complaint and appends a history entry. Every
// transition appends; the log is never replaced.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor Actor, id string, req UpdateComplaintStatusRequest) (*models.Complaint, error) {
	if !isStaff(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may change complaint status")
	}
	if !models.ValidComplaintStatus(req.Status) {
		return nil, appErrors.Validation("invalid status", appErrors.FieldError{Field: "status", Message: "unknown complaint status"})
	}

	complaint, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := models.StatusEntry{
		Status:    string(req.Status),
		UpdatedBy: actor.ID,
		Comment:   req.Comment,
		Timestamp: now,
	}
	notification := models.Notification{
		Message:   fmt.Sprintf("Complaint status updated to %s", req.Status),
		Recipient: complaint.CreatedBy,
		CreatedAt: now,
	}
	if err := s.repo.UpdateStatus(ctx, id, req.Status, entry, notification); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint status")
	}

	s.invalidateAnalytics(ctx)
	s.metrics.CountComplaintEvent("status_updated")
	s.logger.Info("complaint status updated",
		zap.String("complaint_id", id),
		zap.String("status", string(req.Status)),
		zap.String("updated_by", actor.ID))
	return s.repo.FindByID(ctx, id)
}

// AddComment appends a comment. Students may only comment on their own
// complaints; staff on anything within scope.
func (s *ComplaintService) AddComment(ctx context.Context, actor Actor, id, text string) (*models.Complaint, error) {
	if text == "" {
		return nil, appErrors.Validation("comment text required", appErrors.FieldError{Field: "text", Message: "text must not be empty"})
	}
	if _, err := s.loadVisible(ctx, actor, id); err != nil {
		return nil, err
	}

	comment := models.Comment{Text: text, Author: actor.ID, Timestamp: time.Now().UTC()}
	if err := s.repo.AppendComment(ctx, id, comment); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add comment")
	}
	return s.repo.FindByID(ctx, id)
}

// AttachFiles records uploaded attachment references on a complaint the actor
// may see.
func (s *ComplaintService) AttachFiles(ctx context.Context, actor Actor, id string, files []string) (*models.Complaint, error) {
	if len(files) == 0 {
		return nil, appErrors.Validation("no files provided", appErrors.FieldError{Field: "files", Message: "at least one file is required"})
	}
	if _, err := s.loadVisible(ctx, actor, id); err != nil {
		s.cleanupUploads(files)
		return nil, err
	}
	if err := s.repo.AppendFiles(ctx, id, files); err != nil {
		s.cleanupUploads(files)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach files")
	}
	return s.repo.FindByID(ctx, id)
}

// Escalate reassigns a complaint to the admin account. If no admin exists the
// operation fails and any uploaded files are removed.
func (s *ComplaintService) Escalate(ctx context.Context, actor Actor, id string, req EscalateComplaintRequest) (*models.Complaint, error) {
	if !isStaff(actor.Role) {
		s.cleanupUploads(req.Files)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may escalate complaints")
	}
	if err := s.validator.Struct(req); err != nil {
		s.cleanupUploads(req.Files)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid escalation payload")
	}

	complaint, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		s.cleanupUploads(req.Files)
		return nil, err
	}

	admin, err := s.admins.FindFirstAdmin(ctx)
	if err != nil {
		s.cleanupUploads(req.Files)
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrConflict, "no admin account available for escalation")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up admin")
	}

	now := time.Now().UTC()
	entry := models.StatusEntry{
		Status:    string(models.ComplaintEscalated),
		UpdatedBy: actor.ID,
		Comment:   req.Instructions,
		Timestamp: now,
	}
	notifications := []models.Notification{
		{Message: fmt.Sprintf("Complaint escalated for your attention: %s", complaint.Subject), Recipient: admin.ID, CreatedAt: now},
		{Message: "Your complaint has been escalated to the administrator", Recipient: complaint.CreatedBy, CreatedAt: now},
	}
	if err := s.repo.Escalate(ctx, id, admin.ID, entry, notifications, req.Files); err != nil {
		s.cleanupUploads(req.Files)
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to escalate complaint")
	}

	s.invalidateAnalytics(ctx)
	s.metrics.CountComplaintEvent("escalated")
	s.logger.Info("complaint escalated",
		zap.String("complaint_id", id),
		zap.String("escalated_by", actor.ID),
		zap.String("assigned_to", admin.ID))
	return s.repo.FindByID(ctx, id)
}

// Resolve closes a complaint with a resolution note and fan-out notifications.
func (s *ComplaintService) Resolve(ctx context.Context, actor Actor, id string, req ResolveComplaintRequest) (*models.Complaint, error) {
	if !isStaff(actor.Role) {
		s.cleanupUploads(req.Files)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may resolve complaints")
	}
	if err := s.validator.Struct(req); err != nil {
		s.cleanupUploads(req.Files)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}

	complaint, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		s.cleanupUploads(req.Files)
		return nil, err
	}

	now := time.Now().UTC()
	entry := models.StatusEntry{
		Status:    string(models.ComplaintResolved),
		UpdatedBy: actor.ID,
		Comment:   req.Resolution,
		Timestamp: now,
	}
	notifications := []models.Notification{
		{Message: fmt.Sprintf("Complaint resolved: %s", complaint.Subject), Recipient: actor.ID, CreatedAt: now},
		{Message: fmt.Sprintf("Your complaint was resolved: %s", req.Resolution), Recipient: complaint.CreatedBy, CreatedAt: now},
	}
	if err := s.repo.Resolve(ctx, id, entry, notifications, req.Files); err != nil {
		s.cleanupUploads(req.Files)
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve complaint")
	}

	s.invalidateAnalytics(ctx)
	s.metrics.CountComplaintEvent("resolved")
	s.logger.Info("complaint resolved", zap.String("complaint_id", id), zap.String("resolved_by", actor.ID))
	return s.repo.FindByID(ctx, id)
}

// BulkResolve closes a batch of complaints in one atomic update and reports
// how many rows changed. Unknown IDs are skipped silently.
func (s *ComplaintService) BulkResolve(ctx context.Context, actor Actor, req BulkResolveRequest) (int, error) {
	if !isStaff(actor.Role) {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "only staff may resolve complaints")
	}
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk resolution payload")
	}

	now := time.Now().UTC()
	entry := models.StatusEntry{
		Status:    string(models.ComplaintResolved),
		UpdatedBy: actor.ID,
		Comment:   req.Resolution,
		Timestamp: now,
	}
	notification := models.Notification{
		Message:   fmt.Sprintf("Your complaint was resolved: %s", req.Resolution),
		CreatedAt: now,
	}
	resolved, err := s.repo.BulkResolve(ctx, req.IDs, entry, notification)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk resolve complaints")
	}

	s.invalidateAnalytics(ctx)
	s.metrics.CountComplaintEvent("bulk_resolved")
	s.logger.Info("complaints bulk resolved", zap.Int("requested", len(req.IDs)), zap.Int("resolved", resolved))
	return resolved, nil
}

// Analytics aggregates complaint counts within the actor's scope, served from
// cache when fresh.
func (s *ComplaintService) Analytics(ctx context.Context, actor Actor) (*models.ComplaintAnalytics, error) {
	if !isStaff(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff may view analytics")
	}

	key := fmt.Sprintf("%s:%s:%s", complaintAnalyticsKeyPrefix, actor.Role, actor.ID)
	if s.cache != nil {
		var cached models.ComplaintAnalytics
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	analytics, err := s.repo.Analytics(ctx, actor.Scope())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute analytics")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, analytics, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache analytics", zap.Error(err))
		}
	}
	return analytics, nil
}

// loadVisible fetches a complaint and enforces the actor's read scope.
func (s *ComplaintService) loadVisible(ctx context.Context, actor Actor, id string) (*models.Complaint, error) {
	complaint, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !canSeeComplaint(actor, complaint) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "complaint is outside your scope")
	}
	return complaint, nil
}

func canSeeComplaint(actor Actor, complaint *models.Complaint) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return true
	case models.RoleStudent:
		return complaint.CreatedBy == actor.ID
	case models.RoleHOD:
		return complaint.Program == actor.Program
	case models.RoleCoordinator:
		for _, program := range actor.Programs {
			if complaint.Program == program {
				return true
			}
		}
	}
	return false
}

func isStaff(role models.UserRole) bool {
	return role == models.RoleHOD || role == models.RoleCoordinator || role == models.RoleAdmin
}

func validateComplaintEnums(req CreateComplaintRequest) []appErrors.FieldError {
	var details []appErrors.FieldError
	if !models.ValidComplaintType(req.ComplaintType) {
		details = append(details, appErrors.FieldError{Field: "complaintType", Message: "unknown complaint type"})
	}
	if !models.ValidRecipient(req.Recipient) {
		details = append(details, appErrors.FieldError{Field: "recipient", Message: "unknown recipient"})
	}
	if !models.ValidComplaintSemester(req.Semester) {
		details = append(details, appErrors.FieldError{Field: "semester", Message: "unknown semester"})
	}
	if _, ok := models.ComplaintLevels[req.Level]; !ok {
		details = append(details, appErrors.FieldError{Field: "level", Message: "level must be between 200 and 700"})
	}
	return details
}

func (s *ComplaintService) cleanupUploads(files []string) {
	if s.uploads == nil || len(files) == 0 {
		return
	}
	if err := s.uploads.DeleteAll(files); err != nil {
		s.logger.Warn("failed to clean up uploads", zap.Error(err))
	}
}

func (s *ComplaintService) invalidateAnalytics(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, complaintAnalyticsKeyPrefix+":*"); err != nil {
		s.logger.Warn("failed to invalidate analytics cache", zap.Error(err))
	}
}
