package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/atcms-project/atcms-api/internal/models"
)

// TranscriptRepository manages persistence for transcript requests.
type TranscriptRepository struct {
	db *sqlx.DB
}

// NewTranscriptRepository constructs a TranscriptRepository.
func NewTranscriptRepository(db *sqlx.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

const transcriptColumns = `id, matricule, student_name, level, faculty, program, semester,
        mode_of_treatment, processing_time, amount, number_of_copies, delivery_method, verifier_email,
        status, payment_details, status_history, notifications, pdf_url,
        date_of_request, completed_at, created_by, created_at, updated_at`

// transcriptScopeConditions narrows transcript queries to the acting user.
// Transcript rows carry faculty, so HODs and coordinators filter on program
// the same way complaints do.
func transcriptScopeConditions(scope models.Scope, conditions []string, args []interface{}) ([]string, []interface{}) {
	return scopeConditions(scope, conditions, args)
}

// Create inserts a new transcript request. Payment has already been charged
// by the time this runs; a declined charge never reaches the database.
func (r *TranscriptRepository) Create(ctx context.Context, request *models.TranscriptRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	if request.DateOfRequest.IsZero() {
		request.DateOfRequest = now
	}
	request.UpdatedAt = now
	const query = `INSERT INTO transcript_requests (id, matricule, student_name, level, faculty, program, semester,
        mode_of_treatment, processing_time, amount, number_of_copies, delivery_method, verifier_email,
        status, payment_details, status_history, notifications, pdf_url,
        date_of_request, completed_at, created_by, created_at, updated_at)
        VALUES (:id, :matricule, :student_name, :level, :faculty, :program, :semester,
        :mode_of_treatment, :processing_time, :amount, :number_of_copies, :delivery_method, :verifier_email,
        :status, :payment_details, :status_history, :notifications, :pdf_url,
        :date_of_request, :completed_at, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		return fmt.Errorf("create transcript request: %w", err)
	}
	return nil
}

// FindByID fetches a transcript request by ID without scope filtering.
func (r *TranscriptRepository) FindByID(ctx context.Context, id string) (*models.TranscriptRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM transcript_requests WHERE id = $1", transcriptColumns)
	var request models.TranscriptRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns transcript requests visible to the scope, filtered and
// paginated.
func (r *TranscriptRepository) List(ctx context.Context, scope models.Scope, filter models.TranscriptFilter) ([]models.TranscriptRequest, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	conditions, args = transcriptScopeConditions(scope, conditions, args)

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Mode != nil {
		conditions = append(conditions, fmt.Sprintf("mode_of_treatment = $%d", len(args)+1))
		args = append(args, *filter.Mode)
	}
	if filter.Matricule != "" {
		conditions = append(conditions, fmt.Sprintf("matricule = $%d", len(args)+1))
		args = append(args, filter.Matricule)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(student_name) LIKE $%d OR matricule LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"date_of_request": "date_of_request",
		"updated_at":      "updated_at",
		"status":          "status",
		"amount":          "amount",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "date_of_request"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM transcript_requests WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		transcriptColumns, where, column, order, size, offset)

	var requests []models.TranscriptRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transcript requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transcript_requests WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count transcript requests: %w", err)
	}
	return requests, total, nil
}

// ListByMatricule returns every request for a student matricule visible to
// the scope, newest first.
func (r *TranscriptRepository) ListByMatricule(ctx context.Context, scope models.Scope, matricule string) ([]models.TranscriptRequest, error) {
	conditions := []string{"matricule = $1"}
	args := []interface{}{matricule}
	conditions, args = transcriptScopeConditions(scope, conditions, args)
	where := strings.Join(conditions, " AND ")

	query := fmt.Sprintf("SELECT %s FROM transcript_requests WHERE %s ORDER BY date_of_request DESC", transcriptColumns, where)
	var requests []models.TranscriptRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list transcript requests by matricule: %w", err)
	}
	return requests, nil
}

// Complete marks a request Completed, recording the PDF location, completion
// time and the history/notification appends in one statement.
func (r *TranscriptRepository) Complete(ctx context.Context, id, pdfURL string, completedAt time.Time, entry models.StatusEntry, notifications []models.Notification) error {
	history, err := models.StatusHistory{entry}.Value()
	if err != nil {
		return err
	}
	notes, err := models.NotificationList(notifications).Value()
	if err != nil {
		return err
	}
	const query = `UPDATE transcript_requests
        SET status = $2, pdf_url = $3, completed_at = $4,
            status_history = status_history || $5::jsonb,
            notifications = notifications || $6::jsonb,
            updated_at = $7
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.TranscriptCompleted, pdfURL, completedAt, history, notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete transcript request: %w", err)
	}
	return requireRow(result, "complete transcript request")
}

// UpdateStatus transitions a request and appends the matching history entry.
func (r *TranscriptRepository) UpdateStatus(ctx context.Context, id string, status models.TranscriptStatus, entry models.StatusEntry) error {
	history, err := models.StatusHistory{entry}.Value()
	if err != nil {
		return err
	}
	const query = `UPDATE transcript_requests
        SET status = $2, status_history = status_history || $3::jsonb, updated_at = $4
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, history, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update transcript status: %w", err)
	}
	return requireRow(result, "update transcript status")
}

// Statistics aggregates transcript counts within the caller's scope.
func (r *TranscriptRepository) Statistics(ctx context.Context, scope models.Scope) (*models.TranscriptStatistics, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	conditions, args = transcriptScopeConditions(scope, conditions, args)
	where := strings.Join(conditions, " AND ")

	stats := &models.TranscriptStatistics{
		ByStatus: map[string]int{},
		ByTier:   map[string]int{},
	}

	statusQuery := fmt.Sprintf("SELECT status AS label, COUNT(*) AS count FROM transcript_requests WHERE %s GROUP BY status", where)
	var statusRows []models.LabelCount
	if err := r.db.SelectContext(ctx, &statusRows, statusQuery, args...); err != nil {
		return nil, fmt.Errorf("transcript status counts: %w", err)
	}
	for _, row := range statusRows {
		stats.ByStatus[row.Label] = row.Count
		stats.Total += row.Count
	}

	tierQuery := fmt.Sprintf("SELECT mode_of_treatment AS label, COUNT(*) AS count FROM transcript_requests WHERE %s GROUP BY mode_of_treatment", where)
	var tierRows []models.LabelCount
	if err := r.db.SelectContext(ctx, &tierRows, tierQuery, args...); err != nil {
		return nil, fmt.Errorf("transcript tier counts: %w", err)
	}
	for _, row := range tierRows {
		stats.ByTier[row.Label] = row.Count
	}

	return stats, nil
}
