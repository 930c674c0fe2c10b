package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/atcms-project/atcms-api/internal/models"
)

// ComplaintRepository manages persistence for complaints. The embedded logs
// (status history, comments, files, notifications) live in JSONB columns and
// are only ever appended to server-side, so concurrent writers interleave
// instead of overwriting each other.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs a ComplaintRepository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

const complaintColumns = `id, name, matricule, program, level, phone_number, complaint_type, course_code,
        subject, body, recipient, semester, status, created_by, assigned_to,
        status_history, comments, files, notifications, created_at, updated_at`

// scopeConditions appends the authorization predicate for the acting user.
func scopeConditions(scope models.Scope, conditions []string, args []interface{}) ([]string, []interface{}) {
	switch scope.Role {
	case models.RoleStudent:
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, scope.UserID)
	case models.RoleHOD:
		conditions = append(conditions, fmt.Sprintf("program = $%d", len(args)+1))
		args = append(args, scope.Program)
	case models.RoleCoordinator:
		conditions = append(conditions, fmt.Sprintf("program = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(scope.Programs))
	}
	// Admin sees everything.
	return conditions, args
}

// Create inserts a new complaint with its initial embedded logs.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if complaint.CreatedAt.IsZero() {
		complaint.CreatedAt = now
	}
	complaint.UpdatedAt = now
	const query = `INSERT INTO complaints (id, name, matricule, program, level, phone_number, complaint_type, course_code,
        subject, body, recipient, semester, status, created_by, assigned_to,
        status_history, comments, files, notifications, created_at, updated_at)
        VALUES (:id, :name, :matricule, :program, :level, :phone_number, :complaint_type, :course_code,
        :subject, :body, :recipient, :semester, :status, :created_by, :assigned_to,
        :status_history, :comments, :files, :notifications, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}
	return nil
}

// FindByID fetches a complaint by ID without scope filtering; callers enforce
// visibility.
func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	query := fmt.Sprintf("SELECT %s FROM complaints WHERE id = $1", complaintColumns)
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, query, id); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// List returns complaints visible to the scope, filtered and paginated.
func (r *ComplaintRepository) List(ctx context.Context, scope models.Scope, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	conditions, args = scopeConditions(scope, conditions, args)

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.ComplaintType != nil {
		conditions = append(conditions, fmt.Sprintf("complaint_type = $%d", len(args)+1))
		args = append(args, *filter.ComplaintType)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(subject) LIKE $%d OR LOWER(course_code) LIKE $%d OR matricule LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	where := strings.Join(conditions, " AND ")

	allowedSorts := map[string]string{
		"created_at": "created_at",
		"updated_at": "updated_at",
		"status":     "status",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "created_at"
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

	query := fmt.Sprintf("SELECT %s FROM complaints WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		complaintColumns, where, column, order, size, offset)

	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM complaints WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}
	return complaints, total, nil
}

// ListEscalatedOrAssigned is the admin triage view: complaints that were
// escalated or are assigned to the given admin.
func (r *ComplaintRepository) ListEscalatedOrAssigned(ctx context.Context, adminID string) ([]models.Complaint, error) {
	query := fmt.Sprintf(`SELECT %s FROM complaints
        WHERE status = $1 OR assigned_to = $2
        ORDER BY updated_at DESC`, complaintColumns)
	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, query, models.ComplaintEscalated, adminID); err != nil {
		return nil, fmt.Errorf("list escalated complaints: %w", err)
	}
	return complaints, nil
}

// UpdateStatus transitions a complaint, appending the matching history entry
// and notification in one statement. The concatenation runs server-side so
// concurrent updates both land in the logs.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, id string, status models.ComplaintStatus, entry models.StatusEntry, notification models.Notification) error {
	history, err := models.StatusHistory{entry}.Value()
	if err != nil {
		return err
	}
	note, err := models.NotificationList{notification}.Value()
	if err != nil {
		return err
	}
	const query = `UPDATE complaints
        SET status = $2,
            status_history = status_history || $3::jsonb,
            notifications = notifications || $4::jsonb,
            updated_at = $5
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, history, note, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update complaint status: %w", err)
	}
	return requireRow(result, "update complaint status")
}

// Escalate moves a complaint to Escalated, assigns the admin and appends the
// history entry, notification fan-out and file references atomically.
func (r *ComplaintRepository) Escalate(ctx context.Context, id, adminID string, entry models.StatusEntry, notifications []models.Notification, files []string) error {
	history, err := models.StatusHistory{entry}.Value()
	if err != nil {
		return err
	}
	notes, err := models.NotificationList(notifications).Value()
	if err != nil {
		return err
	}
	attachments, err := models.FileList(files).Value()
	if err != nil {
		return err
	}
	const query = `UPDATE complaints
        SET status = $2, assigned_to = $3,
            status_history = status_history || $4::jsonb,
            notifications = notifications || $5::jsonb,
            files = files || $6::jsonb,
            updated_at = $7
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.ComplaintEscalated, adminID, history, notes, attachments, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("escalate complaint: %w", err)
	}
	return requireRow(result, "escalate complaint")
}

// Resolve closes a complaint, appending the resolution history entry, the
// notification fan-out and any supporting files atomically.
func (r *ComplaintRepository) Resolve(ctx context.Context, id string, entry models.StatusEntry, notifications []models.Notification, files []string) error {
	history, err := models.StatusHistory{entry}.Value()
	if err != nil {
		return err
	}
	notes, err := models.NotificationList(notifications).Value()
	if err != nil {
		return err
	}
	attachments, err := models.FileList(files).Value()
	if err != nil {
		return err
	}
	const query = `UPDATE complaints
        SET status = $2,
            status_history = status_history || $3::jsonb,
            notifications = notifications || $4::jsonb,
            files = files || $5::jsonb,
            updated_at = $6
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, models.ComplaintResolved, history, notes, attachments, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("resolve complaint: %w", err)
	}
	return requireRow(result, "resolve complaint")
}

// AppendComment appends a comment to the embedded discussion log.
func (r *ComplaintRepository) AppendComment(ctx context.Context, id string, comment models.Comment) error {
	payload, err := models.CommentList{comment}.Value()
	if err != nil {
		return err
	}
	const query = `UPDATE complaints
        SET comments = comments || $2::jsonb, updated_at = $3
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append complaint comment: %w", err)
	}
	return requireRow(result, "append complaint comment")
}

// AppendFiles records uploaded attachment references on the complaint.
func (r *ComplaintRepository) AppendFiles(ctx context.Context, id string, files []string) error {
	payload, err := models.FileList(files).Value()
	if err != nil {
		return err
	}
	const query = `UPDATE complaints
        SET files = files || $2::jsonb, updated_at = $3
        WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append complaint files: %w", err)
	}
	return requireRow(result, "append complaint files")
}

// BulkResolve resolves every listed complaint in a single set-level update,
// appending one history entry and one notification per row, and reports how
// many rows changed. Unknown IDs are skipped silently.
func (r *ComplaintRepository) BulkResolve(ctx context.Context, ids []string, entry models.StatusEntry, notification models.Notification) (int, error) {
	history, err := models.StatusHistory{entry}.Value()
	if err != nil {
		return 0, err
	}
	note, err := models.NotificationList{notification}.Value()
	if err != nil {
		return 0, err
	}
	const query = `UPDATE complaints
        SET status = $2,
            status_history = status_history || $3::jsonb,
            notifications = notifications || $4::jsonb,
            updated_at = $5
        WHERE id = ANY($1)`
	result, err := r.db.ExecContext(ctx, query, pq.Array(ids), models.ComplaintResolved, history, note, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("bulk resolve complaints: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk resolve rows: %w", err)
	}
	return int(affected), nil
}

// Analytics aggregates complaint counts within the caller's scope.
func (r *ComplaintRepository) Analytics(ctx context.Context, scope models.Scope) (*models.ComplaintAnalytics, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	conditions, args = scopeConditions(scope, conditions, args)
	where := strings.Join(conditions, " AND ")

	analytics := &models.ComplaintAnalytics{StatusCounts: map[string]int{}}

	statusQuery := fmt.Sprintf("SELECT status AS label, COUNT(*) AS count FROM complaints WHERE %s GROUP BY status", where)
	var statusRows []models.LabelCount
	if err := r.db.SelectContext(ctx, &statusRows, statusQuery, args...); err != nil {
		return nil, fmt.Errorf("complaint status counts: %w", err)
	}
	for _, row := range statusRows {
		analytics.StatusCounts[row.Label] = row.Count
		analytics.TotalComplaints += row.Count
	}

	typeQuery := fmt.Sprintf(`SELECT complaint_type AS label, COUNT(*) AS count FROM complaints
        WHERE %s GROUP BY complaint_type ORDER BY count DESC, label ASC LIMIT 5`, where)
	if err := r.db.SelectContext(ctx, &analytics.TopComplaintTypes, typeQuery, args...); err != nil {
		return nil, fmt.Errorf("complaint type counts: %w", err)
	}

	courseQuery := fmt.Sprintf(`SELECT course_code AS label, COUNT(*) AS count FROM complaints
        WHERE %s GROUP BY course_code ORDER BY count DESC, label ASC LIMIT 5`, where)
	if err := r.db.SelectContext(ctx, &analytics.TopCourses, courseQuery, args...); err != nil {
		return nil, fmt.Errorf("complaint course counts: %w", err)
	}

	return analytics, nil
}
