package models

import (
	"database/sql/driver"
	"math"
	"time"
)

// ComplaintStatus is the workflow state of a complaint.
type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "Pending"
	ComplaintInProgress ComplaintStatus = "In Progress"
	ComplaintResolved   ComplaintStatus = "Resolved"
	ComplaintEscalated  ComplaintStatus = "Escalated"
)

// ValidComplaintStatus reports whether s is a known complaint state.
func ValidComplaintStatus(s ComplaintStatus) bool {
	switch s {
	case ComplaintPending, ComplaintInProgress, ComplaintResolved, ComplaintEscalated:
		return true
	}
	return false
}

// ComplaintType categorises a grievance.
type ComplaintType string

const (
	ComplaintTypeCAMark             ComplaintType = "CA Mark"
	ComplaintTypeExamMark           ComplaintType = "Exam Mark"
	ComplaintTypeCourseRegistration ComplaintType = "Course Registration"
	ComplaintTypeOther              ComplaintType = "Other"
)

// ValidComplaintType reports whether t is a known complaint type.
func ValidComplaintType(t ComplaintType) bool {
	switch t {
	case ComplaintTypeCAMark, ComplaintTypeExamMark, ComplaintTypeCourseRegistration, ComplaintTypeOther:
		return true
	}
	return false
}

// Recipient is the staff desk a complaint is addressed to.
type Recipient string

const (
	RecipientHOD                Recipient = "HOD"
	RecipientFacultyCoordinator Recipient = "Faculty Coordinator"
	RecipientProgramCoordinator Recipient = "Program Coordinator"
)

// ValidRecipient reports whether r is a known recipient.
func ValidRecipient(r Recipient) bool {
	switch r {
	case RecipientHOD, RecipientFacultyCoordinator, RecipientProgramCoordinator:
		return true
	}
	return false
}

// ComplaintSemester is the academic semester a complaint refers to.
type ComplaintSemester string

const (
	SemesterFirst  ComplaintSemester = "First Semester"
	SemesterSecond ComplaintSemester = "Second Semester"
)

// ValidComplaintSemester reports whether s is a known semester.
func ValidComplaintSemester(s ComplaintSemester) bool {
	return s == SemesterFirst || s == SemesterSecond
}

// ComplaintLevels enumerates the accepted study levels.
var ComplaintLevels = map[string]struct{}{
	"200": {}, "300": {}, "400": {}, "500": {}, "600": {}, "700": {},
}

// StatusEntry is one append-only record of a status transition.
type StatusEntry struct {
	Status    string    `json:"status"`
	UpdatedBy string    `json:"updatedBy"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusHistory is the ordered transition log embedded in the parent row.
type StatusHistory []StatusEntry

// Value implements driver.Valuer.
func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		h = StatusHistory{}
	}
	return marshalJSON(h)
}

// Scan implements sql.Scanner.
func (h *StatusHistory) Scan(src interface{}) error {
	return scanJSON(src, h)
}

// Comment is a single discussion entry on a complaint.
type Comment struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// CommentList is the ordered comment log embedded in the parent row.
type CommentList []Comment

// Value implements driver.Valuer.
func (l CommentList) Value() (driver.Value, error) {
	if l == nil {
		l = CommentList{}
	}
	return marshalJSON(l)
}

// Scan implements sql.Scanner.
func (l *CommentList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// Notification is one entry of the per-entity message ledger.
type Notification struct {
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	Recipient string    `json:"recipient,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NotificationList is the append-only notification ledger embedded in the
// parent row; it never outlives the parent entity.
type NotificationList []Notification

// Value implements driver.Valuer.
func (l NotificationList) Value() (driver.Value, error) {
	if l == nil {
		l = NotificationList{}
	}
	return marshalJSON(l)
}

// Scan implements sql.Scanner.
func (l *NotificationList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// FileList holds attached file references.
type FileList []string

// Value implements driver.Valuer.
func (l FileList) Value() (driver.Value, error) {
	if l == nil {
		l = FileList{}
	}
	return marshalJSON(l)
}

// Scan implements sql.Scanner.
func (l *FileList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// Complaint is a student grievance moving through the triage workflow.
type Complaint struct {
	ID            string            `db:"id" json:"id"`
	Name          string            `db:"name" json:"name"`
	Matricule     string            `db:"matricule" json:"matricule"`
	Program       string            `db:"program" json:"program"`
	Level         string            `db:"level" json:"level"`
	PhoneNumber   string            `db:"phone_number" json:"phoneNumber,omitempty"`
	ComplaintType ComplaintType     `db:"complaint_type" json:"complaintType"`
	CourseCode    string            `db:"course_code" json:"courseCode"`
	Subject       string            `db:"subject" json:"subject"`
	Body          string            `db:"body" json:"body"`
	Recipient     Recipient         `db:"recipient" json:"recipient"`
	Semester      ComplaintSemester `db:"semester" json:"semester"`
	Status        ComplaintStatus   `db:"status" json:"status"`
	CreatedBy     string            `db:"created_by" json:"createdBy"`
	AssignedTo    *string           `db:"assigned_to" json:"assignedTo,omitempty"`
	StatusHistory StatusHistory     `db:"status_history" json:"statusHistory"`
	Comments      CommentList       `db:"comments" json:"comments"`
	Files         FileList          `db:"files" json:"files"`
	Notifications NotificationList  `db:"notifications" json:"notifications"`
	CreatedAt     time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updatedAt"`
}

// IsResolved is derived on read, never stored.
func (c *Complaint) IsResolved() bool {
	return c.Status == ComplaintResolved
}

// DaysOpen is the number of (rounded-up) days since creation.
func (c *Complaint) DaysOpen(now time.Time) int {
	return int(math.Ceil(now.Sub(c.CreatedAt).Hours() / 24))
}

// Scope narrows complaint and transcript queries to what the acting user may
// see: students see their own entities, HODs their program, coordinators
// their program set, admins everything.
type Scope struct {
	Role     UserRole
	UserID   string
	Program  string
	Programs []string
}

// ComplaintFilter captures filtering criteria for listing complaints.
type ComplaintFilter struct {
	Status        *ComplaintStatus
	ComplaintType *ComplaintType
	Search        string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// LabelCount pairs a grouping label with its count in aggregates.
type LabelCount struct {
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}

// ComplaintAnalytics is the aggregate view over a caller's complaint scope.
type ComplaintAnalytics struct {
	TotalComplaints   int            `json:"totalComplaints"`
	StatusCounts      map[string]int `json:"statusCounts"`
	TopComplaintTypes []LabelCount   `json:"topComplaintTypes"`
	TopCourses        []LabelCount   `json:"topCourses"`
}
