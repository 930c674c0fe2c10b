package models

import (
	"database/sql/driver"
	"regexp"
	"time"
)

// TranscriptStatus is the workflow state of a transcript request.
type TranscriptStatus string

const (
	TranscriptProcessing TranscriptStatus = "Processing"
	TranscriptCompleted  TranscriptStatus = "Completed"
	TranscriptFailed     TranscriptStatus = "Failed"
)

// ValidTranscriptStatus reports whether s is a known transcript state.
func ValidTranscriptStatus(s TranscriptStatus) bool {
	switch s {
	case TranscriptProcessing, TranscriptCompleted, TranscriptFailed:
		return true
	}
	return false
}

// ModeOfTreatment is the processing tier chosen by the student.
type ModeOfTreatment string

const (
	ModeSuperFast    ModeOfTreatment = "Super Fast"
	ModeFast         ModeOfTreatment = "Fast"
	ModeNormal       ModeOfTreatment = "Normal"
	ModeVerification ModeOfTreatment = "Verification"
)

// ValidModeOfTreatment reports whether m is a known tier.
func ValidModeOfTreatment(m ModeOfTreatment) bool {
	switch m {
	case ModeSuperFast, ModeFast, ModeNormal, ModeVerification:
		return true
	}
	return false
}

// TranscriptSemester is the semester covered by the transcript.
type TranscriptSemester string

const (
	TranscriptSemesterFirst  TranscriptSemester = "First"
	TranscriptSemesterSecond TranscriptSemester = "Second"
)

// ValidTranscriptSemester reports whether s is a known semester.
func ValidTranscriptSemester(s TranscriptSemester) bool {
	return s == TranscriptSemesterFirst || s == TranscriptSemesterSecond
}

// DeliveryMethod is how the finished transcript reaches its consumer.
type DeliveryMethod string

const (
	DeliveryCollect DeliveryMethod = "Collect"
	DeliveryMail    DeliveryMethod = "Mail"
	DeliveryExpress DeliveryMethod = "Express"
	// DeliveryEmail is forced for verification requests; it is not selectable.
	DeliveryEmail DeliveryMethod = "Email Delivery"
)

// ValidDeliveryMethod reports whether d is a client-selectable method.
func ValidDeliveryMethod(d DeliveryMethod) bool {
	switch d {
	case DeliveryCollect, DeliveryMail, DeliveryExpress:
		return true
	}
	return false
}

// transcriptLevelPattern matches L200 through L700.
var transcriptLevelPattern = regexp.MustCompile(`^L[2-7]00$`)

// ValidTranscriptLevel reports whether the level matches L200..L700.
func ValidTranscriptLevel(level string) bool {
	return transcriptLevelPattern.MatchString(level)
}

// transcriptFees maps a processing tier to its fee. Verification is priced
// separately (fixed 10000) and never appears here.
var transcriptFees = map[ModeOfTreatment]int{
	ModeNormal:    1000,
	ModeFast:      2000,
	ModeSuperFast: 3000,
}

// VerificationFee is the fixed price of a verification request.
const VerificationFee = 10000

// FeeFor returns the server-derived amount for a tier.
func FeeFor(mode ModeOfTreatment) int {
	if mode == ModeVerification {
		return VerificationFee
	}
	return transcriptFees[mode]
}

// overdueThresholds keys the overdue cutoff on the chosen tier.
var overdueThresholds = map[ModeOfTreatment]time.Duration{
	ModeSuperFast:    24 * time.Hour,
	ModeFast:         48 * time.Hour,
	ModeVerification: 72 * time.Hour,
	ModeNormal:       30 * 24 * time.Hour,
}

// PaymentDetails is the mobile-money payment embedded in the request row.
type PaymentDetails struct {
	Provider      string     `json:"provider"`
	PhoneNumber   string     `json:"phoneNumber"`
	TransactionID string     `json:"transactionId,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	Amount        int        `json:"amount,omitempty"`
}

// Value implements driver.Valuer.
func (p PaymentDetails) Value() (driver.Value, error) {
	return marshalJSON(p)
}

// Scan implements sql.Scanner.
func (p *PaymentDetails) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// TranscriptRequest is a paid transcript order moving through processing.
type TranscriptRequest struct {
	ID              string             `db:"id" json:"id"`
	Matricule       string             `db:"matricule" json:"matricule"`
	StudentName     string             `db:"student_name" json:"studentName"`
	Level           string             `db:"level" json:"level"`
	Faculty         string             `db:"faculty" json:"faculty"`
	Program         string             `db:"program" json:"program"`
	Semester        TranscriptSemester `db:"semester" json:"semester"`
	ModeOfTreatment ModeOfTreatment    `db:"mode_of_treatment" json:"modeOfTreatment"`
	ProcessingTime  ModeOfTreatment    `db:"processing_time" json:"processingTime"`
	Amount          int                `db:"amount" json:"amount"`
	NumberOfCopies  int                `db:"number_of_copies" json:"numberOfCopies"`
	DeliveryMethod  DeliveryMethod     `db:"delivery_method" json:"deliveryMethod"`
	VerifierEmail   *string            `db:"verifier_email" json:"verifierEmail,omitempty"`
	Status          TranscriptStatus   `db:"status" json:"status"`
	PaymentDetails  PaymentDetails     `db:"payment_details" json:"paymentDetails"`
	StatusHistory   StatusHistory      `db:"status_history" json:"statusHistory"`
	Notifications   NotificationList   `db:"notifications" json:"notifications"`
	PdfURL          *string            `db:"pdf_url" json:"pdfUrl,omitempty"`
	DateOfRequest   time.Time          `db:"date_of_request" json:"dateOfRequest"`
	CompletedAt     *time.Time         `db:"completed_at" json:"completedAt,omitempty"`
	CreatedBy       string             `db:"created_by" json:"createdBy"`
	CreatedAt       time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updatedAt"`
}

// ApplyModeOfTreatment derives processingTime, amount and (for verification)
// the delivery method from the chosen tier. Amounts are always server-derived
// and never trusted from client input.
func (t *TranscriptRequest) ApplyModeOfTreatment() {
	switch t.ModeOfTreatment {
	case ModeSuperFast:
		t.ProcessingTime = ModeSuperFast
		t.Amount = FeeFor(ModeSuperFast)
	case ModeFast:
		t.ProcessingTime = ModeFast
		t.Amount = FeeFor(ModeFast)
	case ModeNormal:
		t.ProcessingTime = ModeNormal
		t.Amount = FeeFor(ModeNormal)
	case ModeVerification:
		// Verification is processed on the normal queue but priced flat and
		// delivered to the verifier by email.
		t.ProcessingTime = ModeNormal
		t.Amount = VerificationFee
		t.DeliveryMethod = DeliveryEmail
	}
}

// IsOverdue is derived on read: true while a Processing request has exceeded
// its tier's turnaround threshold. Terminal states are never overdue.
func (t *TranscriptRequest) IsOverdue(now time.Time) bool {
	if t.Status != TranscriptProcessing {
		return false
	}
	threshold, ok := overdueThresholds[t.ModeOfTreatment]
	if !ok {
		return false
	}
	return now.Sub(t.DateOfRequest) > threshold
}

// TranscriptFilter captures filtering criteria for listing transcript requests.
type TranscriptFilter struct {
	Status    *TranscriptStatus
	Mode      *ModeOfTreatment
	Matricule string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// TranscriptStatistics is the aggregate view over a caller's transcript scope.
type TranscriptStatistics struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
	ByTier   map[string]int `json:"byTier"`
}
