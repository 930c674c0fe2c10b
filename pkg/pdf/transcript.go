package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// TranscriptData carries everything the renderer needs to produce the document.
type TranscriptData struct {
	Matricule       string
	StudentName     string
	Level           string
	Faculty         string
	Program         string
	Semester        string
	ModeOfTreatment string
	NumberOfCopies  int
	RequestedAt     time.Time
	CompletedAt     time.Time
	VerifierEmail   string
}

// TranscriptRenderer renders transcript requests into PDF documents.
type TranscriptRenderer struct{}

// NewTranscriptRenderer constructs a renderer.
func NewTranscriptRenderer() *TranscriptRenderer {
	return &TranscriptRenderer{}
}

// Render produces the transcript PDF bytes.
func (r *TranscriptRenderer) Render(data TranscriptData) ([]byte, error) {
	if data.Matricule == "" || data.StudentName == "" {
		return nil, fmt.Errorf("transcript requires matricule and student name")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "ACADEMIC TRANSCRIPT", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, strings.ToUpper(data.Faculty), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Matricule", data.Matricule},
		{"Student Name", data.StudentName},
		{"Level", data.Level},
		{"Program", data.Program},
		{"Semester", data.Semester},
		{"Mode of Treatment", data.ModeOfTreatment},
		{"Copies", fmt.Sprintf("%d", data.NumberOfCopies)},
		{"Requested", data.RequestedAt.Format("2006-01-02")},
		{"Completed", data.CompletedAt.Format("2006-01-02")},
	}
	if data.VerifierEmail != "" {
		rows = append(rows, [2]string{"Verifier", data.VerifierEmail})
	}

	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(50, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(130, 8, row[1], "1", 1, "", false, 0, "")
	}

	pdf.Ln(10)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, fmt.Sprintf("Generated on %s", time.Now().UTC().Format(time.RFC1123)), "", 1, "L", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render transcript pdf: %w", err)
	}
	return buf.Bytes(), nil
}
