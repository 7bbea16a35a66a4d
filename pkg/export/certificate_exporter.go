package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// CertificateAward holds the fields printed on a single certificate page.
type CertificateAward struct {
	FullName    string
	NationalID  string
	ProjectName string
}

// CertificateExporter renders participation certificates, one landscape page
// per award.
type CertificateExporter struct {
	EventName string
	IssuedBy  string
}

// NewCertificateExporter builds a certificate exporter with event metadata.
func NewCertificateExporter(eventName, issuedBy string) *CertificateExporter {
	if eventName == "" {
		eventName = "Expoferia"
	}
	return &CertificateExporter{EventName: eventName, IssuedBy: issuedBy}
}

// Render produces one certificate page per award.
func (e *CertificateExporter) Render(awards []CertificateAward, issuedOn string) ([]byte, error) {
	if len(awards) == 0 {
		return nil, fmt.Errorf("certificate export requires at least one award")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)

	for _, award := range awards {
		pdf.AddPage()

		pdf.SetFont("Arial", "B", 26)
		pdf.CellFormat(0, 16, "CERTIFICATE OF PARTICIPATION", "", 1, "C", false, 0, "")
		pdf.Ln(4)

		pdf.SetFont("Arial", "", 13)
		pdf.CellFormat(0, 9, e.EventName, "", 1, "C", false, 0, "")
		pdf.Ln(10)

		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(0, 8, "This certificate is awarded to", "", 1, "C", false, 0, "")
		pdf.Ln(2)

		pdf.SetFont("Arial", "B", 20)
		pdf.CellFormat(0, 12, award.FullName, "", 1, "C", false, 0, "")

		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, fmt.Sprintf("ID %s", award.NationalID), "", 1, "C", false, 0, "")
		pdf.Ln(6)

		pdf.SetFont("Arial", "", 12)
		pdf.CellFormat(0, 8, "for participating in the project", "", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "I", 15)
		pdf.CellFormat(0, 10, award.ProjectName, "", 1, "C", false, 0, "")
		pdf.Ln(12)

		pdf.SetFont("Arial", "", 10)
		if issuedOn != "" {
			pdf.CellFormat(0, 7, fmt.Sprintf("Issued on %s", issuedOn), "", 1, "C", false, 0, "")
		}
		if e.IssuedBy != "" {
			pdf.CellFormat(0, 7, e.IssuedBy, "", 1, "C", false, 0, "")
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificates: %w", err)
	}
	return buf.Bytes(), nil
}
