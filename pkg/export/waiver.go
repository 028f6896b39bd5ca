package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// WaiverDocument holds everything needed to render a signed liability waiver.
type WaiverDocument struct {
	ParticipantName string
	GuardianName    string
	BodyText        string
	SignedAt        time.Time
	// SignaturePNG is the raw PNG bytes of the captured signature image.
	SignaturePNG []byte
}

// WaiverRenderer produces signed waiver PDFs.
type WaiverRenderer struct{}

// NewWaiverRenderer constructs a waiver renderer.
func NewWaiverRenderer() *WaiverRenderer {
	return &WaiverRenderer{}
}

// Render creates the waiver PDF with the agreement text, participant details,
// and the captured signature image.
func (r *WaiverRenderer) Render(doc WaiverDocument) ([]byte, error) {
	if doc.BodyText == "" {
		return nil, fmt.Errorf("waiver requires body text")
	}
	if len(doc.SignaturePNG) == 0 {
		return nil, fmt.Errorf("waiver requires a signature image")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "Liability Waiver and Release", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, doc.BodyText, "", "L", false)
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 7, "Participant:", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, doc.ParticipantName, "", 1, "L", false, 0, "")
	if doc.GuardianName != "" {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 7, "Parent/Guardian:", "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 7, doc.GuardianName, "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 7, "Date signed:", "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, doc.SignedAt.Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("signature", opts, bytes.NewReader(doc.SignaturePNG))
	if pdf.Err() {
		return nil, fmt.Errorf("register signature image: %w", pdf.Error())
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 7, "Signature:", "", 1, "L", false, 0, "")
	pdf.ImageOptions("signature", 15, pdf.GetY(), 70, 0, true, opts, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render waiver pdf: %w", err)
	}
	return buf.Bytes(), nil
}
