// Package reporting renders operator-facing survey reports.
package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/7aylabs/popchain/internal/core/domain"
)

// SurveySummary aggregates the presence pipeline state for a report.
type SurveySummary struct {
	GeneratedAt    time.Time
	ReporterCount  uint32
	ActiveReporters uint32
	DeviceCount    uint32
	StateCounts    map[domain.DeviceState]uint32
	PendingCommits int
	RevealCount    int
	TopDevices     []domain.TrackedDevice
}

// PDFExporter renders survey summaries to PDF.
type PDFExporter struct{}

// NewPDFExporter creates a PDF exporter instance.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ExportSurvey generates a presence survey report.
func (e *PDFExporter) ExportSurvey(summary *SurveySummary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, summary)
	e.addOverview(pdf, summary)
	e.addStateBreakdown(pdf, summary)
	e.addTopDevices(pdf, summary)
	e.addFooter(pdf, summary)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, summary *SurveySummary) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 15, "Presence Survey Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 6, "Generated "+summary.GeneratedAt.Format(time.RFC1123), "", 1, "L", false, 0, "")
	pdf.Ln(6)
}

func (e *PDFExporter) addOverview(pdf *gofpdf.Fpdf, summary *SurveySummary) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, "Overview", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	rows := [][2]string{
		{"Registered reporters", fmt.Sprintf("%d (%d active)", summary.ReporterCount, summary.ActiveReporters)},
		{"Tracked devices", fmt.Sprintf("%d", summary.DeviceCount)},
		{"Pending commitments", fmt.Sprintf("%d", summary.PendingCommits)},
		{"Recorded reveals", fmt.Sprintf("%d", summary.RevealCount)},
	}
	for _, row := range rows {
		pdf.CellFormat(60, 7, row[0], "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, row[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addStateBreakdown(pdf *gofpdf.Fpdf, summary *SurveySummary) {
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Devices by State", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	states := []domain.DeviceState{
		domain.DeviceActive, domain.DeviceInactive, domain.DeviceLost, domain.DeviceGhost,
	}
	for _, state := range states {
		pdf.CellFormat(60, 7, state.String(), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, fmt.Sprintf("%d", summary.StateCounts[state]), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addTopDevices(pdf *gofpdf.Fpdf, summary *SurveySummary) {
	if len(summary.TopDevices) == 0 {
		return
	}

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "Most Confident Devices", "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(80, 7, "Device", "1", 0, "L", true, 0, "")
	pdf.CellFormat(25, 7, "Signal", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Confidence", "1", 0, "L", true, 0, "")
	pdf.CellFormat(0, 7, "State", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, device := range summary.TopDevices {
		hash := device.MacHash.Hex()
		pdf.CellFormat(80, 7, hash[:18]+"...", "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 7, device.SignalType.String(), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d%%", device.Confidence), "1", 0, "L", false, 0, "")
		pdf.CellFormat(0, 7, device.State.String(), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, summary *SurveySummary) {
	pdf.SetY(-20)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(150, 150, 150)
	pdf.CellFormat(0, 6, "popchain presence pipeline - device identifiers are one-way hashes", "", 1, "C", false, 0, "")
}
