package interfaces

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"catalysis-cloud/internal/activity/application"
	activity "catalysis-cloud/internal/activity/domain"
)

// BuildReportPDF renders a minimal PDF for an analysis report.
func BuildReportPDF(report *application.AnalysisReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Catalyst Activity Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Sample: %s", report.SampleName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Recording: %s", report.RecordingID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Protocol: %s", report.ProtocolName))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Model: %s", report.Model))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Steps detected: %d/%d", report.DetectedSteps, report.TotalSteps))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", report.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if report.Warning != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Warning: %s", report.Warning))
		pdf.Ln(5)
	}

	for _, reactor := range report.Reactors {
		pdf.Ln(4)
		pdf.SetFont("Arial", "B", 10)
		pdf.Cell(0, 6, fmt.Sprintf("Reactor %d", reactor.ReactorID))
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 10)

		if reactor.Fitted() {
			fit := reactor.Fit
			pdf.Cell(0, 6, fmt.Sprintf("Sigmoid: b=%.5f c=%.2f a=%.2f d=%.2f R2=%.4f",
				fit.B, fit.C, fit.A, fit.D, fit.RSquared))
			pdf.Ln(6)
			for _, tx := range reactor.TXValues {
				if tx.OK {
					pdf.Cell(0, 6, fmt.Sprintf("%s = %.1f C", tx.Label, tx.Temperature))
				} else {
					pdf.Cell(0, 6, fmt.Sprintf("%s = n/a", tx.Label))
				}
				pdf.Ln(5)
			}
		} else {
			pdf.Cell(0, 6, fmt.Sprintf("Fit failed: %s", reactor.FitError))
			pdf.Ln(6)
		}

		// Per-step table
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(40, 6, "Temperature (C)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "Avg Intensity", "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, "Conversion (%)", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, "Data Points", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 10)
		for _, sample := range reactor.Samples {
			pdf.CellFormat(40, 6, fmt.Sprintf("%.1f", sample.Temperature), "1", 0, "R", false, 0, "")
			pdf.CellFormat(45, 6, fmt.Sprintf("%.6f", sample.MeanIntensity), "1", 0, "R", false, 0, "")
			pdf.CellFormat(45, 6, fmt.Sprintf("%.2f", sample.Conversion), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 6, strconv.Itoa(sample.DataPoints), "1", 0, "R", false, 0, "")
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportXLSX renders an XLSX workbook for an analysis report: a
// summary sheet, one data sheet per reactor, and a fitted curve sheet
// for charting.
func BuildReportXLSX(report *application.AnalysisReport) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	f.SetSheetName("Sheet1", summarySheet)

	_ = f.SetCellValue(summarySheet, "A1", "Catalyst Activity Report")
	_ = f.SetCellValue(summarySheet, "A3", "Sample")
	_ = f.SetCellValue(summarySheet, "B3", report.SampleName)
	_ = f.SetCellValue(summarySheet, "A4", "Recording")
	_ = f.SetCellValue(summarySheet, "B4", report.RecordingID)
	_ = f.SetCellValue(summarySheet, "A5", "Protocol")
	_ = f.SetCellValue(summarySheet, "B5", report.ProtocolName)
	_ = f.SetCellValue(summarySheet, "A6", "Model")
	_ = f.SetCellValue(summarySheet, "B6", string(report.Model))
	_ = f.SetCellValue(summarySheet, "A7", "Steps detected")
	_ = f.SetCellValue(summarySheet, "B7", fmt.Sprintf("%d/%d", report.DetectedSteps, report.TotalSteps))
	_ = f.SetCellValue(summarySheet, "A8", "Generated")
	_ = f.SetCellValue(summarySheet, "B8", report.CreatedAt.Format(time.RFC3339))
	if report.Warning != "" {
		_ = f.SetCellValue(summarySheet, "A9", "Warning")
		_ = f.SetCellValue(summarySheet, "B9", report.Warning)
	}

	summaryRow := 11
	for _, reactor := range report.Reactors {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("Reactor %d", reactor.ReactorID))
		if reactor.Fitted() {
			fit := reactor.Fit
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", summaryRow), fit.B)
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", summaryRow), fit.C)
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", summaryRow), fit.RSquared)
			col := 'E'
			for _, tx := range reactor.TXValues {
				if tx.OK {
					_ = f.SetCellValue(summarySheet, fmt.Sprintf("%c%d", col, summaryRow), fmt.Sprintf("%s=%.1f", tx.Label, tx.Temperature))
				} else {
					_ = f.SetCellValue(summarySheet, fmt.Sprintf("%c%d", col, summaryRow), fmt.Sprintf("%s=n/a", tx.Label))
				}
				col++
			}
		} else {
			_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", summaryRow), "fit failed: "+reactor.FitError)
		}
		summaryRow++

		dataSheet := fmt.Sprintf("reactor_%d", reactor.ReactorID)
		_, _ = f.NewSheet(dataSheet)
		_ = f.SetCellValue(dataSheet, "A1", "Temperature")
		_ = f.SetCellValue(dataSheet, "B1", "Avg_Intensity")
		_ = f.SetCellValue(dataSheet, "C1", "Conversion_%")
		_ = f.SetCellValue(dataSheet, "D1", "Data_Points")
		for i, sample := range reactor.Samples {
			row := i + 2
			_ = f.SetCellValue(dataSheet, fmt.Sprintf("A%d", row), sample.Temperature)
			_ = f.SetCellValue(dataSheet, fmt.Sprintf("B%d", row), sample.MeanIntensity)
			_ = f.SetCellValue(dataSheet, fmt.Sprintf("C%d", row), sample.Conversion)
			_ = f.SetCellValue(dataSheet, fmt.Sprintf("D%d", row), sample.DataPoints)
		}

		if reactor.Fitted() {
			curveSheet := fmt.Sprintf("curve_%d", reactor.ReactorID)
			_, _ = f.NewSheet(curveSheet)
			_ = f.SetCellValue(curveSheet, "A1", "Temperature")
			_ = f.SetCellValue(curveSheet, "B1", "Fitted_Conversion_%")
			minT, maxT := activity.CurveRange(temperaturesOf(reactor.Samples))
			temps, convs := reactor.Fit.Curve(minT, maxT, 0)
			for i := range temps {
				row := i + 2
				_ = f.SetCellValue(curveSheet, fmt.Sprintf("A%d", row), temps[i])
				_ = f.SetCellValue(curveSheet, fmt.Sprintf("B%d", row), convs[i])
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReportCSV renders the per-step data as CSV. Multiple reactors are
// stacked with a Reactor column.
func BuildReportCSV(report *application.AnalysisReport) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Reactor", "Temperature", "Avg_Intensity", "Conversion_%", "Data_Points"}); err != nil {
		return nil, err
	}
	for _, reactor := range report.Reactors {
		for _, sample := range reactor.Samples {
			record := []string{
				strconv.Itoa(reactor.ReactorID),
				strconv.FormatFloat(sample.Temperature, 'f', -1, 64),
				strconv.FormatFloat(sample.MeanIntensity, 'f', -1, 64),
				strconv.FormatFloat(sample.Conversion, 'f', -1, 64),
				strconv.Itoa(sample.DataPoints),
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func temperaturesOf(samples []activity.ActivitySample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Temperature
	}
	return out
}
