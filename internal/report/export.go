package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"hostelattendance/internal/apperr"
	"hostelattendance/internal/attendance"
)

// Columns is the header of every export.
var Columns = []string{"Name", "Student ID", "Email", "Room", "Date", "Check In", "Check Out", "Duration", "Method"}

// DeletedName stands in for the name of a person who no longer exists.
const DeletedName = "(deleted user)"

const clockLayout = "15:04:05"

// Row is one export line.
type Row []string

// Rows renders entries as export rows with times in loc.
func Rows(entries []attendance.Entry, loc *time.Location) []Row {
	if loc == nil {
		loc = time.UTC
	}
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = DeletedName
		}
		rows = append(rows, Row{
			name,
			e.BadgeID,
			e.Email,
			e.RoomNumber,
			e.Day.Format(attendance.DateLayout),
			clock(e.CheckIn, loc),
			clock(e.CheckOut, loc),
			FormatDuration(e.Record),
			string(e.Origin),
		})
	}
	return rows
}

func clock(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format(clockLayout)
}

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv, pdf and xlsx in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatPDF, FormatXLSX:
		return f, nil
	default:
		return "", apperr.Invalid(fmt.Sprintf("unsupported export format %q", s))
	}
}

// ContentType is the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Filename is the attachment name for f.
func (f Format) Filename() string { return "attendance." + string(f) }

// Write renders rows in format f.
func Write(w io.Writer, f Format, rows []Row) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, rows)
	case FormatPDF:
		return WritePDF(w, rows)
	case FormatXLSX:
		return WriteXLSX(w, rows)
	default:
		return apperr.Invalid(fmt.Sprintf("unsupported export format %q", f))
	}
}

// WriteCSV writes UTF-8 CSV with a byte order mark so spreadsheet programs
// pick the right encoding.
func WriteCSV(w io.Writer, rows []Row) error {
	var b bytes.Buffer
	tw := transform.NewWriter(&b, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(tw)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	_, err := w.Write(b.Bytes())
	return err
}

var pdfWidths = []float64{40, 25, 55, 15, 24, 22, 22, 20, 17}

// WritePDF writes a landscape A4 table, repeating the header on every page.
func WritePDF(w io.Writer, rows []Row) error {
	pdf := fpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	pdf.SetHeaderFuncMode(func() {
		if pdf.PageNo() == 1 {
			pdf.SetFont("Helvetica", "B", 16)
			pdf.CellFormat(0, 10, "Attendance Report", "", 1, "C", false, 0, "")
			pdf.Ln(2)
		}
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, col := range Columns {
			pdf.CellFormat(pdfWidths[i], 7, col, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 8)
	for _, r := range rows {
		for i, v := range r {
			pdf.CellFormat(pdfWidths[i], 6, fit(pdf, tr(v), pdfWidths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(rows) == 0 {
		pdf.CellFormat(0, 8, "No attendance records.", "", 1, "L", false, 0, "")
	}
	return pdf.Output(w)
}

// fit truncates s so it fits a cell of width mm.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	const pad = 2
	if pdf.GetStringWidth(s) <= width-pad {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"..") > width-pad {
		s = s[:len(s)-1]
	}
	return s + ".."
}

const sheetName = "Attendance"

// WriteXLSX writes a single-sheet workbook with a bold, frozen header row.
func WriteXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(r))
		for j, v := range r {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &vals); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "A", "C", 24); err != nil {
		return err
	}
	return f.Write(w)
}
