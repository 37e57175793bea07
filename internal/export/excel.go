// Package export renders bookings as Excel workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"receptionist/internal/ledger"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding bookings.
const SheetName = "Bookings"

// Columns of the bookings sheet.
var Columns = []string{"ID", "Patient", "Branch", "Day", "Date", "Slot", "Created", "Calendar link"}

// Writer builds a workbook sheet by sheet.
type Writer struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

// NewWriter creates a workbook writer.
func NewWriter() *Writer {
	return &Writer{file: excelize.NewFile()}
}

// AddSheet adds a sheet and makes it current.
func (w *Writer) AddSheet(name string) error {
	// Excel limit
	if len(name) > 31 {
		name = name[:31]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers to the current sheet.
func (w *Writer) WriteHeader(columns []string) error {
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	row := w.currentRow
	if err := w.WriteRow(values); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	start, _ := excelize.CoordinatesToCellName(1, row)
	end, _ := excelize.CoordinatesToCellName(len(columns), row)
	return w.file.SetCellStyle(w.currentSheet, start, end, style)
}

// WriteRow writes a data row to the current sheet.
func (w *Writer) WriteRow(row []any) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

// Save writes the workbook to wr.
func (w *Writer) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases resources.
func (w *Writer) Close() error {
	return w.file.Close()
}

// WriteBookings writes bookings, in the given order, as a single-sheet workbook.
func WriteBookings(wr io.Writer, bookings []ledger.Booking) error {
	w := NewWriter()
	defer w.Close()

	if err := w.AddSheet(SheetName); err != nil {
		return err
	}
	if err := w.WriteHeader(Columns); err != nil {
		return err
	}
	for _, b := range bookings {
		row := []any{
			b.ID,
			b.PatientName,
			b.Branch.String(),
			b.Day.String(),
			b.Date.Format("2006-01-02"),
			b.Slot.Label(),
			b.CreatedAt.Format(time.RFC3339),
			b.CalendarLink,
		}
		if err := w.WriteRow(row); err != nil {
			return fmt.Errorf("write booking %s: %w", b.ID, err)
		}
	}
	return w.Save(wr)
}
