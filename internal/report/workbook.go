package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/alexanderjulianmartinez/data-census/internal/census"
)

const (
	MetricsSheet      = "Metrics"
	DistributionSheet = "Time Distributions"

	// excelize names the first sheet of a new file "Sheet1".
	defaultSheet = "Sheet1"
	// numFmtThousands is the built-in "#,##0" number format.
	numFmtThousands = 3
)

// ErrWrite is returned when the workbook cannot be formatted or saved.
var ErrWrite = errors.New("write failure")

var metricsHeaders = []string{"schema", "table", "row_count", "column_count", "byte_size", "human_size"}

// colorScale matches the spreadsheet default three-stop scale: red for the
// minimum, yellow at the median, green for the maximum.
var colorScale = []excelize.ConditionalFormatOptions{{
	Type:     "3_color_scale",
	Criteria: "=",
	MinType:  "min",
	MidType:  "percentile",
	MidValue: "50",
	MaxType:  "max",
	MinColor: "#F8696B",
	MidColor: "#FFEB84",
	MaxColor: "#63BE7B",
}}

type styles struct {
	header  int
	number  int
	rightAl int
}

// Workbook is the two-sheet census report.
type Workbook struct {
	f      *excelize.File
	width  float64
	styles styles
	closed bool
}

// New creates a workbook holding the Metrics and Time Distributions sheets,
// in that order.
func New(columnWidth float64) (*Workbook, error) {
	f := excelize.NewFile()
	w := &Workbook{f: f, width: columnWidth}

	if err := f.SetSheetName(defaultSheet, MetricsSheet); err != nil {
		f.Close()
		return nil, writeErr("create metrics sheet", err)
	}
	if _, err := f.NewSheet(DistributionSheet); err != nil {
		f.Close()
		return nil, writeErr("create distribution sheet", err)
	}
	if err := w.initStyles(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Workbook) initStyles() error {
	var err error
	if w.styles.header, err = w.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	}); err != nil {
		return writeErr("header style", err)
	}
	if w.styles.number, err = w.f.NewStyle(&excelize.Style{
		NumFmt: numFmtThousands,
	}); err != nil {
		return writeErr("number style", err)
	}
	if w.styles.rightAl, err = w.f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "right"},
	}); err != nil {
		return writeErr("alignment style", err)
	}
	return nil
}

// WriteMetrics fills the Metrics sheet with one row per table.
func (w *Workbook) WriteMetrics(rows []census.TableMetrics) error {
	sheet := MetricsSheet
	lastCol := len(metricsHeaders)
	lastRow := len(rows) + 1

	if err := w.writeHeader(sheet, metricsHeaders); err != nil {
		return err
	}
	for i, r := range rows {
		values := []interface{}{r.Schema, r.Name, r.RowCount, r.ColumnCount, r.ByteSize, r.HumanSize}
		if err := w.f.SetSheetRow(sheet, cellRef(1, i+2), &values); err != nil {
			return writeErr("metrics row", err)
		}
	}

	if err := w.f.SetColWidth(sheet, ColumnLetter(1), ColumnLetter(lastCol), w.width); err != nil {
		return writeErr("metrics column width", err)
	}
	if err := w.f.AutoFilter(sheet, rangeRef(1, 1, lastCol, lastRow), nil); err != nil {
		return writeErr("metrics autofilter", err)
	}
	if len(rows) == 0 {
		return nil
	}

	// row_count, column_count and byte_size
	for col := 3; col <= 5; col++ {
		if err := w.f.SetConditionalFormat(sheet, rangeRef(col, 2, col, lastRow), colorScale); err != nil {
			return writeErr("metrics color scale", err)
		}
	}
	if err := w.f.SetCellStyle(sheet, cellRef(3, 2), cellRef(5, lastRow), w.styles.number); err != nil {
		return writeErr("metrics number format", err)
	}
	if err := w.f.SetCellStyle(sheet, cellRef(6, 2), cellRef(6, lastRow), w.styles.rightAl); err != nil {
		return writeErr("metrics alignment", err)
	}
	return nil
}

// WriteDistribution fills the Time Distributions sheet: one row per month,
// one column per "table.column". Absent counts stay blank.
func (w *Workbook) WriteDistribution(dist *census.Distribution) error {
	sheet := DistributionSheet
	months := dist.Months()
	keys := dist.Columns()
	lastCol := len(keys) + 1
	lastRow := len(months) + 1
	if lastCol > excelize.MaxColumns {
		return writeErr("distribution sheet",
			fmt.Errorf("%d time columns exceed the sheet limit of %d", len(keys), excelize.MaxColumns-1))
	}

	headers := append([]string{"month"}, keys...)
	if err := w.writeHeader(sheet, headers); err != nil {
		return err
	}
	for i, month := range months {
		row := i + 2
		if err := w.f.SetCellValue(sheet, cellRef(1, row), month); err != nil {
			return writeErr("distribution month", err)
		}
		for j, key := range keys {
			rows, ok := dist.Count(month, key)
			if !ok {
				continue
			}
			if err := w.f.SetCellValue(sheet, cellRef(j+2, row), rows); err != nil {
				return writeErr("distribution cell", err)
			}
		}
	}

	if err := w.f.SetColWidth(sheet, ColumnLetter(1), ColumnLetter(lastCol), w.width); err != nil {
		return writeErr("distribution column width", err)
	}
	if err := w.f.AutoFilter(sheet, rangeRef(1, 1, lastCol, lastRow), nil); err != nil {
		return writeErr("distribution autofilter", err)
	}
	if len(months) == 0 || len(keys) == 0 {
		return nil
	}

	for col := 2; col <= lastCol; col++ {
		if err := w.f.SetConditionalFormat(sheet, rangeRef(col, 2, col, lastRow), colorScale); err != nil {
			return writeErr("distribution color scale", err)
		}
	}
	if err := w.f.SetCellStyle(sheet, cellRef(2, 2), cellRef(lastCol, lastRow), w.styles.number); err != nil {
		return writeErr("distribution number format", err)
	}
	return nil
}

func (w *Workbook) writeHeader(sheet string, headers []string) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := w.f.SetSheetRow(sheet, cellRef(1, 1), &values); err != nil {
		return writeErr(sheet+" header", err)
	}
	if err := w.f.SetCellStyle(sheet, cellRef(1, 1), cellRef(len(headers), 1), w.styles.header); err != nil {
		return writeErr(sheet+" header style", err)
	}
	err := w.f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: cellRef(1, 2),
		ActivePane:  "bottomLeft",
	})
	if err != nil {
		return writeErr(sheet+" freeze header", err)
	}
	return nil
}

// SaveAs writes the workbook to path with Metrics as the active sheet.
func (w *Workbook) SaveAs(path string) error {
	w.f.SetActiveSheet(0)
	if err := w.f.SaveAs(path); err != nil {
		return writeErr("save "+path, err)
	}
	return nil
}

// WriteTo streams the workbook to out.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	w.f.SetActiveSheet(0)
	n, err := w.f.WriteTo(out)
	if err != nil {
		return n, writeErr("write workbook", err)
	}
	return n, nil
}

// Close releases the workbook. Calling it again is a no-op.
func (w *Workbook) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Close(); err != nil {
		return writeErr("close workbook", err)
	}
	return nil
}

func writeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWrite, op, err)
}
