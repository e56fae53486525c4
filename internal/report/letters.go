package report

import "strconv"

// ColumnLetter converts a 1-based column index to its spreadsheet label using
// bijective base 26: 1 -> A, 26 -> Z, 27 -> AA, 702 -> ZZ, 703 -> AAA.
// Indexes below 1 have no label.
func ColumnLetter(n int) string {
	var buf []byte
	for n > 0 {
		n--
		buf = append(buf, byte('A'+n%26))
		n /= 26
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// cellRef addresses a cell by 1-based column and row, e.g. (3, 2) -> "C2".
func cellRef(col, row int) string {
	return ColumnLetter(col) + strconv.Itoa(row)
}

// rangeRef addresses the rectangle between two cells, e.g. "A1:F4".
func rangeRef(fromCol, fromRow, toCol, toRow int) string {
	return cellRef(fromCol, fromRow) + ":" + cellRef(toCol, toRow)
}
