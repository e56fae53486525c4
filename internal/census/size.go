package census

import (
	"math"
	"strconv"
)

var binaryUnits = []string{"KiB", "MiB", "GiB", "TiB", "PiB", "EiB"}

// FormatSize renders a byte count with binary prefixes, two decimals at most:
// 0 -> "0 bytes", 1024 -> "1 KiB", 1500000 -> "1.43 MiB".
func FormatSize(n int64) string {
	if n < 1024 {
		if n == 1 {
			return "1 byte"
		}
		return strconv.FormatInt(n, 10) + " bytes"
	}

	value := float64(n)
	unit := ""
	for _, u := range binaryUnits {
		if value < 1024 {
			break
		}
		value /= 1024
		unit = u
	}
	rounded := math.Round(value*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + unit
}
