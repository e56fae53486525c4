package drift

// Severity of a mismatch between the metrics and the month distributions.
// The two are sourced by separate queries, so neither is corrected; issues
// are only reported.

const (
	SeverityInfo = "INFO"
	SeverityWarn = "WARN"
)

const (
	KindColumnTotalExceedsRows = "column_total_exceeds_rows"
	KindTableMissing           = "table_missing_from_metrics"
	KindColumnAllNull          = "column_all_null"
)

func SeverityForChange(kind string) string {
	switch kind {
	case KindColumnTotalExceedsRows, KindTableMissing:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// MessageForChange returns a concise message for the given kind.
func MessageForChange(kind string) string {
	switch kind {
	case KindColumnTotalExceedsRows:
		return "month counts exceed the table row count; data changed during the run"
	case KindTableMissing:
		return "table has a time column but no metrics row; table changed during the run"
	case KindColumnAllNull:
		return "table has rows but the column holds no dated values"
	default:
		return ""
	}
}
