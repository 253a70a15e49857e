package logging

import (
	"fmt"
	"math"
	"strings"
)

// MetricRow is one table row. Values are pre-formatted so rows can mix
// counts, rates and free text.
type MetricRow struct {
	Label  string
	Values []string // one per header
	Unit   string
	Note   string // optional trailing note, e.g. "default"
}

// MetricTable renders aligned columns for terminal output: device lists,
// discovered bulbs and the end-of-session report.
type MetricTable struct {
	Headers []string
	Rows    []MetricRow
}

// NewMetricTable creates an empty table with the given value headers.
func NewMetricTable(headers ...string) *MetricTable {
	return &MetricTable{Headers: headers}
}

// AddRow appends a row of pre-formatted values.
func (t *MetricTable) AddRow(label string, values []string, unit, note string) {
	t.Rows = append(t.Rows, MetricRow{Label: label, Values: values, Unit: unit, Note: note})
}

// AddMetricRow appends a row of numbers formatted to decimals places.
// NaN renders as MissingValue.
func (t *MetricTable) AddMetricRow(label string, decimals int, unit string, values ...float64) {
	formatted := make([]string, len(values))
	for i, v := range values {
		formatted[i] = formatMetric(v, decimals)
	}
	t.AddRow(label, formatted, unit, "")
}

// String renders the table. Labels are left-aligned, values right-aligned,
// units follow the last value column and notes come last.
func (t *MetricTable) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	hasNote := false
	labelWidth, unitWidth := 0, 0
	valueWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		valueWidths[i] = len(h)
	}
	for _, row := range t.Rows {
		labelWidth = max(labelWidth, len(row.Label))
		unitWidth = max(unitWidth, len(row.Unit))
		if row.Note != "" {
			hasNote = true
		}
		for i, v := range row.Values {
			if i < len(valueWidths) {
				valueWidths[i] = max(valueWidths[i], len(v))
			}
		}
	}

	var sb strings.Builder

	sb.WriteString(strings.Repeat(" ", labelWidth+2))
	for i, h := range t.Headers {
		fmt.Fprintf(&sb, "%*s  ", valueWidths[i], h)
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		fmt.Fprintf(&sb, "%-*s  ", labelWidth, row.Label)
		for i := range t.Headers {
			v := MissingValue
			if i < len(row.Values) && row.Values[i] != "" {
				v = row.Values[i]
			}
			fmt.Fprintf(&sb, "%*s  ", valueWidths[i], v)
		}
		if unitWidth > 0 {
			fmt.Fprintf(&sb, "%-*s ", unitWidth, row.Unit)
		}
		if hasNote {
			sb.WriteString(row.Note)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// MissingValue stands in for unavailable values.
const MissingValue = "-"

// formatMetric formats value to decimals places, switching to scientific
// notation for tiny non-zero values.
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	if value != 0 && math.Abs(value) < 0.0001 {
		return fmt.Sprintf("%.2e", value)
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatRate formats count per second over secs.
func formatRate(count uint64, secs float64) string {
	if secs <= 0 {
		return MissingValue
	}
	return formatMetric(float64(count)/secs, 1)
}
