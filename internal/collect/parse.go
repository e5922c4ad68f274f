package collect

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// NotAvailable fills summary cells of jobs that produced no data.
var NotAvailable = math.NaN()

// IsNotAvailable reports whether v is the not-available sentinel.
func IsNotAvailable(v float64) bool { return math.IsNaN(v) }

// MinHeaderWidth is the narrowest summary header. Missing names read "undefined".
const MinHeaderWidth = 6

const undefinedColumn = "undefined"

// Row is one job's summary values, aligned to the batch header.
type Row []float64

// Table is a header plus rows of equal meaning per column.
type Table struct {
	Header []string
	Rows   [][]float64
}

// ParseFloat reads a simulator number. Fortran D exponents become e and stray
// letters such as unit suffixes are dropped. An exponent letter is kept only
// when a digit or sign follows it.
func ParseFloat(tok string) (float64, error) {
	if v, err := strconv.ParseFloat(tok, 64); err == nil {
		return v, nil
	}
	runes := []rune(tok)
	var b strings.Builder
	for i, r := range runes {
		switch {
		case strings.ContainsRune("eEdD", r):
			if i+1 < len(runes) && startsExponent(runes[i+1]) {
				b.WriteRune('e')
			}
		case unicode.IsLetter(r):
		default:
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, tok)
	}
	return v, nil
}

func startsExponent(r rune) bool {
	return unicode.IsDigit(r) || r == '+' || r == '-'
}

func parseRow(line string) ([]float64, error) {
	fields := strings.Fields(line)
	row := make([]float64, len(fields))
	for i, f := range fields {
		v, err := ParseFloat(f)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// HeaderNames splits a "# a b c" header line into column names.
func HeaderNames(line string) []string {
	var names []string
	for _, f := range strings.Fields(line) {
		f = strings.TrimPrefix(f, "#")
		if f != "" {
			names = append(names, f)
		}
	}
	return names
}

// SummaryHeader reads a summary header, renaming N_nu to N_eff and padding
// to MinHeaderWidth.
func SummaryHeader(line string) []string {
	names := HeaderNames(line)
	for i, n := range names {
		names[i] = strings.ReplaceAll(n, "N_nu", "N_eff")
	}
	return padHeader(names)
}

func padHeader(names []string) []string {
	for len(names) < MinHeaderWidth {
		names = append(names, undefinedColumn)
	}
	return names
}

// ReadSummary parses a per-job summary artifact: a header line followed by
// one row of values.
func ReadSummary(path string) (header []string, row Row, err error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", path, ErrEmptyArtifact)
	}

	declared := len(HeaderNames(lines[0]))
	header = SummaryHeader(lines[0])
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) == "" {
			continue
		}
		values, err := parseRow(l)
		if err != nil {
			return header, nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(values) < declared {
			return header, nil, fmt.Errorf("%s: %w: %d of %d values", path, ErrShortRow, len(values), declared)
		}
		return header, values, nil
	}
	return header, nil, fmt.Errorf("%s: %w", path, ErrEmptyArtifact)
}

// ReadSeries parses a per-job time-series artifact.
func ReadSeries(path string) (Table, error) {
	lines, err := readLines(path)
	if err != nil {
		return Table{}, err
	}
	if len(lines) == 0 {
		return Table{}, fmt.Errorf("%s: %w", path, ErrEmptyArtifact)
	}

	t := Table{Header: HeaderNames(lines[0])}
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) == "" {
			continue
		}
		values, err := parseRow(l)
		if err != nil {
			return Table{}, fmt.Errorf("%s: %w", path, err)
		}
		t.Rows = append(t.Rows, values)
	}
	if len(t.Rows) == 0 {
		return Table{}, fmt.Errorf("%s: %w", path, ErrEmptyArtifact)
	}
	return t, nil
}

// align pads r with NotAvailable or truncates it to width.
func align(r Row, width int) Row {
	out := make(Row, width)
	for i := range out {
		if i < len(r) {
			out[i] = r[i]
		} else {
			out[i] = NotAvailable
		}
	}
	return out
}

func placeholder(width int) Row { return align(nil, width) }
