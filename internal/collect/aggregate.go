package collect

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
)

// AggregateFormat is the fixed-width format of every aggregate cell.
const AggregateFormat = "%14.7e"

// FormatAggregate renders the aggregate table: the header as a comment line,
// then one space-separated row per job.
func FormatAggregate(header []string, rows []Row) []byte {
	var buf bytes.Buffer
	buf.WriteString("# ")
	buf.WriteString(strings.Join(header, "  "))
	buf.WriteByte('\n')
	for _, r := range rows {
		for i, v := range r {
			if i > 0 {
				buf.WriteByte(' ')
			}
			fmt.Fprintf(&buf, AggregateFormat, v)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// WriteAggregate writes the aggregate table to path.
func WriteAggregate(path string, header []string, rows []Row) error {
	return os.WriteFile(path, FormatAggregate(header, rows), 0644)
}

// ReadAggregate reads a table written by WriteAggregate.
func ReadAggregate(path string) (header []string, rows []Row, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "#"):
			if header == nil {
				header = SummaryHeader(trimmed)
			}
			continue
		}
		values, err := parseRow(line)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", path, err)
		}
		rows = append(rows, values)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if header == nil {
		header = padHeader(nil)
	}
	return header, rows, nil
}
