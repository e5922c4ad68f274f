package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/san-kum/bbngrid/internal/collect"
)

// ExportData is the JSON form of a batch's results. Not-available cells are null.
type ExportData struct {
	Tag    string               `json:"tag"`
	Header []string             `json:"header"`
	Rows   [][]*float64         `json:"rows"`
	Series map[int]ExportSeries `json:"series,omitempty"`
}

type ExportSeries struct {
	Header []string    `json:"header"`
	Rows   [][]float64 `json:"rows"`
}

func nullable(r collect.Row) []*float64 {
	out := make([]*float64, len(r))
	for i, v := range r {
		v := v
		if collect.IsNotAvailable(v) {
			continue
		}
		out[i] = &v
	}
	return out
}

// ExportJSON writes the results of a batch to w.
func ExportJSON(w io.Writer, tag string, res *collect.Results, withSeries bool) error {
	data := ExportData{
		Tag:    tag,
		Header: res.Header,
		Rows:   make([][]*float64, len(res.Rows)),
	}
	for i, r := range res.Rows {
		data.Rows[i] = nullable(r)
	}
	if withSeries {
		data.Series = make(map[int]ExportSeries, len(res.Series))
		for id, t := range res.Series {
			data.Series[id] = ExportSeries{Header: t.Header, Rows: t.Rows}
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV writes the summary table as CSV with a leading job id column.
// Not-available cells are empty.
func ExportCSV(w io.Writer, res *collect.Results) error {
	cw := csv.NewWriter(w)

	header := append([]string{"id"}, res.Header...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for id, r := range res.Rows {
		record := []string{strconv.Itoa(id)}
		for _, v := range r {
			if collect.IsNotAvailable(v) {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(v, 'e', 7, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
