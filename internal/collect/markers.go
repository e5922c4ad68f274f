package collect

import (
	"bufio"
	"os"
	"strings"
)

// Markers are the literal lines the simulator prints at the end of a run.
type Markers struct {
	Success string `yaml:"success" mapstructure:"success"`
	Failed  string `yaml:"failed" mapstructure:"failed"`
	Check   string `yaml:"check" mapstructure:"check"`
	Manual  string `yaml:"manual" mapstructure:"manual"`
}

func DefaultMarkers() Markers {
	return Markers{
		Success: "Run completed successfully",
		Failed:  "Run failed with the following error:",
		Check:   "Please, check the info file",
		Manual:  "Please, consult the manual.",
	}
}

func (m Markers) withDefaults() Markers {
	d := DefaultMarkers()
	if m.Success == "" {
		m.Success = d.Success
	}
	if m.Failed == "" {
		m.Failed = d.Failed
	}
	if m.Check == "" {
		m.Check = d.Check
	}
	if m.Manual == "" {
		m.Manual = d.Manual
	}
	return m
}

func (m Markers) checkRequired(line string) bool {
	return strings.Contains(line, m.Check) || strings.Contains(line, m.Manual)
}

// Classify scans a log. It reports whether the success marker is present
// and, when the simulator asked for a check, the lines between the last
// failure marker and the last check-required marker. Without a failure
// marker the block starts after the first line, which is the simulator banner.
func (m Markers) Classify(lines []string) (succeeded bool, diagnostic []string) {
	lastFail, lastCheck := 0, -1
	for i, l := range lines {
		if strings.Contains(l, m.Success) {
			succeeded = true
		}
		if strings.Contains(l, m.Failed) {
			lastFail = i
		}
		if m.checkRequired(l) {
			lastCheck = i
		}
	}
	if succeeded || lastCheck < 0 {
		return succeeded, nil
	}
	if lastFail+1 <= lastCheck {
		diagnostic = append([]string(nil), lines[lastFail+1:lastCheck]...)
	}
	return false, diagnostic
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
