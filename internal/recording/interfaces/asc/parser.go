// Package asc parses FT-IR .asc export files. The instrument writes an
// arbitrary header followed by a #DATA marker and tab-separated
// time/intensity rows.
package asc

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"

	recording "catalysis-cloud/internal/recording/domain"
)

const dataMarker = "#DATA"

// ErrNoData is returned when the file contains no parseable data rows.
var ErrNoData = errors.New("asc: no data rows")

// Parse reads an .asc stream and returns its samples. Header content
// before the #DATA marker is skipped and malformed rows are discarded,
// matching the instrument's loose export format.
func Parse(r io.Reader) ([]recording.Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	inData := false
	var samples []recording.Sample
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == dataMarker {
			inData = true
			continue
		}
		if !inData || line == "" {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		t, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			continue
		}
		intensity, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		samples = append(samples, recording.Sample{Time: t, Intensity: intensity})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrNoData
	}
	return samples, nil
}
