package asc

import (
	"errors"
	"strings"
	"testing"
)

func TestParseSkipsHeaderAndMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		"Instrument: FT-IR-2000",
		"Sample: catalyst-A",
		"0.0\t9.9", // before #DATA, ignored
		"#DATA",
		"0.0\t0.105",
		"",
		"1.0\t0.104",
		"not\ta number",
		"2.0\t0.103\textra-column",
		"3.0",
	}, "\n")

	samples, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	if samples[0].Time != 0 || samples[0].Intensity != 0.105 {
		t.Fatalf("unexpected first sample: %+v", samples[0])
	}
	if samples[2].Time != 2 || samples[2].Intensity != 0.103 {
		t.Fatalf("expected extra columns ignored, got %+v", samples[2])
	}
}

func TestParseNoData(t *testing.T) {
	if _, err := Parse(strings.NewReader("header only\nno marker\n")); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
	if _, err := Parse(strings.NewReader("#DATA\njunk line\n")); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData for marker without rows, got %v", err)
	}
}
