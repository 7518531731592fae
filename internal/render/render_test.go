package render

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatTable {
		t.Errorf("empty format: %v, %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("json format: %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Errorf("xml should be rejected")
	}
}

func TestRenderTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatTable)
	err := r.RenderTable(
		[]string{"ENTITY", "CREATED"},
		[][]string{{"group", "12"}, {"location", "3"}},
	)
	if err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ENTITY") {
		t.Errorf("header = %q", lines[0])
	}
	if !strings.Contains(lines[2], "group") {
		t.Errorf("row = %q", lines[2])
	}
}

func TestStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatJSON)
	if err := r.Structured(map[string]int{"created": 2}, nil, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\"created\": 2") {
		t.Errorf("json output = %q", buf.String())
	}
}
