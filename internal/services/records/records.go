// Package records reads job record files and writes augmented output.
package records

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/hirescout/internal/models"
)

// Format is an output encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a user supplied format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want json or csv)", s)
}

// FormatForPath picks the format from a file extension, defaulting to JSON
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// LoadFile reads job records from a .json, .yaml or .yml file
func LoadFile(path string) ([]models.JobRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read records file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".json", "":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported records file type %s", filepath.Ext(path))
	}
}

// ParseJSON accepts either an array of rows or an object with a "records" array
func ParseJSON(data []byte) ([]models.JobRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return []models.JobRecord{}, nil
	}

	var rows []map[string]interface{}
	if trimmed[0] == '{' {
		var wrapper struct {
			Records []map[string]interface{} `json:"records"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse records JSON: %w", err)
		}
		rows = wrapper.Records
	} else if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse records JSON: %w", err)
	}
	return FromRows(rows), nil
}

// ParseYAML accepts the same shapes as ParseJSON
func ParseYAML(data []byte) ([]models.JobRecord, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse records YAML: %w", err)
	}
	if len(root.Content) == 0 {
		return []models.JobRecord{}, nil
	}

	var rows []map[string]interface{}
	doc := root.Content[0]
	if doc.Kind == yaml.MappingNode {
		var wrapper struct {
			Records []map[string]interface{} `yaml:"records"`
		}
		if err := doc.Decode(&wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse records YAML: %w", err)
		}
		rows = wrapper.Records
	} else if err := doc.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse records YAML: %w", err)
	}
	return FromRows(rows), nil
}

// FromRows converts raw rows into records. Rows without an id get their
// 1-based position.
func FromRows(rows []map[string]interface{}) []models.JobRecord {
	out := make([]models.JobRecord, len(rows))
	for i, row := range rows {
		out[i] = models.NewJobRecordFromMap(row, strconv.Itoa(i+1))
	}
	return out
}

// Write encodes augmented records in the given format
func Write(w io.Writer, records []models.JobRecord, format Format) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, records)
	default:
		return WriteJSON(w, records)
	}
}

// WriteFile writes records to path, creating parent directories
func WriteFile(path string, records []models.JobRecord, format Format) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := Write(f, records, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteJSON writes records as an indented JSON array
func WriteJSON(w io.Writer, records []models.JobRecord) error {
	if records == nil {
		records = []models.JobRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}

// WriteCSV writes one row per record. Input columns come first in sorted
// order, then the extraction columns.
func WriteCSV(w io.Writer, records []models.JobRecord) error {
	rows := make([]map[string]interface{}, len(records))
	extraction := make(map[string]bool, len(models.ColumnNames))
	for _, name := range models.ColumnNames {
		extraction[name] = true
	}

	seen := make(map[string]bool)
	var inputColumns []string
	for i, record := range records {
		rows[i] = record.Flatten()
		for key := range rows[i] {
			if !seen[key] && !extraction[key] {
				seen[key] = true
				inputColumns = append(inputColumns, key)
			}
		}
	}
	sort.Strings(inputColumns)
	header := append(inputColumns, models.ColumnNames...)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		line := make([]string, len(header))
		for i, column := range header {
			line[i] = cell(row[column])
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	case []interface{}, map[string]interface{}:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}
