package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Input keys recognised on job rows
const (
	FieldID         = "id"
	FieldPostingURL = "posting_url"
	FieldJobURL     = "job_url"
)

// JobRecord is one scraped job posting. Fields holds the row exactly as produced
// upstream and is never modified; extraction output is attached separately.
type JobRecord struct {
	ID         string
	PostingURL string
	Fields     map[string]interface{}
	Extraction *ExtractionResult
}

// NewJobRecordFromMap builds a record from an arbitrary row.
// fallbackID is used when the row carries no id.
func NewJobRecordFromMap(row map[string]interface{}, fallbackID string) JobRecord {
	fields := make(map[string]interface{}, len(row))
	for k, v := range row {
		fields[k] = v
	}

	rec := JobRecord{ID: fallbackID, Fields: fields}
	if id, ok := row[FieldID]; ok && id != nil {
		rec.ID = scalarString(id)
	}
	if u, ok := row[FieldPostingURL].(string); ok && u != "" {
		rec.PostingURL = u
	} else if u, ok := row[FieldJobURL].(string); ok {
		rec.PostingURL = u
	}
	return rec
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Clone returns a shallow copy that shares Fields but not the extraction pointer
func (r JobRecord) Clone() JobRecord {
	r.Extraction = nil
	return r
}

// Flatten returns the output row: original fields plus extraction columns
func (r JobRecord) Flatten() map[string]interface{} {
	out := make(map[string]interface{}, len(r.Fields)+len(ColumnNames)+2)
	for k, v := range r.Fields {
		out[k] = v
	}
	if _, ok := out[FieldID]; !ok {
		out[FieldID] = r.ID
	}
	if _, ok := out[FieldPostingURL]; !ok {
		if _, alias := out[FieldJobURL]; !alias {
			out[FieldPostingURL] = r.PostingURL
		}
	}
	if r.Extraction != nil {
		for k, v := range r.Extraction.Columns() {
			out[k] = v
		}
	}
	return out
}

func (r JobRecord) MarshalJSON() ([]byte, error) {
	out := r.Flatten()
	if r.Extraction != nil {
		out["hiring_managers"] = r.Extraction.HiringManagers
	}
	return json.Marshal(out)
}

func (r *JobRecord) UnmarshalJSON(data []byte) error {
	var row map[string]interface{}
	if err := json.Unmarshal(data, &row); err != nil {
		return err
	}
	*r = NewJobRecordFromMap(row, "")
	return nil
}
