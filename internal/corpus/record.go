// Package corpus reads entity records from JSONL and turns them into
// analysed index documents. It also keeps the raw field text that the
// cross-encoder reads.
package corpus

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Entity-Ranking-Platform/pkg/errors"
)

const maxIDLength = 255

// Record is one corpus line. Every field except ID may be absent.
type Record struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Text     string   `json:"text"`
	Keywords Keywords `json:"keywords"`
}

// Keywords accepts either a JSON array of strings or a single string.
type Keywords []string

func (k *Keywords) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*k = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*k = list
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("keywords must be a string or a list of strings")
	}
	*k = Keywords{single}
	return nil
}

func (k Keywords) String() string { return strings.Join(k, " ") }

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for _, field := range []string{"id", "title", "text", "keywords"} {
		if msg, ok := e.Fields[field]; ok {
			parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
		}
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return apperrors.ErrMalformedDocument }

// Validate checks the identifier; content fields may all be empty.
func (r Record) Validate() error {
	errs := make(map[string]string)
	id := strings.TrimSpace(r.ID)
	if id == "" {
		errs["id"] = "id is required"
	} else if len(id) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// decodeLine parses one JSONL line. Records wrapped as {"root": {...}} are
// unwrapped when the top level carries no id.
func decodeLine(line []byte) (Record, error) {
	var envelope struct {
		Record
		Root *Record `json:"root"`
	}
	if err := json.Unmarshal(line, &envelope); err != nil {
		return Record{}, fmt.Errorf("%w: %v", apperrors.ErrMalformedDocument, err)
	}
	rec := envelope.Record
	if rec.ID == "" && envelope.Root != nil {
		rec = *envelope.Root
	}
	rec.ID = strings.TrimSpace(rec.ID)
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}
