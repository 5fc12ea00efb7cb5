// Package corpus reads and writes question corpora.
package corpus

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/quizlint/internal/model"
)

// InputError is a fatal problem with the input corpus. Index is -1 when the
// error is not tied to a single record.
type InputError struct {
	Path  string
	Index int
	ID    string
	Field string
	Msg   string
	Err   error
}

func (e *InputError) Error() string {
	var buf bytes.Buffer
	buf.WriteString(e.Path)
	if e.Index >= 0 {
		fmt.Fprintf(&buf, ": record %d", e.Index)
		if e.ID != "" {
			fmt.Fprintf(&buf, " (id %s)", e.ID)
		}
	}
	if e.Field != "" {
		fmt.Fprintf(&buf, ": field %q", e.Field)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Msg)
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is, or wraps, an InputError
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// Accepted top-level container keys, in lookup order
var containerKeys = []string{"problems", "questions"}

// Accepted keys for the statement and reference fields, in lookup order
var (
	statementKeys = []string{"statement", "question"}
	referenceKeys = []string{"legalReference", "legal_reference", "reference"}
)

// Load reads a corpus file. Each call reads the file afresh.
func Load(path string) (*model.Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InputError{Path: path, Index: -1, Msg: "cannot read corpus", Err: err}
	}
	return Parse(path, data)
}

// Parse decodes corpus JSON. path is only used in error messages.
func Parse(path string, data []byte) (*model.Corpus, error) {
	raws, err := splitRecords(data)
	if err != nil {
		return nil, &InputError{Path: path, Index: -1, Msg: "malformed JSON", Err: err}
	}

	corpus := &model.Corpus{Records: make([]model.QuestionRecord, 0, len(raws))}
	seen := make(map[model.RecordID]int, len(raws))

	for i, raw := range raws {
		rec, ierr := decodeRecord(raw)
		if ierr != nil {
			ierr.Path = path
			ierr.Index = i
			return nil, ierr
		}
		if first, dup := seen[rec.ID]; dup {
			return nil, &InputError{
				Path:  path,
				Index: i,
				ID:    rec.ID.String(),
				Field: "id",
				Msg:   fmt.Sprintf("duplicate id, first used by record %d", first),
			}
		}
		seen[rec.ID] = i
		corpus.Records = append(corpus.Records, rec)
	}

	return corpus, nil
}

// splitRecords accepts {"problems":[...]}, {"questions":[...]} or a bare array
func splitRecords(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	if trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, err
		}
		return arr, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, err
	}
	for _, key := range containerKeys {
		if raw, ok := obj[key]; ok {
			var arr []json.RawMessage
			if err := json.Unmarshal(raw, &arr); err != nil {
				return nil, fmt.Errorf("%q is not an array: %w", key, err)
			}
			return arr, nil
		}
	}
	return nil, fmt.Errorf("expected a record array or an object with a \"problems\" or \"questions\" array")
}

func decodeRecord(raw json.RawMessage) (model.QuestionRecord, *InputError) {
	var rec model.QuestionRecord

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return rec, &InputError{Msg: "record is not an object", Err: err}
	}

	idRaw, ok := fields["id"]
	if !ok {
		return rec, &InputError{Field: "id", Msg: "missing required field"}
	}
	if err := json.Unmarshal(idRaw, &rec.ID); err != nil {
		return rec, &InputError{Field: "id", Msg: "invalid id", Err: err}
	}
	delete(fields, "id")

	fail := func(field, msg string, err error) (model.QuestionRecord, *InputError) {
		return rec, &InputError{ID: rec.ID.String(), Field: field, Msg: msg, Err: err}
	}

	key, stmtRaw := firstKey(fields, statementKeys)
	if key == "" {
		return fail("statement", "missing required field", nil)
	}
	if err := json.Unmarshal(stmtRaw, &rec.Statement); err != nil {
		return fail(key, "must be a string", nil)
	}
	rec.StatementKey = key
	delete(fields, key)

	answerRaw, ok := fields["answer"]
	if !ok {
		return fail("answer", "missing required field", nil)
	}
	if isNull(answerRaw) {
		return fail("answer", "must be a boolean", nil)
	}
	if err := json.Unmarshal(answerRaw, &rec.Answer); err != nil {
		return fail("answer", "must be a boolean", nil)
	}
	delete(fields, "answer")

	catRaw, ok := fields["category"]
	if !ok {
		return fail("category", "missing required field", nil)
	}
	if err := json.Unmarshal(catRaw, &rec.Category); err != nil {
		return fail("category", "must be a string", nil)
	}
	delete(fields, "category")

	if raw, ok := fields["explanation"]; ok {
		if err := json.Unmarshal(raw, &rec.Explanation); err != nil {
			return fail("explanation", "must be a string", nil)
		}
		delete(fields, "explanation")
	}

	if key, raw := firstKey(fields, referenceKeys); key != "" {
		if err := json.Unmarshal(raw, &rec.LegalReference); err != nil {
			return fail(key, "must be a string", nil)
		}
		// Only the key that was read is consumed; the canonical
		// legalReference key is used on output.
		delete(fields, key)
	}

	if len(fields) > 0 {
		rec.Extra = fields
	}
	return rec, nil
}

func firstKey(fields map[string]json.RawMessage, keys []string) (string, json.RawMessage) {
	for _, k := range keys {
		if raw, ok := fields[k]; ok {
			return k, raw
		}
	}
	return "", nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
