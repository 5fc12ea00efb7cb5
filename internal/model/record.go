package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// RecordID identifies a QuestionRecord. Corpora in the wild use both integer
// and string ids, so the JSON form is preserved on output.
type RecordID struct {
	value   string
	numeric bool
}

// IntID returns a numeric record id
func IntID(n int64) RecordID {
	return RecordID{value: strconv.FormatInt(n, 10), numeric: true}
}

// StringID returns a string record id
func StringID(s string) RecordID {
	return RecordID{value: s}
}

// String returns the id as text
func (id RecordID) String() string {
	return id.value
}

// Less orders ids: numeric ids compare as integers and sort before string
// ids, string ids compare lexically.
func (id RecordID) Less(other RecordID) bool {
	if id.numeric && other.numeric {
		a, errA := strconv.ParseInt(id.value, 10, 64)
		b, errB := strconv.ParseInt(other.value, 10, 64)
		if errA == nil && errB == nil {
			return a < b
		}
	}
	if id.numeric != other.numeric {
		return id.numeric
	}
	return id.value < other.value
}

// MarshalJSON writes numeric ids as JSON numbers and the rest as strings
func (id RecordID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a JSON integer or string
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("id is null")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return fmt.Errorf("id is empty")
		}
		*id = StringID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be an integer or string: %w", err)
	}
	v, err := n.Int64()
	if err != nil {
		return fmt.Errorf("id must be an integer or string: %s", n)
	}
	*id = IntID(v)
	return nil
}

// QuestionRecord is a single true/false statement in the corpus
type QuestionRecord struct {
	ID             RecordID `json:"id"`
	Statement      string   `json:"statement"`
	Answer         bool     `json:"answer"`
	Category       string   `json:"category"`
	Explanation    string   `json:"explanation,omitempty"`
	LegalReference string   `json:"legalReference,omitempty"`

	// StatementKey is the JSON key the statement was read from ("statement"
	// or "question"); it is reused when the record is written back.
	StatementKey string `json:"-"`

	// Extra holds fields this tool does not interpret, written back unchanged
	Extra map[string]json.RawMessage `json:"-"`
}

// CombinedText returns the statement, explanation and reference joined for
// marker scanning.
func (r QuestionRecord) CombinedText() string {
	return r.Statement + "\n" + r.Explanation + "\n" + r.LegalReference
}

// ReferenceText returns the text searched for citations
func (r QuestionRecord) ReferenceText() string {
	return r.Explanation + "\n" + r.LegalReference
}

// StatementLength returns the statement length in characters (runes)
func (r QuestionRecord) StatementLength() int {
	return utf8.RuneCountInString(r.Statement)
}

// Snippet returns the first n runes of the statement
func (r QuestionRecord) Snippet(n int) string {
	runes := []rune(r.Statement)
	if len(runes) <= n {
		return r.Statement
	}
	return string(runes[:n]) + "…"
}

// MarshalJSON merges the known fields over Extra
func (r QuestionRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+6)
	for k, v := range r.Extra {
		out[k] = v
	}

	statementKey := r.StatementKey
	if statementKey == "" {
		statementKey = "statement"
	}

	out["id"] = r.ID
	out[statementKey] = r.Statement
	out["answer"] = r.Answer
	out["category"] = r.Category
	if r.Explanation != "" {
		out["explanation"] = r.Explanation
	}
	if r.LegalReference != "" {
		out["legalReference"] = r.LegalReference
	}

	return json.Marshal(out)
}

// Corpus is an ordered collection of records processed in one run
type Corpus struct {
	Records []QuestionRecord `json:"problems"`
	Meta    *CorpusMeta      `json:"metadata,omitempty"`
}

// Index maps ids to positions in the corpus
func (c *Corpus) Index() map[RecordID]int {
	idx := make(map[RecordID]int, len(c.Records))
	for i, r := range c.Records {
		idx[r.ID] = i
	}
	return idx
}

// Without returns a new corpus without the given ids, preserving order
func (c *Corpus) Without(removed map[RecordID]bool) *Corpus {
	kept := make([]QuestionRecord, 0, len(c.Records))
	for _, r := range c.Records {
		if !removed[r.ID] {
			kept = append(kept, r)
		}
	}
	return &Corpus{Records: kept, Meta: c.Meta}
}

// CorpusMeta is attached to the final corpus file
type CorpusMeta struct {
	RunID         string `json:"run_id,omitempty"`
	Source        string `json:"source,omitempty"`
	OriginalCount int    `json:"original_count"`
	FinalCount    int    `json:"final_count"`
	RemovedCount  int    `json:"removed_count"`
	FixedCount    int    `json:"fixed_count"`
	GeneratedAt   string `json:"generated_at"`
}
