package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ppiankov/quizlint/internal/model"
)

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIDs []string
	}{
		{
			name:    "problems object",
			content: `{"problems":[{"id":1,"statement":"a","answer":true,"category":"c"},{"id":2,"statement":"b","answer":false,"category":"c"}]}`,
			wantIDs: []string{"1", "2"},
		},
		{
			name:    "questions object",
			content: `{"questions":[{"id":"q-7","question":"a","answer":true,"category":"c"}]}`,
			wantIDs: []string{"q-7"},
		},
		{
			name:    "bare array",
			content: `[{"id":3,"statement":"a","answer":false,"category":"c"}]`,
			wantIDs: []string{"3"},
		},
		{
			name:    "empty array",
			content: `[]`,
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(writeFixture(t, "corpus.json", tt.content))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(c.Records) != len(tt.wantIDs) {
				t.Fatalf("expected %d records, got %d", len(tt.wantIDs), len(c.Records))
			}
			for i, id := range tt.wantIDs {
				if c.Records[i].ID.String() != id {
					t.Errorf("record %d: expected id %s, got %s", i, id, c.Records[i].ID)
				}
			}
		})
	}
}

func TestLoad_Fields(t *testing.T) {
	content := `[{"id":5,"statement":"営業許可が必要","answer":true,"category":"営業許可関連",
		"explanation":"第3条による","legal_reference":"風営法第3条","difficulty":"hard","tags":["a","b"]}]`
	c, err := Load(writeFixture(t, "corpus.json", content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	r := c.Records[0]
	if r.Statement != "営業許可が必要" || !r.Answer || r.Category != "営業許可関連" {
		t.Errorf("unexpected record: %+v", r)
	}
	if r.Explanation != "第3条による" {
		t.Errorf("explanation = %q", r.Explanation)
	}
	if r.LegalReference != "風営法第3条" {
		t.Errorf("legal reference = %q", r.LegalReference)
	}
	if len(r.Extra) != 2 {
		t.Errorf("expected 2 extra fields, got %v", r.Extra)
	}
	if string(r.Extra["difficulty"]) != `"hard"` {
		t.Errorf("extra difficulty = %s", r.Extra["difficulty"])
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantField string
		wantMsg   string
	}{
		{"malformed json", `{"problems":[`, "", "malformed JSON"},
		{"not a corpus", `{"items":[]}`, "", "malformed JSON"},
		{"missing id", `[{"statement":"a","answer":true,"category":"c"}]`, "id", "missing"},
		{"missing statement", `[{"id":1,"answer":true,"category":"c"}]`, "statement", "missing"},
		{"missing answer", `[{"id":1,"statement":"a","category":"c"}]`, "answer", "missing"},
		{"missing category", `[{"id":1,"statement":"a","answer":true}]`, "category", "missing"},
		{"string answer", `[{"id":1,"statement":"a","answer":"yes","category":"c"}]`, "answer", "boolean"},
		{"null answer", `[{"id":1,"statement":"a","answer":null,"category":"c"}]`, "answer", "boolean"},
		{"float id", `[{"id":1.5,"statement":"a","answer":true,"category":"c"}]`, "id", "invalid"},
		{
			"duplicate id",
			`[{"id":1,"statement":"a","answer":true,"category":"c"},{"id":1,"statement":"b","answer":true,"category":"c"}]`,
			"id", "duplicate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFixture(t, "corpus.json", tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			var ie *InputError
			if !errors.As(err, &ie) {
				t.Fatalf("expected *InputError, got %T", err)
			}
			if ie.Field != tt.wantField {
				t.Errorf("field = %q, want %q", ie.Field, tt.wantField)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !IsInputError(err) {
		t.Fatalf("expected InputError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped ErrNotExist, got %v", err)
	}
}

func TestIsInputError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("disk full"), false},
		{"direct", &InputError{Field: "id", Msg: "missing required field"}, true},
		{"wrapped twice", fmt.Errorf("batch: %w", fmt.Errorf("load a.json: %w", &InputError{Msg: "bad"})), true},
	}
	for _, tt := range tests {
		if got := IsInputError(tt.err); got != tt.want {
			t.Errorf("%s: IsInputError = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLoad_NoCrossCallState(t *testing.T) {
	first, err := Load(writeFixture(t, "a.json", `[{"id":1,"statement":"one","answer":true,"category":"c"}]`))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Load(writeFixture(t, "b.json", `[{"id":2,"statement":"two","answer":false,"category":"d"},{"id":3,"statement":"three","answer":true,"category":"d"}]`))
	if err != nil {
		t.Fatal(err)
	}

	if len(first.Records) != 1 || first.Records[0].Statement != "one" {
		t.Errorf("first corpus changed: %+v", first.Records)
	}
	if len(second.Records) != 2 || second.Records[0].Statement != "two" {
		t.Errorf("second corpus wrong: %+v", second.Records)
	}
}

func TestSave_RoundTripKeepsExtra(t *testing.T) {
	in := `{"questions":[{"id":"a1","question":"文","answer":false,"category":"c","source":{"page":3}}]}`
	c, err := Load(writeFixture(t, "in.json", in))
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "nested", "final.json")
	meta := &model.CorpusMeta{RunID: "r1", OriginalCount: 1, FinalCount: 1, GeneratedAt: "2026-01-01T00:00:00Z"}
	if err := Save(out, c, meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Problems []map[string]json.RawMessage `json:"problems"`
		Metadata model.CorpusMeta             `json:"metadata"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc.Metadata.RunID != "r1" || doc.Metadata.FinalCount != 1 {
		t.Errorf("unexpected metadata: %+v", doc.Metadata)
	}
	rec := doc.Problems[0]
	if string(rec["id"]) != `"a1"` {
		t.Errorf("id = %s", rec["id"])
	}
	if _, ok := rec["question"]; !ok {
		t.Error("expected statement written back under its original key")
	}
	var source struct {
		Page int `json:"page"`
	}
	if err := json.Unmarshal(rec["source"], &source); err != nil || source.Page != 3 {
		t.Errorf("extra field lost: %s", rec["source"])
	}

	again, err := Load(out)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Records[0].Statement != "文" {
		t.Errorf("reloaded statement = %q", again.Records[0].Statement)
	}

	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}
