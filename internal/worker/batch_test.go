package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/quizlint/internal/model"
)

// mockProcessor implements Processor
type mockProcessor struct {
	failOn string
}

func (m *mockProcessor) ProcessFile(ctx context.Context, path string) (*model.RunReport, error) {
	time.Sleep(5 * time.Millisecond) // Simulate work
	if m.failOn != "" && strings.HasSuffix(path, m.failOn) {
		return nil, errors.New("process error")
	}
	return &model.RunReport{Source: path}, nil
}

func TestBatchProcessor_ProcessPaths(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2)

	paths := []string{"a.json", "b.json", "c.json", "d.json", "e.json"}
	results := processor.ProcessPaths(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.Path, res.Error)
			continue
		}
		if res.Path != paths[i] {
			t.Errorf("result %d: expected path %s, got %s", i, paths[i], res.Path)
		}
		if res.Report == nil || res.Report.Source != paths[i] {
			t.Errorf("result %d: report does not match path", i)
		}
	}
}

func TestBatchProcessor_ProcessPaths_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{failOn: "bad.json"}, 2)

	results := processor.ProcessPaths(context.Background(), []string{"good.json", "bad.json"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("unexpected error: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("expected error, got nil")
	}
	if results[1].Report != nil {
		t.Error("expected nil report on error")
	}
}

func TestBatchProcessor_ProcessPaths_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockProcessor{}, 2)

	results := processor.ProcessPaths(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadPathsFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "corpus/a.json\n# comment\n/abs/b.json\n   \n corpus/a.json \n"

	list := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(list, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	paths, err := ReadPathsFromFile(list)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	expected := []string{filepath.Join(dir, "corpus", "a.json"), "/abs/b.json"}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %v", len(expected), paths)
	}
	for i, p := range paths {
		if p != expected[i] {
			t.Errorf("expected path %s at index %d, got %s", expected[i], i, p)
		}
	}
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPathsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestFileResult_GetError(t *testing.T) {
	r1 := &FileResult{Path: "a.json"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("load failed")
	r2 := &FileResult{Path: "a.json", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}

func TestBatchProcessor_ProcessList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "list.txt")
	if err := os.WriteFile(list, []byte("a.json\nb.json\n# c.json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	processor := NewBatchProcessor(&mockProcessor{}, 2)
	results, err := processor.ProcessList(context.Background(), list)
	if err != nil {
		t.Fatalf("ProcessList failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	if _, err := processor.ProcessList(context.Background(), filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing list file")
	}
}
