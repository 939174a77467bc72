package task

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTaskFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write task file: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeTaskFile(t, `
version: "1"
source: todo-scan
tasks:
  - id: t1
    title: Fix login bug
    description: The handler returns 500 on empty passwords.
    files:
      - auth/login.go
    priority: 80
    complexity: simple
  - id: t2
    title: Add pagination
    priority: 60
    complexity: moderate
    source: issue
`)

	tasks, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("got %d tasks, want 2", len(tasks))
	}
	if tasks[0].ID != "t1" || tasks[0].Priority != 80 || tasks[0].Complexity != ComplexitySimple {
		t.Errorf("unexpected first task: %+v", tasks[0])
	}
	if tasks[0].Source != "todo-scan" {
		t.Errorf("task without a source should inherit the file source, got %q", tasks[0].Source)
	}
	if tasks[1].Source != "issue" {
		t.Errorf("task source should not be overridden, got %q", tasks[1].Source)
	}
	if tasks[0].DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt should default to load time")
	}
}

func TestLoadFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing id", "tasks:\n  - title: No id\n"},
		{"missing title", "tasks:\n  - id: t1\n"},
		{"negative priority", "tasks:\n  - id: t1\n    title: T\n    priority: -1\n"},
		{"unknown complexity", "tasks:\n  - id: t1\n    title: T\n    complexity: heroic\n"},
		{"duplicate id", "tasks:\n  - id: t1\n    title: A\n  - id: t1\n    title: B\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTaskFile(t, tt.content)
			if _, err := LoadFile(path); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	path := writeTaskFile(t, "tasks: [\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("expected a parse error")
	}
}
