package util

import (
	"encoding/json"
	"os"
	"path"
	"testing"
)

func TestWriteAndAppend(t *testing.T) {
	file := path.Join(t.TempDir(), "out.txt")
	if err := WriteToFile(file, "a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := AppendToFile(file, "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bs, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(bs) != "a\nb\nc\n" {
		t.Errorf("unexpected content %q", bs)
	}
}

func TestSaveJSON(t *testing.T) {
	file := path.Join(t.TempDir(), "nested", "config.json")
	if err := SaveJSON(file, map[string]int{"runs": 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bs, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := make(map[string]int)
	if err := json.Unmarshal(bs, &out); err != nil || out["runs"] != 3 {
		t.Errorf("unexpected content %s", bs)
	}
}
