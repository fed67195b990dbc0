package source

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParse_Lines(t *testing.T) {
	in := strings.Join([]string{
		"\uFEFF# sources",
		"https://a.example/sub",
		"",
		"  https://b.example/sub  ",
		"https://a.example/sub",
		"# https://c.example/sub",
	}, "\n")
	got, err := Parse(strings.NewReader(in), FormatLines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"https://a.example/sub", "https://b.example/sub"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}

func TestParse_Blocks(t *testing.T) {
	in := strings.Join([]string{
		"https://a.example/very/long/",
		"path/sub.txt",
		"",
		"",
		"https://b.example/sub",
		"",
		"https://a.example/very/long/",
		"path/sub.txt",
	}, "\r\n")
	got, err := Parse(strings.NewReader(in), FormatBlocks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"https://a.example/very/long/path/sub.txt", "https://b.example/sub"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%q, want=%q", got, want)
	}
}

func TestParse_Empty(t *testing.T) {
	got, err := Parse(strings.NewReader("\n# nothing\n"), FormatLines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len=%d, want=0", len(got))
	}
}

func TestLoad_File(t *testing.T) {
	p := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(p, []byte("https://a.example/sub\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(p, FormatLines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != "https://a.example/sub" {
		t.Fatalf("got=%q", got)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"), FormatLines)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T: %v", err, err)
	}
	if le.AppError.Code != "INPUT_NOT_FOUND" {
		t.Fatalf("code=%q, want=%q", le.AppError.Code, "INPUT_NOT_FOUND")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatLines {
		t.Fatalf("ParseFormat(\"\")=%q,%v", f, err)
	}
	if f, err := ParseFormat("Blocks"); err != nil || f != FormatBlocks {
		t.Fatalf("ParseFormat(Blocks)=%q,%v", f, err)
	}
	if _, err := ParseFormat("csv"); err == nil {
		t.Fatalf("expected error")
	}
}
