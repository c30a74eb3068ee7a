package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"golang.org/x/text/encoding/japanese"

	"github.com/shiroemons/go-xp3/internal/xp3tool/mocks"
)

func TestXP3FilePattern(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"data.xp3", true},
		{"patch2.XP3", true},
		{"voice.xp3.bak", false},
		{".xp3", false},
		{"data.dat", false},
	}
	for _, tt := range tests {
		if got := XP3FilePattern.MatchString(tt.name); got != tt.want {
			t.Errorf("XP3FilePattern.MatchString(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFromShiftJIS(t *testing.T) {
	encoded, err := japanese.ShiftJIS.NewEncoder().String("シナリオ/はじめに.ks")
	if err != nil {
		t.Fatalf("encode error = %v", err)
	}
	got, err := FromShiftJIS(encoded)
	if err != nil {
		t.Fatalf("FromShiftJIS() error = %v", err)
	}
	if got != "シナリオ/はじめに.ks" {
		t.Errorf("FromShiftJIS() = %q", got)
	}
}

func TestDecoder(t *testing.T) {
	for _, enc := range []string{"", "utf-8", "UTF8"} {
		d, err := Decoder(enc)
		if err != nil || d != nil {
			t.Errorf("Decoder(%q) = %v, %v; want nil, nil", enc, d != nil, err)
		}
	}
	for _, enc := range []string{"shift_jis", "Shift-JIS", "sjis", "cp932"} {
		d, err := Decoder(enc)
		if err != nil || d == nil {
			t.Errorf("Decoder(%q) = %v, %v; want decoder", enc, d != nil, err)
		}
	}
	if _, err := Decoder("ebcdic"); !errors.Is(err, ErrUnknownEncoding) {
		t.Errorf("Decoder(ebcdic) error = %v, want ErrUnknownEncoding", err)
	}
}

func TestArchiveOutputDir(t *testing.T) {
	got := ArchiveOutputDir("out", filepath.Join("game", "data.xp3"))
	if want := filepath.Join("out", "data"); got != want {
		t.Errorf("ArchiveOutputDir() = %q, want %q", got, want)
	}
}

func TestArchiveFinderWithFS_Find(t *testing.T) {
	fs := mocks.NewMockFileSystem()
	fs.Files[filepath.Join("game", "voice.xp3")] = nil
	fs.Files[filepath.Join("game", "data.xp3")] = nil
	fs.Files[filepath.Join("game", "readme.txt")] = nil
	fs.Dirs[filepath.Join("game", "sub.xp3")] = true

	got, err := NewArchiveFinderWithFS(fs).Find("game")
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	want := []string{filepath.Join("game", "data.xp3"), filepath.Join("game", "voice.xp3")}
	if !slices.Equal(got, want) {
		t.Errorf("Find() = %v, want %v", got, want)
	}

	fs.Files = map[string][]byte{filepath.Join("empty", "readme.txt"): nil}
	if _, err := NewArchiveFinderWithFS(fs).Find("empty"); !errors.Is(err, ErrNoArchives) {
		t.Errorf("Find(empty) error = %v, want ErrNoArchives", err)
	}
	if _, err := NewArchiveFinderWithFS(fs).Find("nowhere"); !errors.Is(err, ErrReadDirectory) {
		t.Errorf("Find(nowhere) error = %v, want ErrReadDirectory", err)
	}
}

func TestOSFileSystem(t *testing.T) {
	fs := NewOSFileSystem()
	dir := t.TempDir()
	sub := filepath.Join(dir, "a", "b")

	if err := fs.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	file := filepath.Join(sub, "test.xp3")
	if err := fs.WriteFile(file, []byte("XP3"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if !fs.FileExists(file) || !FileExists(file) {
		t.Error("FileExists() = false, want true")
	}
	data, err := fs.ReadFile(file)
	if err != nil || string(data) != "XP3" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}

	info, err := fs.Stat(sub)
	if err != nil || !info.IsDir() {
		t.Errorf("Stat() = %v, %v; want dir", info, err)
	}
	entries, err := fs.ReadDir(sub)
	if err != nil || len(entries) != 1 || entries[0].Name() != "test.xp3" {
		t.Errorf("ReadDir() = %v, %v", entries, err)
	}

	got, err := NewArchiveFinderWithFS(fs).Find(sub)
	if err != nil || !slices.Equal(got, []string{file}) {
		t.Errorf("Find() = %v, %v", got, err)
	}

	if fs.FileExists(filepath.Join(dir, "missing")) {
		t.Error("FileExists(missing) = true")
	}
	if _, err := fs.Stat(filepath.Join(dir, "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Stat(missing) error = %v", err)
	}
}
