package xp3

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

func TestArchive_FolderReadAndWrite(t *testing.T) {
	dataDir := t.TempDir()
	xp3Dir := t.TempDir()
	files := map[string][]byte{
		"dummyfile1": []byte("dummydata1"),
		"dummyfile2": []byte("dummydata2"),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dataDir, name), data, 0o644))
	}

	xp3Path := filepath.Join(xp3Dir, "nested", "data.xp3")
	w, err := Create(xp3Path)
	require.NoError(t, err)
	_, err = w.AddFolder(context.Background(), dataDir, false, false)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	a, err := Open(xp3Path)
	require.NoError(t, err)
	defer a.Close()

	entries, err := a.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		got, err := a.Read(e, ReadOptions{})
		require.NoError(t, err)
		assert.Equal(t, files[e.Path()], got)
	}

	out := filepath.Join(xp3Dir, "out")
	report, err := a.ExtractAll(context.Background(), out, ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Extracted)
	assert.Empty(t, report.Failures)
	for name, data := range files {
		got, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err)
		assert.Equal(t, data, got)
	}
}

func TestArchive_AddFolderPaths(t *testing.T) {
	mtime := time.UnixMilli(1700000000500)
	fsys := fstest.MapFS{
		"game/data/scenario/first.ks": {Data: []byte("*start"), ModTime: mtime},
		"game/data/bgm/title.ogg":     {Data: []byte("OggS"), ModTime: mtime},
		"game/readme.txt":             {Data: []byte("readme"), ModTime: mtime},
	}

	tests := []struct {
		name       string
		flatten    bool
		timestamps bool
		include    []string
		want       []string
	}{
		{
			name: "相対パス",
			want: []string{"data/bgm/title.ogg", "data/scenario/first.ks", "readme.txt"},
		},
		{
			name:    "フラット",
			flatten: true,
			want:    []string{"title.ogg", "first.ks", "readme.txt"},
		},
		{
			name:       "タイムスタンプ",
			timestamps: true,
			want:       []string{"data/bgm/title.ogg", "data/scenario/first.ks", "readme.txt"},
		},
		{
			name:    "include",
			include: []string{"data/**/*.ks", "*.txt"},
			want:    []string{"data/scenario/first.ks", "readme.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewMemoryArchive(WithFS(fsys), WithInclude(tt.include...), WithWorkers(2))
			entries, err := a.AddFolder(context.Background(), "game", tt.flatten, tt.timestamps)
			require.NoError(t, err)

			var got []string
			for _, e := range entries {
				got = append(got, e.Path())
				if tt.timestamps {
					assert.Equal(t, mtime.UnixMilli(), e.Timestamp)
				} else {
					assert.Zero(t, e.Timestamp)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArchive_AddFolderFlattenDuplicate(t *testing.T) {
	fsys := fstest.MapFS{
		"a/same.txt": {Data: []byte("1")},
		"b/same.txt": {Data: []byte("2")},
	}
	a := NewMemoryArchive(WithFS(fsys))
	_, err := a.AddFolder(context.Background(), ".", true, false)
	assert.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestArchive_AddFolderCanceled(t *testing.T) {
	fsys := fstest.MapFS{"a.txt": {Data: []byte("a")}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewMemoryArchive(WithFS(fsys))
	_, err := a.AddFolder(ctx, ".", false, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchive_AddFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "script.ks")
	require.NoError(t, os.WriteFile(file, []byte("@jump"), 0o644))

	a := NewMemoryArchive()
	e, err := a.AddFile(file, "", true)
	require.NoError(t, err)
	assert.Equal(t, "script.ks", e.Path())
	assert.NotZero(t, e.Timestamp)

	e, err = a.AddFile(file, "data/script.ks", false)
	require.NoError(t, err)
	assert.Equal(t, "data/script.ks", e.Path())
	assert.Zero(t, e.Timestamp)

	_, err = a.AddFile(filepath.Join(dir, "missing"), "", false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArchive_ModeViolation(t *testing.T) {
	w := NewMemoryArchive()
	_, err := w.Add("a.txt", []byte("a"), 0)
	require.NoError(t, err)

	_, err = w.Entries()
	assert.ErrorIs(t, err, ErrModeViolation)
	_, err = w.Read(&FileEntry{}, ReadOptions{})
	assert.ErrorIs(t, err, ErrModeViolation)
	assert.ErrorIs(t, w.Extract(&FileEntry{}, t.TempDir(), ReadOptions{}), ErrModeViolation)
	_, err = w.ExtractAll(context.Background(), t.TempDir(), ExtractOptions{})
	assert.ErrorIs(t, err, ErrModeViolation)
	_, err = w.IndexBytes()
	assert.ErrorIs(t, err, ErrModeViolation)
	_, err = w.Reader()
	assert.ErrorIs(t, err, ErrModeViolation)

	archive, err := w.PackUp()
	require.NoError(t, err)

	r := NewArchiveReader(openBytes(t, archive))
	assert.Equal(t, ModeRead, r.Mode())
	reader, err := r.Reader()
	require.NoError(t, err)
	assert.Equal(t, 1, reader.Len())
	assert.Equal(t, "a.txt", reader.Entries()[0].GetEntryName())
	_, err = r.Add("b.txt", []byte("b"), 0)
	assert.ErrorIs(t, err, ErrModeViolation)
	_, err = r.AddFile("b.txt", "", false)
	assert.ErrorIs(t, err, ErrModeViolation)
	_, err = r.AddFolder(context.Background(), ".", false, false)
	assert.ErrorIs(t, err, ErrModeViolation)
	_, err = r.PackUp()
	assert.ErrorIs(t, err, ErrModeViolation)
}

func TestArchive_DecryptionRequired(t *testing.T) {
	title, err := DefaultTitles().Lookup("neko_vol1")
	require.NoError(t, err)

	w := NewMemoryArchive(WithTitle(title))
	_, err = w.Add("data/a.ks", []byte("secret scenario"), 0)
	require.NoError(t, err)
	archive, err := w.PackUp()
	require.NoError(t, err)

	r := openBytes(t, archive)
	e, ok := r.Lookup("data/a.ks")
	require.True(t, ok)

	_, err = r.Read(e, ReadOptions{})
	assert.ErrorIs(t, err, ErrDecryptionRequired)
	_, err = r.Read(e, ReadOptions{Crypter: crypto.NoCrypt{}})
	assert.ErrorIs(t, err, ErrDecryptionRequired)

	raw, err := r.Read(e, ReadOptions{Raw: true})
	require.NoError(t, err)
	assert.NotEqual(t, []byte("secret scenario"), raw)

	title.NewCrypter(crypto.ScalarXOR).Crypt(raw, e.Checksum)
	assert.Equal(t, []byte("secret scenario"), raw)
}

// withIndex は archive の本体を残したまま、インデックスを entries で置き換えます
func withIndex(t *testing.T, archive []byte, entries []*FileEntry) []byte {
	t.Helper()
	offset := binary.LittleEndian.Uint64(archive[len(Signature):headerSize])
	index, err := SerializeIndex(entries)
	require.NoError(t, err)
	region, err := encodeIndex(index, true, DefaultCompressionLevel)
	require.NoError(t, err)

	out := append(append([]byte(nil), archive[:offset]...), region...)
	binary.LittleEndian.PutUint64(out[len(Signature):], offset)
	return out
}

func TestArchive_ObfuscatedNames(t *testing.T) {
	title, err := DefaultTitles().Lookup("neko_vol0")
	require.NoError(t, err)

	w := NewMemoryWriter(WithTitle(title))
	_, err = w.Add("Data/Scenario/First.ks", []byte("*start"), 0)
	require.NoError(t, err)
	archive, err := w.PackUp()
	require.NoError(t, err)

	r := openBytes(t, archive)
	e := r.Entries()[0]
	assert.Equal(t, "d3e011111d2a154feefe8fb58f56d248", e.Info.Name)
	assert.Equal(t, "Data/Scenario/First.ks", r.DisplayPath(e), "難読化チャンクからパスを得る")

	// 難読化チャンクのないインデックス
	bare := *e
	bare.Special = nil
	noSpecial := withIndex(t, archive, []*FileEntry{&bare})

	r = openBytes(t, noSpecial)
	e = r.Entries()[0]
	assert.Equal(t, "d3e011111d2a154feefe8fb58f56d248", r.DisplayPath(e))

	r = openBytes(t, noSpecial, WithDictionary(NewDictionary("data/scenario/first.ks")))
	e = r.Entries()[0]
	assert.Equal(t, "data/scenario/first.ks", r.DisplayPath(e))

	found, ok := r.Lookup("Data/Scenario/First.ks")
	require.True(t, ok, "ハッシュでも検索できる")
	assert.Same(t, e, found)

	got, err := r.Read(e, ReadOptions{Crypter: title.NewCrypter(crypto.BulkXOR)})
	require.NoError(t, err)
	assert.Equal(t, []byte("*start"), got)
}

func TestReader_InvalidSignature(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "短い", data: []byte("XP3"), want: ErrFormat},
		{name: "シグネチャ違い", data: append([]byte("PK\x03\x04XXXXXXX"), make([]byte, 8)...), want: ErrInvalidSignature},
		{name: "オフセットが範囲外", data: append(append([]byte(nil), Signature[:]...), 0xff, 0xff, 0, 0, 0, 0, 0, 0), want: ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(bytes.NewReader(tt.data), int64(len(tt.data)))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReader_Version2Header(t *testing.T) {
	w := NewMemoryWriter()
	_, err := w.Add("startup.tjs", []byte("Scripts.execStorage(\"system/Initialize.tjs\");"), 0)
	require.NoError(t, err)
	archive, err := w.PackUp()
	require.NoError(t, err)
	offset := binary.LittleEndian.Uint64(archive[len(Signature):headerSize])

	// 0x17 にクッションを置き、実際のインデックスは末尾に移す
	v2 := append([]byte(nil), Signature[:]...)
	v2 = binary.LittleEndian.AppendUint64(v2, cushionOffset)
	v2 = binary.LittleEndian.AppendUint32(v2, cushionMinorVersion)
	v2 = append(v2, indexContinue)
	v2 = binary.LittleEndian.AppendUint64(v2, 0)
	realOffsetPos := len(v2)
	v2 = binary.LittleEndian.AppendUint64(v2, 0)
	shift := uint64(len(v2) - headerSize)
	v2 = append(v2, archive[headerSize:offset]...)
	binary.LittleEndian.PutUint64(v2[realOffsetPos:], uint64(len(v2)))

	entries := w.Entries()
	for _, e := range entries {
		e.Segments[0].Offset += shift
	}
	index, err := SerializeIndex(entries)
	require.NoError(t, err)
	region, err := encodeIndex(index, true, DefaultCompressionLevel)
	require.NoError(t, err)
	v2 = append(v2, region...)

	r := openBytes(t, v2)
	e, ok := r.Lookup("startup.tjs")
	require.True(t, ok)
	got, err := r.Read(e, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Scripts.execStorage(\"system/Initialize.tjs\");", string(got))
}

func TestReader_ChecksumMismatch(t *testing.T) {
	w := NewMemoryWriter(WithCompression(false))
	_, err := w.Add("a.txt", []byte("original"), 0)
	require.NoError(t, err)
	archive, err := w.PackUp()
	require.NoError(t, err)
	archive[headerSize] ^= 0xff

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	a := NewArchiveReader(openBytes(t, archive, WithLogger(logger), WithSink(newMemSink())))

	e := a.r.Entries()[0]
	got, err := a.Read(e, ReadOptions{})
	require.NoError(t, err, "チェックサムの不一致は警告のみ")
	assert.NotEqual(t, []byte("original"), got)
	assert.Contains(t, logs.String(), "checksum mismatch")

	report, err := a.ExtractAll(context.Background(), "out", ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Extracted)
	assert.Equal(t, []string{"a.txt"}, report.Mismatched)

	_, err = a.Read(e, ReadOptions{Verify: true})
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	report, err = a.ExtractAll(context.Background(), "out", ExtractOptions{ReadOptions: ReadOptions{Verify: true}})
	require.NoError(t, err)
	assert.Zero(t, report.Extracted)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], ErrChecksumMismatch)
}

func TestReader_SegmentSizeMismatch(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), 100)
	w := NewMemoryWriter()
	_, err := w.Add("a.txt", data, 0)
	require.NoError(t, err)
	archive, err := w.PackUp()
	require.NoError(t, err)

	r := openBytes(t, archive)
	e := r.Entries()[0]
	require.True(t, e.IsCompressed())
	broken := *e
	broken.Segments = []Segment{e.Segments[0]}
	broken.Segments[0].UncompressedSize++

	_, err = r.Read(&broken, ReadOptions{})
	assert.ErrorIs(t, err, ErrFormat)
	assert.ErrorIs(t, err, ErrSegmentSize)
}

func TestReader_StoredSegmentSizeMismatch(t *testing.T) {
	w := NewMemoryWriter(WithCompression(false))
	_, err := w.Add("a.txt", []byte("abc"), 0)
	require.NoError(t, err)
	_, err = w.Add("b.txt", []byte("XYZ"), 0)
	require.NoError(t, err)
	archive, err := w.PackUp()
	require.NoError(t, err)

	entries := w.Entries()
	require.False(t, entries[0].IsCompressed())
	// 格納サイズはそのまま、元サイズだけを隣のエントリにはみ出す値にする
	entries[0].Segments[0].UncompressedSize = 5
	entries[0].Info.UncompressedSize = 5

	r := openBytes(t, withIndex(t, archive, entries))
	got, err := r.Read(r.Entries()[0], ReadOptions{})
	assert.ErrorIs(t, err, ErrFormat)
	assert.ErrorIs(t, err, ErrSegmentSize)
	assert.Nil(t, got)

	got, err = r.Read(r.Entries()[1], ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("XYZ"), got)
}

// memSink はメモリ上の Sink
type memSink struct {
	mu    sync.Mutex
	files map[string][]byte
	fail  map[string]error
}

func newMemSink() *memSink {
	return &memSink{files: map[string][]byte{}, fail: map[string]error{}}
}

func (s *memSink) MkdirAll(string, uint32) error { return nil }

func (s *memSink) WriteFile(filename string, data []byte, _ uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.fail[filepath.Base(filename)]; ok {
		return err
	}
	s.files[filepath.ToSlash(filename)] = data
	return nil
}

func TestArchive_ExtractAllIsolation(t *testing.T) {
	title, err := DefaultTitles().Lookup("neko_vol1")
	require.NoError(t, err)

	w := NewMemoryWriter(WithTitle(title))
	for _, name := range []string{"a.txt", "dir/b.txt", "dir/c.txt", "../evil.txt", "d.bin"} {
		_, err := w.Add(name, []byte("data of "+name), 0)
		require.NoError(t, err)
	}
	archive, err := w.PackUp()
	require.NoError(t, err)

	sink := newMemSink()
	sink.fail["c.txt"] = errors.New("disk full")

	var mu sync.Mutex
	var progressed []string
	a := NewArchiveReader(openBytes(t, archive, WithSink(sink), WithWorkers(3)))
	report, err := a.ExtractAll(context.Background(), "out", ExtractOptions{
		ReadOptions: ReadOptions{Crypter: title.NewCrypter(crypto.BulkXOR)},
		Progress: func(_ *FileEntry, path string) {
			mu.Lock()
			defer mu.Unlock()
			progressed = append(progressed, path)
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Extracted)
	require.Len(t, report.Failures, 2)
	var unsafe, diskFull bool
	for _, f := range report.Failures {
		var ae *ArchiveError
		require.True(t, errors.As(f, &ae))
		unsafe = unsafe || errors.Is(f, ErrUnsafePath)
		diskFull = diskFull || strings.Contains(f.Error(), "disk full")
	}
	assert.True(t, unsafe)
	assert.True(t, diskFull)
	assert.Len(t, progressed, 5)

	assert.Equal(t, []byte("data of a.txt"), sink.files["out/a.txt"])
	assert.Equal(t, []byte("data of dir/b.txt"), sink.files["out/dir/b.txt"])
	assert.Equal(t, []byte("data of d.bin"), sink.files["out/d.bin"])
}

func TestArchive_ExtractAllInclude(t *testing.T) {
	w := NewMemoryWriter()
	for _, name := range []string{"a.txt", "dir/b.txt", "dir/c.png"} {
		_, err := w.Add(name, []byte(name), 0)
		require.NoError(t, err)
	}
	archive, err := w.PackUp()
	require.NoError(t, err)

	sink := newMemSink()
	a := NewArchiveReader(openBytes(t, archive, WithSink(sink), WithInclude("**/*.txt")))
	report, err := a.ExtractAll(context.Background(), "out", ExtractOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Extracted)
	assert.Len(t, sink.files, 2)
	assert.NotContains(t, sink.files, "out/dir/c.png")
}

func TestArchive_ExtractAllDecryptionRequired(t *testing.T) {
	title, err := DefaultTitles().Lookup("sousaku_kanojo")
	require.NoError(t, err)
	w := NewMemoryWriter(WithTitle(title))
	_, err = w.Add("a.txt", []byte("akabei"), 0)
	require.NoError(t, err)
	archive, err := w.PackUp()
	require.NoError(t, err)

	a := NewArchiveReader(openBytes(t, archive, WithSink(newMemSink())))
	report, err := a.ExtractAll(context.Background(), "out", ExtractOptions{})
	require.NoError(t, err)
	assert.Zero(t, report.Extracted)
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], ErrDecryptionRequired)
}
