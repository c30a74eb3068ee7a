package xp3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

// Reader は XP3 アーカイブを読み込みます。
// 開いた後のエントリ表は変更されないため、Read は複数の goroutine から呼び出せます。
// Entries、Entry、Lookup が返す *FileEntry は読み取り専用です。
type Reader struct {
	r      io.ReaderAt
	size   int64
	closer io.Closer
	opts   options

	entries         []*FileEntry
	index           []byte
	indexCompressed bool
}

// ReadOptions はエントリの読み込み方法
type ReadOptions struct {
	// Crypter は暗号化されたエントリの復号に使います
	Crypter crypto.Crypter
	// Raw が true の場合、暗号化されたエントリを復号せずに返します
	Raw bool
	// Verify が true の場合、チェックサムの不一致を ErrChecksumMismatch として返します
	Verify bool
}

// NewReader は r からアーカイブを開きます。size は r の大きさです。
func NewReader(r io.ReaderAt, size int64, opts ...Option) (*Reader, error) {
	o := newOptions(opts)

	header, err := readAt(r, size, 0, uint64(headerSize), "header")
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(header[:len(Signature)], Signature[:]) {
		return nil, formatError("header", 0, ErrInvalidSignature)
	}
	offset := binary.LittleEndian.Uint64(header[len(Signature):])
	if offset == cushionOffset {
		// バージョン 2 ヘッダ: 0x17 のクッションは continue フラグで実際のインデックスを指す
		o.logger.Debug("version 2 header")
	}
	if offset > uint64(size) {
		return nil, formatError("index offset", int64(len(Signature)), io.ErrUnexpectedEOF)
	}

	index, compressed, err := decodeIndex(r, size, int64(offset))
	if err != nil {
		return nil, err
	}
	entries, err := ParseIndex(index, o.specialTags...)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("opened archive",
		"entries", len(entries),
		"index_offset", offset,
		"index_compressed", compressed)

	return &Reader{
		r:               r,
		size:            size,
		opts:            o,
		entries:         entries,
		index:           index,
		indexCompressed: compressed,
	}, nil
}

// OpenReader はファイルからアーカイブを開きます
func OpenReader(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewReader(f, st.Size(), opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Close は OpenReader で開いたファイルを閉じます
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Entries はエントリの一覧を返します。
// エントリは Reader と共有されるため、変更してはいけません。
func (r *Reader) Entries() []*FileEntry {
	return slices.Clone(r.entries)
}

// Len はエントリの数を返します
func (r *Reader) Len() int {
	return len(r.entries)
}

// Entry は i 番目のエントリを返します
func (r *Reader) Entry(i int) (*FileEntry, error) {
	if i < 0 || i >= len(r.entries) {
		return nil, fmt.Errorf("%w: index %d", ErrEntryNotFound, i)
	}
	return r.entries[i], nil
}

// Lookup は名前でエントリを検索します。
// 表示用のパス、インデックス上の名前、パスのハッシュの順に照合し、最初に一致したものを返します。
func (r *Reader) Lookup(name string) (*FileEntry, bool) {
	for _, e := range r.entries {
		if e.Path() == name || e.Info.Name == name {
			return e, true
		}
	}
	hash := PathHash(name)
	for _, e := range r.entries {
		if e.Info.Name == hash {
			return e, true
		}
	}
	return nil, false
}

// IndexBytes は展開済みのインデックスを返します
func (r *Reader) IndexBytes() []byte {
	return slices.Clone(r.index)
}

// IndexCompressed はインデックスが zlib 圧縮されていたかどうかを返します
func (r *Reader) IndexCompressed() bool {
	return r.indexCompressed
}

// IsEncrypted は暗号化されたエントリを含むかどうかを返します
func (r *Reader) IsEncrypted() bool {
	return slices.ContainsFunc(r.entries, (*FileEntry).IsEncrypted)
}

// DisplayPath はエントリの表示用パスを返します。
// 難読化チャンクのパス、辞書、インデックス上の名前の順に使います。
func (r *Reader) DisplayPath(e *FileEntry) string {
	if e.Special != nil && e.Special.Path != "" {
		return e.Special.Path
	}
	if p, ok := r.opts.dict.Resolve(e.GetEntryName()); ok {
		return p
	}
	return e.GetEntryName()
}

// Read はエントリの内容を読み込みます
func (r *Reader) Read(e *FileEntry, opts ReadOptions) ([]byte, error) {
	data, _, err := r.read(e, opts)
	return data, err
}

// read はエントリを読み込み、チェックサムが一致しなかったかどうかも返します
func (r *Reader) read(e *FileEntry, opts ReadOptions) ([]byte, bool, error) {
	decrypt := e.IsEncrypted() && !opts.Raw
	if decrypt && crypto.IsIdentity(opts.Crypter) {
		return nil, false, fmt.Errorf("%w: %s", ErrDecryptionRequired, r.DisplayPath(e))
	}

	data := make([]byte, 0, min(e.Info.UncompressedSize, uint64(r.size)))
	for _, seg := range e.Segments {
		stored, err := readAt(r.r, r.size, int64(seg.Offset), seg.CompressedSize, "segment")
		if err != nil {
			return nil, false, err
		}
		if !seg.Compressed {
			if seg.CompressedSize != seg.UncompressedSize {
				return nil, false, formatError("segment", int64(seg.Offset),
					fmt.Errorf("%w: stored %d bytes, want %d", ErrSegmentSize, seg.CompressedSize, seg.UncompressedSize))
			}
			data = append(data, stored...)
			continue
		}
		b, err := decompress(stored, seg.UncompressedSize)
		if err != nil {
			return nil, false, formatError("segment", int64(seg.Offset), err)
		}
		data = append(data, b...)
	}

	if decrypt {
		opts.Crypter.Crypt(data, e.Checksum)
	}
	if e.IsEncrypted() && opts.Raw {
		return data, false, nil
	}

	if sum := crypto.Adler32(data); sum != e.Checksum {
		r.opts.logger.Warn("checksum mismatch",
			"path", r.DisplayPath(e),
			"want", fmt.Sprintf("%08x", e.Checksum),
			"got", fmt.Sprintf("%08x", sum))
		if opts.Verify {
			return nil, true, fmt.Errorf("%w: %s", ErrChecksumMismatch, r.DisplayPath(e))
		}
		return data, true, nil
	}
	return data, false, nil
}

// Extract はエントリを dest 以下の表示用パスに書き出します
func (r *Reader) Extract(e *FileEntry, dest string, opts ReadOptions) error {
	_, err := r.extract(r.opts.sink, e, dest, opts)
	return err
}

func (r *Reader) extract(sink Sink, e *FileEntry, dest string, opts ReadOptions) (bool, error) {
	name := r.DisplayPath(e)
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return false, &ArchiveError{Op: "extract", Path: name, Err: ErrUnsafePath}
	}

	data, mismatch, err := r.read(e, opts)
	if err != nil {
		return false, &ArchiveError{Op: "read", Path: name, Err: err}
	}

	full := filepath.Join(dest, rel)
	if err := sink.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return mismatch, &ArchiveError{Op: "mkdir", Path: name, Err: err}
	}
	if err := sink.WriteFile(full, data, 0o644); err != nil {
		return mismatch, &ArchiveError{Op: "write", Path: name, Err: err}
	}
	return mismatch, nil
}
