package xp3

import (
	"encoding/binary"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

// Writer は XP3 アーカイブを書き込みます。
// Prepare は並列に呼び出せます。Commit と PackUp は内部で直列化されます。
type Writer struct {
	mu      sync.Mutex
	w       io.WriteSeeker
	mem     *memBuffer
	opts    options
	crypter crypto.Crypter

	cursor  uint64
	entries []*FileEntry
	paths   map[string]struct{}

	packed bool
	output []byte
	// err は失敗した書き込み。以降の Commit と PackUp はすべて失敗します。
	err error
}

// PreparedFile は Commit 前のファイル（チェックサム計算、暗号化、圧縮済み）
type PreparedFile struct {
	Path  string
	entry FileEntry
	data  []byte
}

// Entry は Commit 後に記録されるエントリの内容を返します（オフセットは未確定）
func (p *PreparedFile) Entry() FileEntry {
	return p.entry
}

// NewWriter は w にシグネチャと仮のインデックスオフセットを書き込み、Writer を返します
func NewWriter(w io.WriteSeeker, opts ...Option) (*Writer, error) {
	o := newOptions(opts)
	header := make([]byte, 0, headerSize)
	header = append(header, Signature[:]...)
	header = binary.LittleEndian.AppendUint64(header, 0)
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("xp3: write header: %w", err)
	}
	return &Writer{
		w:       w,
		opts:    o,
		crypter: o.title.NewCrypter(o.xorMode),
		cursor:  uint64(headerSize),
		paths:   make(map[string]struct{}),
	}, nil
}

// NewMemoryWriter はメモリ上に書き込む Writer を返します。
// PackUp がアーカイブのバイト列を返します。
func NewMemoryWriter(opts ...Option) *Writer {
	mem := &memBuffer{}
	w, err := NewWriter(mem, opts...)
	if err != nil {
		// memBuffer への書き込みは失敗しない
		panic(err)
	}
	w.mem = mem
	return w
}

// Prepare はファイルを書き込み可能な形に変換します。Writer の状態は変更しません。
func (w *Writer) Prepare(path string, data []byte, timestamp int64) (*PreparedFile, error) {
	if _, err := encodeName(path); err != nil {
		return nil, err
	}

	checksum := crypto.Adler32(data)
	payload := data
	encrypted := w.opts.title.Encrypted()
	if encrypted {
		payload = slices.Clone(data)
		w.crypter.Crypt(payload, checksum)
	}

	var zdata []byte
	if w.opts.compress {
		var err error
		if zdata, err = compress(payload, w.opts.level); err != nil {
			return nil, &ArchiveError{Op: "compress", Path: path, Err: err}
		}
	}
	st := chooseStorage(payload, zdata)

	name := path
	var special *SpecialFormat
	if tag := w.opts.title.SpecialTag; encrypted && !tag.IsZero() {
		name = PathHash(path)
		special = &SpecialFormat{Tag: tag, Checksum: checksum, Path: path}
	}

	size := uint64(len(data))
	stored := uint64(len(st.data))
	return &PreparedFile{
		Path: path,
		entry: FileEntry{
			Checksum:  checksum,
			Timestamp: timestamp,
			Segments: []Segment{{
				Compressed:       st.compressed,
				UncompressedSize: size,
				CompressedSize:   stored,
			}},
			Info: Info{
				Encrypted:        encrypted,
				UncompressedSize: size,
				CompressedSize:   stored,
				Name:             name,
			},
			Special: special,
		},
		data: st.data,
	}, nil
}

// Commit は準備済みのファイルをアーカイブ本体の末尾に書き込み、エントリを記録します
func (w *Writer) Commit(p *PreparedFile) (*FileEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriterBroken, w.err)
	}
	if w.packed {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPackedUp, p.Path)
	}
	if _, ok := w.paths[p.Path]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, p.Path)
	}
	if _, err := w.w.Write(p.data); err != nil {
		w.err = &ArchiveError{Op: "write", Path: p.Path, Err: err}
		return nil, w.err
	}

	e := p.entry
	e.Segments = slices.Clone(p.entry.Segments)
	e.Segments[0].Offset = w.cursor
	w.cursor += uint64(len(p.data))
	w.entries = append(w.entries, &e)
	w.paths[p.Path] = struct{}{}

	w.opts.logger.Debug("added entry",
		"path", p.Path,
		"size", e.Info.UncompressedSize,
		"stored", e.Info.CompressedSize,
		"compressed", e.Segments[0].Compressed)
	return &e, nil
}

// Add はファイルを追加します。timestamp はミリ秒（0 は未設定）です。
func (w *Writer) Add(path string, data []byte, timestamp int64) (*FileEntry, error) {
	w.mu.Lock()
	packed := w.packed
	_, dup := w.paths[path]
	w.mu.Unlock()
	switch {
	case packed:
		return nil, fmt.Errorf("%w: %s", ErrAlreadyPackedUp, path)
	case dup:
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, path)
	}

	p, err := w.Prepare(path, data, timestamp)
	if err != nil {
		return nil, err
	}
	return w.Commit(p)
}

// Entries は追加済みのエントリのコピーを返します。
// 返した値を変更しても、PackUp で書き込むインデックスには影響しません。
func (w *Writer) Entries() []*FileEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*FileEntry, len(w.entries))
	for i, e := range w.entries {
		c := *e
		c.Segments = slices.Clone(e.Segments)
		if e.Special != nil {
			sf := *e.Special
			c.Special = &sf
		}
		out[i] = &c
	}
	return out
}

// PackUp はインデックスを書き込み、ヘッダのオフセットを確定します。
// メモリ上の Writer ではアーカイブのバイト列を返し、それ以外では nil を返します。
// 二度目以降の呼び出しは何もせず、同じ結果を返します。
func (w *Writer) PackUp() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.packed {
		return w.output, nil
	}
	if w.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWriterBroken, w.err)
	}

	index, err := SerializeIndex(w.entries)
	if err != nil {
		return nil, err
	}
	region, err := encodeIndex(index, w.opts.compressIndex, w.opts.level)
	if err != nil {
		return nil, err
	}
	if err := w.writeIndex(region); err != nil {
		w.err = err
		return nil, err
	}

	w.packed = true
	if w.mem != nil {
		w.output = w.mem.Bytes()
	}
	w.opts.logger.Debug("packed up archive",
		"entries", len(w.entries),
		"index_offset", w.cursor,
		"index_size", len(index))
	return w.output, nil
}

// writeIndex はインデックスを cursor に書き込み、ヘッダのオフセットを書き換えます
func (w *Writer) writeIndex(region []byte) error {
	if _, err := w.w.Write(region); err != nil {
		return fmt.Errorf("xp3: write index: %w", err)
	}
	if _, err := w.w.Seek(int64(len(Signature)), io.SeekStart); err != nil {
		return fmt.Errorf("xp3: seek header: %w", err)
	}
	if _, err := w.w.Write(binary.LittleEndian.AppendUint64(nil, w.cursor)); err != nil {
		return fmt.Errorf("xp3: write index offset: %w", err)
	}
	if _, err := w.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("xp3: seek end: %w", err)
	}
	return nil
}

// PackedUp は PackUp 済みかどうかを返します
func (w *Writer) PackedUp() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.packed
}
