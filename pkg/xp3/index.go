package xp3

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// maxIndexParts は continue フラグで連結できるインデックスの最大数
const maxIndexParts = 64

var errIndexLoop = errors.New("too many index parts")

// SerializeIndex はエントリ列をインデックス（チャンク列）にシリアライズします
func SerializeIndex(entries []*FileEntry) ([]byte, error) {
	var b []byte
	for _, e := range entries {
		var err error
		if b, err = e.appendTo(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ParseIndex はインデックスを解析してエントリ列を返します。
// 未知のチャンクは読み飛ばします。specialTags は既知のタグに加えて
// 難読化チャンクとして解釈するタグです。
func ParseIndex(b []byte, specialTags ...Tag) ([]*FileEntry, error) {
	isSpecial := func(t Tag) bool {
		switch t {
		case TagEliF, TagNeko, TagHnfn:
			return true
		}
		for _, s := range specialTags {
			if t == s {
				return true
			}
		}
		return false
	}

	var (
		entries   []*FileEntry
		orphans   []*FileEntry
		pending   *SpecialFormat
		unclaimed = map[uint32][]*SpecialFormat{}
	)
	release := func() {
		if pending != nil {
			unclaimed[pending.Checksum] = append(unclaimed[pending.Checksum], pending)
			pending = nil
		}
	}

	err := walkChunks(b, 0, func(tag Tag, payload []byte, off int64) error {
		switch {
		case tag == TagFile:
			e, err := parseFileChunk(payload, off)
			if err != nil {
				return err
			}
			if pending != nil && pending.Checksum == e.Checksum {
				e.Special = pending
				pending = nil
			} else {
				release()
				orphans = append(orphans, e)
			}
			entries = append(entries, e)
		case isSpecial(tag):
			sf, err := parseSpecialChunk(tag, payload, off)
			if err != nil {
				return err
			}
			release()
			pending = sf
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	release()

	for _, e := range orphans {
		if list := unclaimed[e.Checksum]; len(list) > 0 {
			e.Special = list[0]
			unclaimed[e.Checksum] = list[1:]
		}
	}
	return entries, nil
}

// encodeIndex はインデックスをアーカイブに書き込む形式（フラグとサイズ付き）にします
func encodeIndex(payload []byte, compressIndex bool, level int) ([]byte, error) {
	if compressIndex {
		z, err := compress(payload, level)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, 17+len(z))
		out = append(out, indexEncodeZlib)
		out = binary.LittleEndian.AppendUint64(out, uint64(len(z)))
		out = binary.LittleEndian.AppendUint64(out, uint64(len(payload)))
		return append(out, z...), nil
	}
	out := make([]byte, 0, 9+len(payload))
	out = append(out, indexEncodeRaw)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(payload)))
	return append(out, payload...), nil
}

// readAt は r の off から n バイトを読み込みます
func readAt(r io.ReaderAt, size, off int64, n uint64, op string) ([]byte, error) {
	if off < 0 || off > size || n > uint64(size-off) {
		return nil, formatError(op, off, io.ErrUnexpectedEOF)
	}
	b := make([]byte, n)
	if _, err := r.ReadAt(b, off); err != nil && !(errors.Is(err, io.EOF) && off+int64(n) == size) {
		return nil, formatError(op, off, err)
	}
	return b, nil
}

// decodeIndex は offset から始まるインデックスを読み込み、展開したチャンク列を返します。
// continue フラグが立っている場合は、直後の次のインデックス位置をたどって連結します。
func decodeIndex(r io.ReaderAt, size, offset int64) (payload []byte, compressed bool, err error) {
	for part := 0; ; part++ {
		if part >= maxIndexParts {
			return nil, false, formatError("index", offset, errIndexLoop)
		}
		head, err := readAt(r, size, offset, 1, "index flag")
		if err != nil {
			return nil, false, err
		}
		flag := head[0]
		pos := offset + 1

		var data []byte
		switch flag & indexEncodeMask {
		case indexEncodeZlib:
			sizes, err := readAt(r, size, pos, 16, "index header")
			if err != nil {
				return nil, false, err
			}
			zsize := binary.LittleEndian.Uint64(sizes[:8])
			rawSize := binary.LittleEndian.Uint64(sizes[8:])
			pos += 16
			z, err := readAt(r, size, pos, zsize, "index")
			if err != nil {
				return nil, false, err
			}
			pos += int64(zsize)
			if data, err = decompress(z, rawSize); err != nil {
				return nil, false, formatError("index", offset, err)
			}
			compressed = true
		case indexEncodeRaw:
			sizes, err := readAt(r, size, pos, 8, "index header")
			if err != nil {
				return nil, false, err
			}
			rawSize := binary.LittleEndian.Uint64(sizes)
			pos += 8
			if data, err = readAt(r, size, pos, rawSize, "index"); err != nil {
				return nil, false, err
			}
			pos += int64(rawSize)
		default:
			return nil, false, formatError("index flag", offset, fmt.Errorf("unknown encoding %#x", flag))
		}
		payload = append(payload, data...)

		if flag&indexContinue == 0 {
			return payload, compressed, nil
		}
		next, err := readAt(r, size, pos, 8, "next index offset")
		if err != nil {
			return nil, false, err
		}
		offset = int64(binary.LittleEndian.Uint64(next))
	}
}
