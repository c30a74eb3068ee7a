package xp3

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Tag はチャンクの 4 バイト識別子
type Tag [4]byte

// NewTag は 4 文字の文字列から Tag を作成します
func NewTag(s string) (Tag, error) {
	var t Tag
	if len(s) != len(t) {
		return t, fmt.Errorf("xp3: chunk tag %q must be 4 bytes", s)
	}
	copy(t[:], s)
	return t, nil
}

func (t Tag) String() string {
	return string(t[:])
}

// IsZero はタグが未設定かどうかを返します
func (t Tag) IsZero() bool {
	return t == Tag{}
}

// インデックスで使用するタグ
var (
	TagFile = Tag{'F', 'i', 'l', 'e'}
	tagInfo = Tag{'i', 'n', 'f', 'o'}
	tagSegm = Tag{'s', 'e', 'g', 'm'}
	tagAdlr = Tag{'a', 'd', 'l', 'r'}
	tagTime = Tag{'t', 'i', 'm', 'e'}

	// 名前の難読化に使われる既知のタグ
	TagEliF = Tag{'e', 'l', 'i', 'F'}
	TagNeko = Tag{'n', 'e', 'k', 'o'}
	TagHnfn = Tag{'h', 'n', 'f', 'n'}
)

// chunkHeaderSize はタグと長さの大きさ
const chunkHeaderSize = 4 + 8

var (
	errTruncatedChunk = errors.New("truncated chunk")
	errTruncatedField = errors.New("truncated field")
)

// appendChunk は tag と payload をチャンクとして dst に追加します
func appendChunk(dst []byte, tag Tag, payload []byte) []byte {
	dst = append(dst, tag[:]...)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(len(payload)))
	return append(dst, payload...)
}

// walkChunks は b をチャンク列として走査し、各チャンクで fn を呼びます。
// base は b の先頭のインデックス内位置で、エラー位置の報告に使います。
func walkChunks(b []byte, base int64, fn func(tag Tag, payload []byte, offset int64) error) error {
	pos := 0
	for pos < len(b) {
		if len(b)-pos < chunkHeaderSize {
			return formatError("chunk header", base+int64(pos), errTruncatedChunk)
		}
		var tag Tag
		copy(tag[:], b[pos:pos+4])
		size := binary.LittleEndian.Uint64(b[pos+4 : pos+chunkHeaderSize])
		start := pos + chunkHeaderSize
		if size > uint64(len(b)-start) {
			return formatError(fmt.Sprintf("chunk %q", tag), base+int64(pos), errTruncatedChunk)
		}
		end := start + int(size)
		if err := fn(tag, b[start:end], base+int64(start)); err != nil {
			return err
		}
		pos = end
	}
	return nil
}

// fieldReader はリトルエンディアンのフィールドを順に読み出します
type fieldReader struct {
	b   []byte
	pos int
	err error
}

func (r *fieldReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.b)-r.pos < n {
		r.err = errTruncatedField
		return nil
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *fieldReader) uint16() uint16 {
	if v := r.take(2); v != nil {
		return binary.LittleEndian.Uint16(v)
	}
	return 0
}

func (r *fieldReader) uint32() uint32 {
	if v := r.take(4); v != nil {
		return binary.LittleEndian.Uint32(v)
	}
	return 0
}

func (r *fieldReader) uint64() uint64 {
	if v := r.take(8); v != nil {
		return binary.LittleEndian.Uint64(v)
	}
	return 0
}
