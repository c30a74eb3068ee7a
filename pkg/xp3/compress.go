package xp3

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// DefaultCompressionLevel はファイルとインデックスの既定の圧縮レベル
const DefaultCompressionLevel = zlib.DefaultCompression

// compress は data を zlib で圧縮します
func compress(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, fmt.Errorf("xp3: zlib writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("xp3: zlib compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("xp3: zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

// decompress は zlib データを展開し、展開後の長さが size と一致するか確認します
func decompress(data []byte, size uint64) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]byte, 0, min(size, uint64(len(data))*64+512))
	buf := bytes.NewBuffer(out)
	// size を 1 バイト超えて読めた時点で不一致と判断する
	n, err := io.Copy(buf, io.LimitReader(zr, int64(size)+1))
	if err != nil {
		return nil, err
	}
	if uint64(n) != size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSegmentSize, n, size)
	}
	return buf.Bytes(), nil
}

// storage は 1 ファイル分の格納方法の決定結果
type storage struct {
	data       []byte
	compressed bool
}

// chooseStorage は圧縮結果が元より厳密に小さい場合のみ圧縮データを採用します
func chooseStorage(plain, compressed []byte) storage {
	if compressed != nil && len(compressed) < len(plain) {
		return storage{data: compressed, compressed: true}
	}
	return storage{data: plain}
}
