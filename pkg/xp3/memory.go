package xp3

import (
	"errors"
	"io"
)

var errNegativeOffset = errors.New("xp3: negative offset")

// memBuffer はメモリ上の io.WriteSeeker
type memBuffer struct {
	buf []byte
	pos int
}

func (m *memBuffer) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, len(m.buf), max(end, 2*cap(m.buf)))
			copy(grown, m.buf)
			m.buf = grown
		}
		m.buf = m.buf[:end]
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memBuffer) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("xp3: invalid whence")
	}
	if abs < 0 {
		return 0, errNegativeOffset
	}
	m.pos = int(abs)
	return abs, nil
}

// Bytes は書き込まれた内容のコピーを返します
func (m *memBuffer) Bytes() []byte {
	return append([]byte(nil), m.buf...)
}
