package xp3

import "os"

// Sink は展開したファイルの書き込み先
type Sink interface {
	MkdirAll(path string, perm uint32) error
	WriteFile(filename string, data []byte, perm uint32) error
}

// DirSink は OS のファイルシステムに書き込む Sink
type DirSink struct{}

// MkdirAll はディレクトリを作成します
func (DirSink) MkdirAll(path string, perm uint32) error {
	return os.MkdirAll(path, os.FileMode(perm))
}

// WriteFile はファイルを書き込みます
func (DirSink) WriteFile(filename string, data []byte, perm uint32) error {
	return os.WriteFile(filename, data, os.FileMode(perm))
}
