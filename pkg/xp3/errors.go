package xp3

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat はアーカイブの構造が不正な場合のエラー
	ErrFormat = errors.New("xp3: malformed archive")

	// ErrInvalidSignature はシグネチャが一致しない場合のエラー
	ErrInvalidSignature = errors.New("xp3: invalid signature")

	// ErrSegmentSize は展開後のサイズがインデックスと一致しない場合のエラー
	ErrSegmentSize = errors.New("xp3: segment size mismatch")

	// ErrChecksumMismatch はチェックサムが一致しない場合のエラー（警告扱い）
	ErrChecksumMismatch = errors.New("xp3: checksum mismatch")

	// ErrDecryptionRequired は暗号化エントリを復号方式なしで読もうとした場合のエラー
	ErrDecryptionRequired = errors.New("xp3: entry is encrypted and no decryption was specified")

	// ErrDuplicateEntry は同じパスを二度追加しようとした場合のエラー
	ErrDuplicateEntry = errors.New("xp3: duplicate entry")

	// ErrAlreadyPackedUp は PackUp 後に追加しようとした場合のエラー
	ErrAlreadyPackedUp = errors.New("xp3: archive is already packed up")

	// ErrWriterBroken は書き込みに失敗した Writer を使い続けようとした場合のエラー
	ErrWriterBroken = errors.New("xp3: writer is unusable after a failed write")

	// ErrModeViolation は読み込み用アーカイブへの書き込み（またはその逆）のエラー
	ErrModeViolation = errors.New("xp3: operation not allowed in this mode")

	// ErrEntryNotFound はエントリが見つからない場合のエラー
	ErrEntryNotFound = errors.New("xp3: entry not found")

	// ErrUnsafePath は展開先がディレクトリの外を指す場合のエラー
	ErrUnsafePath = errors.New("xp3: unsafe entry path")
)

// FormatError はインデックスやヘッダの解析エラー
type FormatError struct {
	Op     string // 解析していた部分
	Offset int64  // エラー位置（不明な場合は -1）
	Err    error  // 元のエラー
}

// Error はエラーメッセージを返します
func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("xp3: %s at offset %#x: %v", e.Op, e.Offset, e.Err)
	}
	return fmt.Sprintf("xp3: %s: %v", e.Op, e.Err)
}

// Unwrap は ErrFormat と元のエラーを返します
func (e *FormatError) Unwrap() []error {
	return []error{ErrFormat, e.Err}
}

func formatError(op string, offset int64, err error) *FormatError {
	return &FormatError{Op: op, Offset: offset, Err: err}
}

// ArchiveError はエントリ単位の操作エラー
type ArchiveError struct {
	Op   string // 実行していた操作
	Path string // エントリのパス
	Err  error  // 元のエラー
}

// Error はエラーメッセージを返します
func (e *ArchiveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返します
func (e *ArchiveError) Unwrap() error {
	return e.Err
}
