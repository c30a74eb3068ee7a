// Package fileutil はファイル操作のユーティリティ関数を提供します
package fileutil

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

var (
	// XP3FilePattern は .xp3 ファイルのパターン
	XP3FilePattern = regexp.MustCompile(`(?i)^.+\.xp3$`)
)

// FileExists はファイルが存在するか確認します
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// FromShiftJIS はShift-JISからUTF-8に変換します
func FromShiftJIS(str string) (string, error) {
	reader := strings.NewReader(str)
	transformer := japanese.ShiftJIS.NewDecoder()
	ret, err := io.ReadAll(transform.NewReader(reader, transformer))
	if err != nil {
		return "", err
	}
	return string(ret), nil
}

// Decoder は name_encoding の値に対応する変換関数を返します。UTF-8 の場合は nil です。
func Decoder(encoding string) (func(string) (string, error), error) {
	switch strings.ToLower(strings.ReplaceAll(encoding, "-", "_")) {
	case "", "utf8", "utf_8":
		return nil, nil
	case "shift_jis", "sjis", "cp932":
		return FromShiftJIS, nil
	}
	return nil, ErrUnknownEncoding
}

// ArchiveOutputDir は複数のアーカイブを展開するときのアーカイブごとの展開先を返します
func ArchiveOutputDir(outputDir, archivePath string) string {
	baseName := filepath.Base(archivePath)
	return filepath.Join(outputDir, strings.TrimSuffix(baseName, filepath.Ext(baseName)))
}
