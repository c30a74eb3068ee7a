package xp3

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/language"
)

// maxNameUnits は info チャンクに格納できる名前の最大長（UTF-16 コード単位）
const maxNameUnits = 0xFFFF

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// encodeName は name を UTF-16LE に変換します
func encodeName(name string) ([]byte, error) {
	b, err := utf16le.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, fmt.Errorf("xp3: encode name %q: %w", name, err)
	}
	if len(b)/2 > maxNameUnits {
		return nil, fmt.Errorf("xp3: name %q is too long (%d UTF-16 units)", name, len(b)/2)
	}
	return b, nil
}

// decodeName は UTF-16LE のバイト列を文字列に戻します
func decodeName(b []byte) (string, error) {
	s, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return string(s), nil
}

// PathHash は難読化されたエントリ名を計算します。
// 小文字化したパスの UTF-16LE 表現の MD5 を 16 進文字列で返します。
func PathHash(path string) string {
	lower := cases.Lower(language.Und).String(path)
	b, err := utf16le.NewEncoder().Bytes([]byte(lower))
	if err != nil {
		b = []byte(lower)
	}
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}

// Dictionary は難読化された名前から元のパスを引く辞書
type Dictionary map[string]string

// NewDictionary は既知のパスの一覧から辞書を作成します
func NewDictionary(paths ...string) Dictionary {
	d := make(Dictionary, len(paths))
	d.Add(paths...)
	return d
}

// Add はパスを辞書に追加します。同じハッシュは先に追加したものが優先されます。
func (d Dictionary) Add(paths ...string) {
	for _, p := range paths {
		h := PathHash(p)
		if _, ok := d[h]; !ok {
			d[h] = p
		}
	}
}

// Resolve はハッシュ名に対応するパスを返します
func (d Dictionary) Resolve(hash string) (string, bool) {
	if d == nil {
		return "", false
	}
	p, ok := d[hash]
	return p, ok
}
