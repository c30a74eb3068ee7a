// Package xp3 は KiriKiri (吉里吉里) の XP3 アーカイブを読み書きするためのパッケージです。
//
// アーカイブの構造:
//   - シグネチャ (11 バイト) と、インデックスへのオフセット (uint64 LE)
//   - ファイル本体（Add した順に連結）
//   - インデックス（zlib 圧縮可、File チャンクの並び）
//
// 基本的な使い方:
//
//	w := xp3.NewMemoryWriter(xp3.WithTitle(title))
//	if _, err := w.Add("data/script.ks", data, 0); err != nil {
//	    return err
//	}
//	archive, err := w.PackUp()
//
//	r, err := xp3.NewReader(bytes.NewReader(archive), int64(len(archive)))
//	entry, ok := r.Lookup("data/script.ks")
//	data, err := r.Read(entry, xp3.ReadOptions{Crypter: title.NewCrypter(crypto.BulkXOR)})
package xp3

// Signature は XP3 アーカイブ先頭のマジック
var Signature = [11]byte{'X', 'P', '3', '\r', '\n', ' ', '\n', 0x1A, 0x8B, 0x67, 0x01}

const (
	// headerSize はシグネチャとインデックスオフセットを合わせた大きさ
	headerSize = len(Signature) + 8

	// cushionOffset はバージョン 2 ヘッダでのインデックスオフセット値
	cushionOffset = 0x17
	// cushionMinorVersion はバージョン 2 ヘッダのマイナーバージョン
	cushionMinorVersion = 1
)

// インデックスのフラグ
const (
	indexEncodeMask = 0x07
	indexEncodeRaw  = 0x00
	indexEncodeZlib = 0x01
	indexContinue   = 0x80
)

// エントリのフラグ
const (
	// infoFlagProtected は暗号化されたエントリを示します
	infoFlagProtected = 1 << 31
	// infoFlagEncrypted は一部のツールが使う暗号化ビット（読み込み時のみ解釈）
	infoFlagEncrypted = 1 << 0

	segmentFlagZlib = 1 << 0
)

// segmentRecordSize は segm チャンク内の 1 セグメントの大きさ
const segmentRecordSize = 4 + 8 + 8 + 8
