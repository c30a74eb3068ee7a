package crypto

import "hash/adler32"

// Adler32 はデータの Adler-32 チェックサムを計算します。
// XP3 では圧縮・暗号化前の平文に対して計算され、暗号鍵の素材にもなります。
func Adler32(data []byte) uint32 {
	return adler32.Checksum(data)
}
