package crypto

import "crypto/subtle"

// XORMode は XOR の実行方式
type XORMode int

const (
	// ScalarXOR は 1 バイトずつ XOR する参照実装です
	ScalarXOR XORMode = iota
	// BulkXOR はワード単位（SIMD）の一括 XOR を使用します
	BulkXOR
)

// bulkBlock は BulkXOR で 1 回に処理する鍵バッファの大きさ
const bulkBlock = 4096

// XOR はデータストリームの各バイトを指定されたキーで XOR します。
func XOR(data []byte, key byte) {
	for i := range data {
		data[i] ^= key
	}
}

// XORStream は keystream を data の長さまで繰り返して XOR します。
// keystream が空の場合は何もしません。
func XORStream(data []byte, keystream []byte) {
	if len(keystream) == 0 {
		return
	}
	for i := range data {
		data[i] ^= keystream[i%len(keystream)]
	}
}

// xorKey は mode に従って data を key で XOR します
func xorKey(mode XORMode, data []byte, key byte) {
	if mode != BulkXOR || len(data) < 8 {
		XOR(data, key)
		return
	}
	n := min(len(data), bulkBlock)
	block := make([]byte, n)
	for i := range block {
		block[i] = key
	}
	for off := 0; off < len(data); off += n {
		chunk := data[off:min(off+n, len(data))]
		subtle.XORBytes(chunk, chunk, block)
	}
}

// xorStream は mode に従って keystream を繰り返し XOR します
func xorStream(mode XORMode, data []byte, keystream []byte) {
	if mode != BulkXOR || len(data) < len(keystream) || len(keystream) == 0 {
		XORStream(data, keystream)
		return
	}
	// keystream の周期を保ったまま bulkBlock 程度まで並べる
	reps := max(1, bulkBlock/len(keystream))
	block := make([]byte, 0, reps*len(keystream))
	for range reps {
		block = append(block, keystream...)
	}
	for off := 0; off < len(data); off += len(block) {
		chunk := data[off:min(off+len(block), len(data))]
		subtle.XORBytes(chunk, chunk, block)
	}
}
