package crypto

import "fmt"

// NekoCrypt はマスターキーとチェックサムから導出した 1 バイトで XOR します
type NekoCrypt struct {
	MasterKey uint32
	SubKey    byte
	// XORFirstByte が true の場合、先頭バイトを別の鍵でも XOR します
	XORFirstByte bool
	Mode         XORMode
}

// Keys は checksum に対する一括鍵と先頭バイト用の鍵を返します
func (c *NekoCrypt) Keys(checksum uint32) (key, firstKey byte) {
	derived := checksum ^ c.MasterKey
	key = byte(derived>>24 ^ derived>>16 ^ derived>>8 ^ derived)
	if key == 0 {
		key = c.SubKey
	}
	firstKey = byte(derived)
	if firstKey == 0 {
		firstKey = byte(c.MasterKey)
	}
	return key, firstKey
}

// Crypt は data をその場で変換します。
// XORFirstByte の場合、先頭バイトは firstKey と key の両方で XOR されます。
func (c *NekoCrypt) Crypt(data []byte, checksum uint32) {
	key, firstKey := c.Keys(checksum)
	if c.XORFirstByte && len(data) > 0 {
		data[0] ^= firstKey
	}
	xorKey(c.Mode, data, key)
}

func (c *NekoCrypt) String() string {
	s := fmt.Sprintf("NekoCrypt (%#08x, %#02x", c.MasterKey, c.SubKey)
	if c.XORFirstByte {
		s += ", xor first byte"
	}
	return s + ")"
}
