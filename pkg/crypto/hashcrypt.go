package crypto

// HashCrypt はチェックサムの下位 1 バイトで全体を XOR します
type HashCrypt struct {
	Mode XORMode
}

// Crypt は data を checksum & 0xFF で XOR します
func (c *HashCrypt) Crypt(data []byte, checksum uint32) {
	xorKey(c.Mode, data, byte(checksum))
}

func (c *HashCrypt) String() string {
	return "HashCrypt"
}
