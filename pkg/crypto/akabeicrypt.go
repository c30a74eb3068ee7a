package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// KeystreamSize は AkabeiCrypt のキーストリーム長
const KeystreamSize = 0x20

// AkabeiCrypt はシードとチェックサムから生成した 32 バイトのキーストリームで XOR します
type AkabeiCrypt struct {
	Seed uint32
	Mode XORMode
}

// Keystream は checksum に対するキーストリームを生成します
func (c *AkabeiCrypt) Keystream(checksum uint32) []byte {
	ks := make([]byte, KeystreamSize)
	state := uint64((checksum ^ c.Seed) & 0x7FFFFFFF)
	state = state<<31 | state
	for i := range ks {
		ks[i] = byte(state)
		state = (state&0xFFFFFFFE)<<23 | state>>8
	}
	return ks
}

// Crypt はキーストリームを data の長さまで繰り返して XOR します
func (c *AkabeiCrypt) Crypt(data []byte, checksum uint32) {
	if len(data) == 0 {
		return
	}
	xorStream(c.Mode, data, c.Keystream(checksum))
}

func (c *AkabeiCrypt) String() string {
	var seed [4]byte
	binary.LittleEndian.PutUint32(seed[:], c.Seed)
	return fmt.Sprintf("AkabeiCrypt (%s)", hex.EncodeToString(seed[:]))
}
