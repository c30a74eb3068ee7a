package crypto

// NoCrypt は暗号化を行わない Crypter
type NoCrypt struct{}

// Crypt は何もしません
func (NoCrypt) Crypt([]byte, uint32) {}

func (NoCrypt) String() string {
	return "NoCrypt"
}
