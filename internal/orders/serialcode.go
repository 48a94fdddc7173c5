package orders

import (
	"crypto/rand"
	"math/big"
	"time"
)

const (
	serialCodePrefix = "CMD"
	serialAlphabet   = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	serialSuffixLen  = 5
)

// NewSerialCode returns CMD-YYYYMMDD-XXXXX for the calendar day of t.
func NewSerialCode(t time.Time) string {
	buf := make([]byte, serialSuffixLen)
	max := big.NewInt(int64(len(serialAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		buf[i] = serialAlphabet[n.Int64()]
	}
	return serialCodePrefix + "-" + t.Format("20060102") + "-" + string(buf)
}
