package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type IDGenerator interface {
	OrderID(now time.Time) string
	ReturnID(now time.Time) string
	TrackingNumber() string
}

type RandomIDs struct{}

func (RandomIDs) OrderID(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), randomSuffix(5))
}

func (RandomIDs) ReturnID(now time.Time) string {
	return fmt.Sprintf("RET-%d-%s", now.UnixMilli(), randomSuffix(5))
}

func (RandomIDs) TrackingNumber() string {
	return "TRK" + randomSuffix(8)
}

func randomSuffix(n int) string {
	max := big.NewInt(int64(len(idAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(fmt.Sprintf("failed to read random bytes: %v", err))
		}
		b[i] = idAlphabet[idx.Int64()]
	}
	return string(b)
}
