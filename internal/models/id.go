package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateID returns a prefixed, time-ordered business identifier,
// e.g. "ORD1724572800123456".
func GenerateID(prefix string) string {
	max := big.NewInt(999999)
	n, _ := rand.Int(rand.Reader, max)
	return fmt.Sprintf("%s%d%06d", prefix, time.Now().Unix(), n.Int64())
}
