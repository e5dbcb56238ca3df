package service

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
	"unicode"
)

// MaxOrderIDLen is the longest order id the gateway accepts.
const MaxOrderIDLen = 20

const alnum = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// SanitizeOrderID keeps ASCII letters and digits and cuts to MaxOrderIDLen.
// It is idempotent.
func SanitizeOrderID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			if b.Len() == MaxOrderIDLen {
				break
			}
		}
	}
	return b.String()
}

// newOrderID builds prefix + MMDDHHMMSS + 3 random digits, sanitized.
func newOrderID(prefix string, now time.Time) string {
	return SanitizeOrderID(prefix + now.Format("0102150405") + randomDigits(3))
}

// withSuffix makes room for a random suffix of n characters.
func withSuffix(id string, n int) string {
	if len(id)+n > MaxOrderIDLen {
		id = id[:MaxOrderIDLen-n]
	}
	return id + randomString(alnum, n)
}

func randomDigits(n int) string {
	return randomString("0123456789", n)
}

func randomString(charset string, n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := range out {
		v, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand unavailable: " + err.Error())
		}
		out[i] = charset[v.Int64()]
	}
	return string(out)
}
