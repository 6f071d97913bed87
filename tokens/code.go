package tokens

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Alphabet leaves out I, O, 0 and 1. Its 32 symbols divide 256 evenly,
// so reducing a random byte modulo len(Alphabet) is unbiased.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength gives 32^8 ≈ 1.1e12 codes.
const CodeLength = 8

func generateCode(random io.Reader) (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf), nil
}

// ValidCode reports whether code has the issued shape. Anything else can
// be rejected without touching the live table.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !inAlphabet(code[i]) {
			return false
		}
	}
	return true
}

func inAlphabet(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}

var defaultRandom io.Reader = rand.Reader
