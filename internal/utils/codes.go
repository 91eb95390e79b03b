package utils

import (
	"crypto/rand"
	"hash/crc32"
	"strings"
)

// Base32Chars is the alphabet of human-readable codes. I, O, S and Z are left out
// so that codes read off paper survive being retyped.
const Base32Chars = "0123456789ABCDEFGHJKLMNPQRTUVWXY"

// VerificationCodeLength is the body length plus the two check characters
const VerificationCodeLength = 22

const codeBodyLength = VerificationCodeLength - 2

var base32BackHash = make(map[byte]int)

// lookalikes maps the excluded letters to the digit they are mistaken for
var lookalikes = map[rune]rune{'I': '1', 'O': '0', 'S': '5', 'Z': '2'}

func init() {
	for i, c := range []byte(Base32Chars) {
		base32BackHash[c] = i
	}
}

// CRCFromString generates a 2-character check value
func CRCFromString(value string) string {
	temp := crc32.ChecksumIEEE([]byte(value)) & 1023
	return string(Base32Chars[temp>>5]) + string(Base32Chars[temp&31])
}

// NewVerificationCode returns 100 random bits in Base32Chars followed by a check pair
func NewVerificationCode() string {
	buf := make([]byte, codeBodyLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i := range buf {
		buf[i] = Base32Chars[buf[i]&31]
	}
	body := string(buf)
	return body + CRCFromString(body)
}

// NormalizeVerificationCode uppercases, drops separators and folds lookalike letters
func NormalizeVerificationCode(code string) string {
	var b strings.Builder
	b.Grow(len(code))
	for _, r := range strings.ToUpper(code) {
		switch {
		case r == '-' || r == ' ':
			continue
		case lookalikes[r] != 0:
			b.WriteRune(lookalikes[r])
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidVerificationCode checks the alphabet and the check pair of a normalized code
func ValidVerificationCode(code string) bool {
	if len(code) != VerificationCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if _, ok := base32BackHash[code[i]]; !ok {
			return false
		}
	}
	return CRCFromString(code[:codeBodyLength]) == code[codeBodyLength:]
}
