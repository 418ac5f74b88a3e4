package repair

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// intBoundaries are the AFL-style interesting integer values applied
// regardless of declared width; a too-large value for a narrow column is
// exactly the kind of crash-provoking input this scheduler exists to find.
var intBoundaries = []int64{0, 1, -1, 127, -128, 255, 32767, -32768, 65535,
	2147483647, -2147483648, 9223372036854775807, -9223372036854775808}

var stringBoundaries = []string{"", "'", "\"", "NULL", "%s%s%s%s", strings.Repeat("A", 256)}

// aflBoundaryValue produces an AFL-style random replacement for a mask,
// choosing an integer or string boundary depending on the mask's declared
// type, falling back to bit-flipping the original bytes.
func aflBoundaryValue(m MaskSlot) string {
	t := strings.ToLower(m.Type)
	switch {
	case strings.Contains(t, "int") || strings.Contains(t, "numeric") || strings.Contains(t, "decimal"):
		return strconv.FormatInt(intBoundaries[rand.N(len(intBoundaries))], 10)
	case strings.Contains(t, "char") || strings.Contains(t, "text") || strings.Contains(t, "varchar"):
		return "'" + stringBoundaries[rand.N(len(stringBoundaries))] + "'"
	default:
		return bitFlip(m.Original)
	}
}

// bitFlip flips a random bit in the original value's bytes, the
// lowest-common-denominator AFL mutation when the type is unrecognized.
func bitFlip(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	i := rand.N(len(b))
	bit := rand.N(8)
	b[i] ^= 1 << bit
	return string(b)
}
