package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAflBoundaryValueIntType(t *testing.T) {
	m := MaskSlot{Type: "INT", Original: "1"}
	v := aflBoundaryValue(m)
	assert.NotEmpty(t, v)
}

func TestAflBoundaryValueStringType(t *testing.T) {
	m := MaskSlot{Type: "VARCHAR", Original: "x"}
	v := aflBoundaryValue(m)
	assert.NotEmpty(t, v)
}

func TestAflBoundaryValueUnknownTypeFallsBackToBitFlip(t *testing.T) {
	m := MaskSlot{Type: "BLOB", Original: "abc"}
	v := aflBoundaryValue(m)
	assert.Len(t, v, 3)
	assert.NotEqual(t, "abc", v)
}

func TestBitFlipEmptyStringIsNoOp(t *testing.T) {
	assert.Equal(t, "", bitFlip(""))
}
