package measure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_NullDistinctFromZero(t *testing.T) {
	zero := Int(0)
	null := Null()

	assert.False(t, zero.IsNull())
	assert.True(t, null.IsNull())
	assert.Equal(t, "0", zero.Text(""))
	assert.Equal(t, "", null.Text(""))
	assert.NotEqual(t, zero.Text("NA"), null.Text("NA"))
}

func TestValue_Text(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"int", Int(42), "42"},
		{"float", Number(0.25), "0.25"},
		{"true", Bool(true), "true"},
		{"false", Bool(false), "false"},
		{"string", String("MIT"), "MIT"},
		{"null", Null(), "NA"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.v.Text("NA"))
		})
	}
}

func TestValue_NaNIsNull(t *testing.T) {
	assert.True(t, Number(math.NaN()).IsNull())
}

func TestValue_Float(t *testing.T) {
	f, ok := Bool(true).Float()
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)

	_, ok = String("x").Float()
	assert.False(t, ok)

	_, ok = Null().Float()
	assert.False(t, ok)
}

func TestValue_ZeroValueIsNull(t *testing.T) {
	var v Value
	assert.Equal(t, KindNull, v.Kind())
	assert.Equal(t, "null", v.String())
}
