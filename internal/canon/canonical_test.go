package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", Str("hello"), `"hello"`},
		{"empty string", Str(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"zero", Int(0), "0"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"empty array", Arr{}, "[]"},
		{"empty object", Obj{}, "{}"},
		{"array of ints", Arr{Int(1), Int(2), Int(3)}, "[1,2,3]"},
		{"simple object", Obj{"a": Int(1)}, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	obj := Obj{
		"zebra": Int(1),
		"alpha": Int(2),
		"beta":  Int(3),
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalNestedSortedKeys(t *testing.T) {
	obj := Obj{
		"z": Obj{
			"b": Int(1),
			"a": Int(2),
		},
		"a": Int(3),
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000 - UTF-16 order differs from UTF-8.
	// 0xD800 (surrogate pair lead of U+10000) sorts before 0xE000.
	obj := Obj{
		"": Int(1),
		"𐀀": Int(2),
	}

	result, err := Marshal(obj)
	require.NoError(t, err)

	expected := `{"𐀀":2,"` + "" + `":1}`
	assert.Equal(t, expected, string(result))
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	obj := Obj{"expr": Str("a < b && c > d")}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"expr":"a < b && c > d"}`, string(result))
}

func TestMarshalRejectsFloats(t *testing.T) {
	_, err := Marshal(map[string]any{"price": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

func TestMarshalRejectsNull(t *testing.T) {
	_, err := Marshal(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestMarshalDeterministic(t *testing.T) {
	obj := Obj{
		"rfq_id":         Int(7),
		"cusip":          Str("912828YK0"),
		"side":           Str("BUY"),
		"quantity":       Int(1000000),
		"price":          Int(99875),
		"quote_sequence": Int(3),
	}

	first, err := Marshal(obj)
	require.NoError(t, err)

	// Map iteration order must not leak into the output.
	for i := 0; i < 50; i++ {
		again, err := Marshal(obj)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	obj := Obj{
		"cusip":   Str("037833100"),
		"enabled": Bool(true),
		"min":     Int(100),
		"tags":    Arr{Str("govt"), Str("liquid")},
	}

	data, err := Marshal(obj)
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, obj, back)
}

func TestUnmarshalRejectsFloat(t *testing.T) {
	_, err := Unmarshal([]byte(`{"price":1.25}`))
	require.Error(t, err)
}

func TestUnmarshalRejectsNull(t *testing.T) {
	_, err := Unmarshal([]byte(`{"price":null}`))
	require.Error(t, err)
}

func TestUnmarshalLargeInt(t *testing.T) {
	// Values above 2^53 must not lose precision through float64.
	v, err := Unmarshal([]byte(`{"n":9007199254740993}`))
	require.NoError(t, err)
	assert.Equal(t, Obj{"n": Int(9007199254740993)}, v)
}

func TestFromAnyYAMLShapes(t *testing.T) {
	// yaml.v3 decodes scalars to int, string, bool inside map[string]any.
	v, err := FromAny(map[string]any{
		"quantity": 200,
		"cusip":    "912828YK0",
		"enabled":  true,
	})
	require.NoError(t, err)
	assert.Equal(t, Obj{
		"quantity": Int(200),
		"cusip":    Str("912828YK0"),
		"enabled":  Bool(true),
	}, v)
}
