package canonical

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeys(t *testing.T) {
	in := map[string]interface{}{"b": 1, "a": 2, "c": map[string]interface{}{"z": 1, "y": 2}}
	out, err := Marshal(in)
	require.NoError(t, err)
	require.Equal(t, `{"a":2,"b":1,"c":{"y":2,"z":1}}`, string(out))
}

func TestMarshalPreservesArrayOrder(t *testing.T) {
	in := []interface{}{3, 1, 2}
	out, err := Marshal(in)
	require.NoError(t, err)
	require.Equal(t, `[3,1,2]`, string(out))
}

func TestMarshalNormalizesNumbers(t *testing.T) {
	out, err := Marshal(map[string]interface{}{"a": 100.0, "b": 1.50})
	require.NoError(t, err)
	require.Equal(t, `{"a":100,"b":1.5}`, string(out))
}

func TestMarshalRejectsNaNAndInfinity(t *testing.T) {
	_, err := Recanonicalize([]byte(`{"a": NaN}`))
	require.Error(t, err)
}

func TestRoundTripLaw(t *testing.T) {
	in := map[string]interface{}{"x": []interface{}{1, "two", 3.0}, "y": true}
	first, err := Marshal(in)
	require.NoError(t, err)
	second, err := Recanonicalize(first)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestHashPairNotRawConcatenation(t *testing.T) {
	l := HashBytes([]byte("left"))
	r := HashBytes([]byte("right"))
	concat := HashBytes(append(append([]byte{}, l[:]...), r[:]...))
	require.NotEqual(t, concat, HashPair(l, r))
}

func TestHashDeterministic(t *testing.T) {
	in := map[string]interface{}{"a": 1, "b": 2}
	h1, err := Hash(in)
	require.NoError(t, err)
	h2, err := Hash(map[string]interface{}{"b": 2, "a": 1})
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}
