package phpserialize

import (
	"testing"

	reference "github.com/elliotchance/phpserialize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeList(t *testing.T) {
	cases := []struct {
		name   string
		values []string
		want   string
	}{
		{
			name:   "empty",
			values: nil,
			want:   "a:0:{}",
		},
		{
			name:   "two elements",
			values: []string{"a", "bb"},
			want:   `a:2:{i:0;s:1:"a";i:1;s:2:"bb";}`,
		},
		{
			name:   "plugin paths",
			values: []string{"sensei-content-drip/sensei-content-drip.php", "woothemes-sensei/woothemes-sensei.php"},
			want:   `a:2:{i:0;s:43:"sensei-content-drip/sensei-content-drip.php";i:1;s:37:"woothemes-sensei/woothemes-sensei.php";}`,
		},
		{
			name:   "multi-byte characters are counted in bytes",
			values: []string{"héllo", "日本"},
			want:   `a:2:{i:0;s:6:"héllo";i:1;s:6:"日本";}`,
		},
		{
			name:   "empty string element",
			values: []string{""},
			want:   `a:1:{i:0;s:0:"";}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EncodeList(tc.values))
		})
	}
}

func TestEncodeList_RoundTrip(t *testing.T) {
	inputs := [][]string{
		{"a", "bb"},
		{"akismet/akismet.php", "hello.php"},
		{"héllo", "日本語/プラグイン.php", `quote"inside`},
		{"semi;colon", "brace}", "colon:"},
	}

	for _, values := range inputs {
		decoded, err := reference.UnmarshalIndexedArray([]byte(EncodeList(values)))
		require.NoError(t, err, values)
		require.Len(t, decoded, len(values))

		for i, v := range values {
			assert.Equal(t, v, decoded[i])
		}
	}
}

func TestEncodeList_MatchesReferenceEncoder(t *testing.T) {
	values := []string{"a", "bb", "日本"}

	in := make([]interface{}, 0, len(values))
	for _, v := range values {
		in = append(in, v)
	}

	expected, err := reference.Marshal(in, nil)
	require.NoError(t, err)

	assert.Equal(t, string(expected), EncodeList(values))
}

func TestEncodeStringMap(t *testing.T) {
	got := EncodeStringMap([]Pair{{Key: "administrator", Value: "1"}})
	assert.Equal(t, `a:1:{s:13:"administrator";s:1:"1";}`, got)

	decoded, err := reference.UnmarshalAssociativeArray([]byte(got))
	require.NoError(t, err)
	assert.Equal(t, "1", decoded["administrator"])
}
