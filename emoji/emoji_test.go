package emoji_test

import (
	"testing"

	"github.com/njyeung/sofa/emoji"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"single", "hi 😀", "hi [e-1f600]"},
		{"heart", "❤ it", "[e-2764] it"},
		{"zwj family", "👨‍👩", "[e-1f468][e-200d][e-1f469]"},
		{"literal escape", "[e-1f600]", "[e-5b]e-1f600]"},
		{"lone bracket", "[x]", "[x]"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, emoji.Encode(tt.in))
		})
	}
}

func TestDecode(t *testing.T) {
	require.Equal(t, "hi 😀", emoji.Decode("hi [e-1f600]"))
	require.Equal(t, "hi 😀", emoji.Decode("hi [e-1F600]"))
	require.Equal(t, "[e-zz]", emoji.Decode("[e-zz]"))
	require.Equal(t, "[e-d800]", emoji.Decode("[e-d800]"))
	require.Equal(t, "[e-fffffff]", emoji.Decode("[e-fffffff]"))
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		"😀😃😄 mixed ✨ text ⭐",
		"👍🏽 skin tone",
		"🏳️‍🌈 flag",
		"keycap 1️⃣",
		"literal [e-1f600] stays",
		"[e-",
		"[e-[e-5b]]",
		"日本語 and emoji 🍣",
		"@alice nice! 🎉",
	}
	for _, in := range inputs {
		require.Equal(t, in, emoji.Decode(emoji.Encode(in)), "input %q", in)
	}
}
