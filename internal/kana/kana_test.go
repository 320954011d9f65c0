package kana

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "katakana word", in: "サクラ", want: "さくら"},
		{name: "hiragana passes through", in: "さくら", want: "さくら"},
		{name: "mixed scripts", in: "さクら", want: "さくら"},
		{name: "small kana", in: "キャット", want: "きゃっと"},
		{name: "voiced marks", in: "ガギグゲゴ", want: "がぎぐげご"},
		{name: "n at block end", in: "パン", want: "ぱん"},
		{name: "plain vu", in: "ヴ", want: "ゔ"},
		{name: "vu trailing", in: "カヴ", want: "かゔ"},
		{name: "vu plus small vowel", in: "ヴァイオリン", want: "ゔぁいおりん"},
		{name: "vu plus small glide", in: "ヴョ", want: "ゔょ"},
		{name: "vu plus full-size kana uses offset", in: "ヴア", want: "ゔあ"},
		{name: "non-kana untouched", in: "abc123 漢字", want: "abc123 漢字"},
		{name: "empty", in: "", want: ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"サクラ", "ヴァイオリン", "きゃっと", "パンダZOO"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "normalize(normalize(%q))", in)
	}
}
