// Package kana canonicalizes guesses so katakana and hiragana spellings of
// the same word compare equal. The dictionary stores hiragana only.
package kana

// Katakana block handled by the uniform offset (ァ..ン).
const (
	katakanaLo = 0x30A1
	katakanaHi = 0x30F3

	// Distance between a katakana rune and its hiragana counterpart.
	kataToHira = 0x60

	vu = 'ヴ'
)

// ヴ has no single hiragana counterpart when combined with a small vowel or
// glide; those pairs map to a ゔ digraph instead of the uniform offset.
var vuDigraphs = map[rune]rune{
	'ァ': 'ぁ',
	'ィ': 'ぃ',
	'ゥ': 'ぅ',
	'ェ': 'ぇ',
	'ォ': 'ぉ',
	'ャ': 'ゃ',
	'ュ': 'ゅ',
	'ョ': 'ょ',
}

// Normalize converts every katakana rune in s to its hiragana equivalent,
// leaving all other runes untouched. Total over any input and idempotent:
// hiragana and non-kana text pass through unchanged.
func Normalize(s string) string {
	runes := []rune(s)
	out := make([]rune, 0, len(runes))

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if r == vu {
			if i+1 < len(runes) {
				if small, ok := vuDigraphs[runes[i+1]]; ok {
					out = append(out, 'ゔ', small)
					i++
					continue
				}
			}
			out = append(out, 'ゔ')
			continue
		}

		if r >= katakanaLo && r <= katakanaHi {
			out = append(out, r-kataToHira)
			continue
		}

		out = append(out, r)
	}

	return string(out)
}
