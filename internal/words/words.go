// Package words loads the kana dictionary and the per-difficulty pattern
// sets from disk. The game treats both as opaque lookups.
package words

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"

	"github.com/kanabomb/server/internal/kana"
)

// Dictionary buckets valid words by their first rune.
type Dictionary map[rune]map[string]struct{}

// Contains reports whether word is in the bucket keyed by its first rune.
// A missing bucket (or empty word) fails closed.
func (d Dictionary) Contains(word string) bool {
	if word == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(word)
	bucket, ok := d[first]
	if !ok {
		return false
	}
	_, ok = bucket[word]
	return ok
}

// Tier selects which pattern set the game draws from.
type Tier int

const (
	TierEasy Tier = iota + 1
	TierMedium
	TierHard
	TierPractice // same patterns as easy
)

// ParseTier maps a settings string to a tier. Unrecognized values fall back
// to easy.
func ParseTier(s string) Tier {
	switch s {
	case "medium":
		return TierMedium
	case "hard":
		return TierHard
	default:
		return TierEasy
	}
}

// PatternSet is the pool of kana fragments for one difficulty tier.
type PatternSet []string

// Patterns holds the loaded pattern sets for every tier with its own file.
type Patterns map[Tier]PatternSet

// ForTier returns the set for t. Practice and unknown tiers resolve to easy.
func (p Patterns) ForTier(t Tier) PatternSet {
	if set, ok := p[t]; ok {
		return set
	}
	return p[TierEasy]
}

// canon folds half-width katakana to full width, then converts katakana to
// hiragana, so data files can mix scripts and widths freely.
func canon(line string) string {
	return kana.Normalize(width.Widen.String(strings.TrimSpace(line)))
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := canon(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lines, nil
}

// LoadDictionary reads one word per line from path and buckets by first rune.
func LoadDictionary(path string) (Dictionary, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("load dictionary: %w", err)
	}

	dict := make(Dictionary)
	for _, word := range lines {
		first, _ := utf8.DecodeRuneInString(word)
		bucket, ok := dict[first]
		if !ok {
			bucket = make(map[string]struct{})
			dict[first] = bucket
		}
		bucket[word] = struct{}{}
	}
	return dict, nil
}

// LoadPatterns reads patterns1.txt through patterns3.txt from dir.
func LoadPatterns(dir string) (Patterns, error) {
	sets := make(Patterns)
	for tier := TierEasy; tier <= TierHard; tier++ {
		path := filepath.Join(dir, fmt.Sprintf("patterns%d.txt", int(tier)))
		lines, err := readLines(path)
		if err != nil {
			return nil, fmt.Errorf("load patterns tier %d: %w", int(tier), err)
		}
		if len(lines) == 0 {
			return nil, fmt.Errorf("load patterns tier %d: %s is empty", int(tier), path)
		}
		sets[tier] = lines
	}
	return sets, nil
}
