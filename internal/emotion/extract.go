// Package emotion implements the bracket-tag emotion extractor: scanning
// text for [key] tokens and mapping them to expression ids via a live
// model's emotion map.
package emotion

import "strings"

// Extract scans text left to right. On '[' it attempts a longest-match
// lookup of the bracketed key (case-insensitive) against emotionMap; on a
// match it appends the mapped expression id and resumes scanning after the
// closing ']'. Unterminated or unmatched brackets are treated as literal
// text and the scan simply advances one character. Extract never fails;
// characters outside matches are ignored and duplicate tags produce
// duplicate ids in order.
func Extract(text string, emotionMap map[string]int) []int {
	var ids []int
	if len(emotionMap) == 0 {
		return ids
	}

	i := 0
	for i < len(text) {
		if text[i] != '[' {
			i++
			continue
		}
		end := strings.IndexByte(text[i+1:], ']')
		if end < 0 {
			// Unterminated '[': literal, advance one character.
			i++
			continue
		}
		key := strings.ToLower(text[i+1 : i+1+end])
		if id, ok := emotionMap[key]; ok {
			ids = append(ids, id)
			i = i + 1 + end + 1
			continue
		}
		// No match for this bracketed span: treat '[' as literal and
		// continue scanning from the next character, so a nested or
		// malformed bracket still makes progress.
		i++
	}
	return ids
}

// StripTags removes every recognized [key] tag from text, leaving the
// surrounding prose intact for display_text surfaces. Unrecognized or
// unterminated brackets are left untouched, matching Extract's scan.
func StripTags(text string, emotionMap map[string]int) string {
	if len(emotionMap) == 0 {
		return text
	}

	var b strings.Builder
	i := 0
	for i < len(text) {
		if text[i] != '[' {
			b.WriteByte(text[i])
			i++
			continue
		}
		end := strings.IndexByte(text[i+1:], ']')
		if end < 0 {
			b.WriteByte(text[i])
			i++
			continue
		}
		key := strings.ToLower(text[i+1 : i+1+end])
		if _, ok := emotionMap[key]; ok {
			i = i + 1 + end + 1
			continue
		}
		b.WriteByte(text[i])
		i++
	}
	return b.String()
}
