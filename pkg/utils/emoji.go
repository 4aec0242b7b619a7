package utils

import "regexp"

var (
	// customEmojiPattern matches Discord custom emoji references like
	// <:name:123> and animated ones like <a:name:123>.
	customEmojiPattern = regexp.MustCompile(`<a?:\w+:\d+>`)

	// unicodeEmojiPattern matches runs of code points in the common emoji
	// blocks. A run of adjacent emoji counts as a single match.
	unicodeEmojiPattern = regexp.MustCompile(`[` +
		`\x{1F600}-\x{1F64F}` + // emoticons
		`\x{1F300}-\x{1F5FF}` + // symbols & pictographs
		`\x{1F680}-\x{1F6FF}` + // transport & map
		`\x{1F1E0}-\x{1F1FF}` + // flags
		`\x{1F900}-\x{1F9FF}` + // supplemental symbols
		`\x{1FA00}-\x{1FA6F}` + // chess symbols
		`\x{1FA70}-\x{1FAFF}` + // symbols extended
		`\x{2702}-\x{27B0}` + // dingbats
		`\x{2600}-\x{26FF}` + // misc symbols
		`]+`)
)

// ExtractEmojis returns all custom and unicode emojis found in text.
// Custom emoji matches come first, then unicode matches, each group in
// left-to-right order.
func ExtractEmojis(text string) []string {
	emojis := customEmojiPattern.FindAllString(text, -1)
	emojis = append(emojis, unicodeEmojiPattern.FindAllString(text, -1)...)
	if emojis == nil {
		return []string{}
	}
	return emojis
}
