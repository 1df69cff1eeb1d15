package format

import (
	"regexp"
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len returns the length of s in UTF-16 code units, the unit Telegram
// uses for entity offsets.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

var (
	headerRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)$`)

	// Alternatives are tried left to right, so ** wins over *.
	inlineRe = regexp.MustCompile("\\*\\*(.+?)\\*\\*|__(.+?)__|`([^`]+?)`|\\*([^*\\n]+?)\\*|_([^_\\n]+?)_")
)

// entityTypes maps inlineRe's capture groups to entity types.
var entityTypes = []string{"bold", "bold", "code", "italic", "italic"}

// ParseMarkdown converts a small Markdown subset to plain text plus
// Telegram entities:
//   - **bold** and __bold__
//   - *italic* and _italic_
//   - `code`
//   - "# Header" lines, rendered bold
//
// Markers do not nest.
func ParseMarkdown(text string) ParseResult {
	text = headerRe.ReplaceAllString(text, "**$1**")

	var (
		out      strings.Builder
		entities []tgbotapi.MessageEntity
		offset   int
		last     int
	)
	for _, m := range inlineRe.FindAllStringSubmatchIndex(text, -1) {
		before := text[last:m[0]]
		out.WriteString(before)
		offset += UTF16Len(before)

		for g := range entityTypes {
			start, end := m[2+2*g], m[3+2*g]
			if start < 0 {
				continue
			}
			inner := text[start:end]
			length := UTF16Len(inner)
			entities = append(entities, tgbotapi.MessageEntity{
				Type:   entityTypes[g],
				Offset: offset,
				Length: length,
			})
			out.WriteString(inner)
			offset += length
			break
		}
		last = m[1]
	}
	out.WriteString(text[last:])

	return ParseResult{
		Text:     strings.TrimRight(out.String(), " \n"),
		Entities: entities,
	}
}
