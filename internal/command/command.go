// Package command turns free-text email bodies into commands and routes
// them to registered handlers.
package command

import "strings"

// Marker is the optional prefix in front of a command name ("/health").
const Marker = '/'

// Command is a single instruction parsed from the first line of a text.
type Command struct {
	// Name is the normalized command name (see Normalize). Never empty.
	Name string `json:"name"`

	// Args holds the whitespace-separated tokens following the name.
	Args []string `json:"args"`

	// RawText is the complete, unmodified input the command came from.
	RawText string `json:"raw_text"`
}

// Normalize trims whitespace, strips every leading Marker and lowercases
// the result. Registration and lookup keys both go through here.
func Normalize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, string(Marker))
	return strings.ToLower(name)
}

// Parse extracts a command from text. Only the first line of the
// whitespace-trimmed text is inspected; later lines are ignored. It
// reports false when the text holds no usable command.
func Parse(text string) (Command, bool) {
	stripped := strings.TrimSpace(text)
	if stripped == "" {
		return Command{}, false
	}

	firstLine := stripped
	if i := strings.IndexAny(stripped, "\r\n"); i >= 0 {
		firstLine = stripped[:i]
	}
	firstLine = strings.TrimSpace(firstLine)
	if firstLine == "" {
		return Command{}, false
	}

	parts := strings.Fields(firstLine)
	if len(parts) == 0 {
		return Command{}, false
	}

	name := Normalize(parts[0])
	if name == "" {
		return Command{}, false
	}

	args := make([]string, 0, len(parts)-1)
	args = append(args, parts[1:]...)

	return Command{
		Name:    name,
		Args:    args,
		RawText: text,
	}, true
}
