package output

import "strings"

// FormatHeader returns a Markdown heading of the given level.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue returns a Markdown list item "- **key**: value".
func FormatKeyValue(key, value string) string {
	return "- **" + key + "**: " + value
}
