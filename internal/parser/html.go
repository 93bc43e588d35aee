package parser

import (
	"html"
	"regexp"
)

var (
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlScripts  = regexp.MustCompile(`(?is)<(script|style|head)\b.*?</(script|style|head)>`)
	htmlBlockEnd = regexp.MustCompile(`(?i)</(p|div|li|h[1-6]|tr|table|section|article|blockquote|pre)>|<br\s*/?>`)
	htmlTags     = regexp.MustCompile(`(?s)<[^>]+>`)
)

// stripHTML reduces an HTML document to its visible text. Block-level
// closing tags become newlines so paragraph structure survives.
func stripHTML(content string) string {
	content = htmlComments.ReplaceAllString(content, "")
	content = htmlScripts.ReplaceAllString(content, "")
	content = htmlBlockEnd.ReplaceAllString(content, "\n")
	content = htmlTags.ReplaceAllString(content, " ")
	return html.UnescapeString(content)
}
