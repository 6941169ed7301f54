// Package sanitizer cleans user-supplied text before it is stored.
package sanitizer

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strict = sync.OnceValue(bluemonday.StrictPolicy)
	notes  = sync.OnceValue(func() *bluemonday.Policy {
		p := bluemonday.NewPolicy()
		p.AllowStandardURLs()
		p.AllowElements("p", "br", "strong", "b", "em", "i", "ul", "ol", "li", "code", "pre", "blockquote")
		p.AllowAttrs("href").OnElements("a")
		p.RequireNoFollowOnLinks(true)
		return p
	})
)

// Text strips every tag, decodes entities and collapses whitespace. User
// names, full names and file names go through it.
func Text(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(strict().Sanitize(s))), " ")
}

// HTML keeps basic formatting and links and drops everything that can run
// script.
func HTML(s string) string {
	return notes().Sanitize(s)
}
