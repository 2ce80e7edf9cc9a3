package common

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

// StripMarkdown renders Markdown to HTML and returns the visible text.
func StripMarkdown(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(src, &buf); err != nil {
		return "", err
	}
	return HTMLText(buf.String()), nil
}

// HTMLText returns the text content of an HTML fragment, with elements
// separated by spaces. Script and style bodies are dropped.
func HTMLText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(sb.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.Write(z.Text())
		}
	}
}

var (
	rstDirective  = regexp.MustCompile(`(?m)^\.\.\s+[\w:-]+::.*$`)
	rstComment    = regexp.MustCompile(`(?m)^\.\.(?:\s.*)?$`)
	rstAdornment  = regexp.MustCompile(`(?m)^[=\-~^"'` + "`" + `#*+:._]{3,}\s*$`)
	rstRole       = regexp.MustCompile(":[\\w-]+:`([^`]*)`")
	rstLink       = regexp.MustCompile("`([^`<]*?)\\s*<[^>]*>`_{1,2}")
	rstLiteral    = regexp.MustCompile("``([^`]*)``")
	rstInterp     = regexp.MustCompile("`([^`]*)`_{0,2}")
	rstEmphasis   = regexp.MustCompile(`\*{1,2}([^*\n]+)\*{1,2}`)
	rstFieldStart = regexp.MustCompile(`(?m)^:[\w -]+:\s*`)
)

// StripRST removes reStructuredText markup, keeping the prose.
func StripRST(src string) string {
	s := rstDirective.ReplaceAllString(src, "")
	s = rstComment.ReplaceAllString(s, "")
	s = rstAdornment.ReplaceAllString(s, "")
	s = rstLink.ReplaceAllString(s, "$1")
	s = rstRole.ReplaceAllString(s, "$1")
	s = rstLiteral.ReplaceAllString(s, "$1")
	s = rstInterp.ReplaceAllString(s, "$1")
	s = rstEmphasis.ReplaceAllString(s, "$1")
	s = rstFieldStart.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
