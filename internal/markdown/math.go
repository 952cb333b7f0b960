package markdown

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	fencedCode  = regexp.MustCompile("(?ms)^[ \t]*(?:```|~~~)[^\n]*\n.*?^[ \t]*(?:```|~~~)[ \t]*$")
	inlineCode  = regexp.MustCompile("`[^`\n]+`")
	displayMath = regexp.MustCompile(`(?s)\$\$.+?\$\$`)
	latexEnv    = regexp.MustCompile(`(?s)\\begin\{[A-Za-z*]+\}.*?\\end\{[A-Za-z*]+\}`)
	inlineMath  = regexp.MustCompile(`\$[^\s$](?:[^$\n]*[^\s$\\])?\$`)
)

// mathStash holds TeX spans removed from the markdown so emphasis and escape
// processing cannot alter them.
type mathStash struct {
	spans []string
}

func placeholder(i int) string { return fmt.Sprintf("MATHPH%dXQZ", i) }

// protect replaces math outside code with placeholders.
func (m *mathStash) protect(src string) string {
	return mapOutside(src, fencedCode, func(prose string) string {
		return mapOutside(prose, inlineCode, m.replaceMath)
	})
}

func (m *mathStash) replaceMath(s string) string {
	s = m.stash(s, displayMath)
	s = m.stash(s, latexEnv)
	return m.stash(s, inlineMath)
}

func (m *mathStash) stash(s string, re *regexp.Regexp) string {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return s
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if loc[0] > 0 && s[loc[0]-1] == '\\' {
			continue // escaped dollar
		}
		b.WriteString(s[last:loc[0]])
		b.WriteString(placeholder(len(m.spans)))
		m.spans = append(m.spans, s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(s[last:])
	return b.String()
}

// restore puts the escaped TeX back into rendered HTML.
func (m *mathStash) restore(rendered string) string {
	return m.replacer(html.EscapeString).Replace(rendered)
}

// restoreText puts the TeX back into plain text.
func (m *mathStash) restoreText(s string) string {
	return m.replacer(func(span string) string { return span }).Replace(s)
}

func (m *mathStash) replacer(encode func(string) string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(m.spans))
	for i, span := range m.spans {
		pairs = append(pairs, placeholder(i), encode(span))
	}
	return strings.NewReplacer(pairs...)
}

// mapOutside applies fn to the parts of s that do not match re.
func mapOutside(s string, re *regexp.Regexp, fn func(string) string) string {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return fn(s)
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		b.WriteString(fn(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(fn(s[last:]))
	return b.String()
}
