// Package sanitize renders agent prompts written in HTML as the plain-text
// script the remote platform speaks.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// allowed is the set of tags whose structure survives sanitization.
// Every other tag is stripped; its inner text is kept.
var allowed = map[atom.Atom]bool{
	atom.P:      true,
	atom.B:      true,
	atom.I:      true,
	atom.U:      true,
	atom.Strong: true,
	atom.Em:     true,
	atom.H1:     true,
	atom.H2:     true,
	atom.H3:     true,
	atom.Ul:     true,
	atom.Ol:     true,
	atom.Li:     true,
}

// block tags start and end a line.
var block = map[atom.Atom]bool{
	atom.P:  true,
	atom.H1: true,
	atom.H2: true,
	atom.H3: true,
	atom.Ul: true,
	atom.Ol: true,
	atom.Li: true,
}

// Allowed reports whether tag is on the allow-list.
func Allowed(tag string) bool {
	return allowed[atom.Lookup([]byte(strings.ToLower(tag)))]
}

// Script converts an HTML fragment to plain text.
//
// Allow-listed block elements are separated by newlines, all markup is
// dropped, and blank lines plus surrounding whitespace are removed. The
// result is NFC-normalized. Malformed input never fails; the tokenizer
// recovers and whatever text it finds is returned.
func Script(input string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(input))

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; either way we are done.
			return finish(sb.String())
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if allowed[a] && block[a] {
				sb.WriteByte('\n')
			}
		}
		// Comments and doctypes carry no text.
	}
}

// finish trims each line, drops empty ones and NFC-normalises the result.
func finish(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		out = append(out, l)
	}
	return norm.NFC.String(strings.Join(out, "\n"))
}
