package sanitize_test

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/agentoven/voicebridge/internal/sanitize"
)

func TestScript_Heading(t *testing.T) {
	assert.Equal(t, "Hello", sanitize.Script("<h1>Hello</h1>"))
}

func TestScript_Cases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "just words", "just words"},
		{"empty", "", ""},
		{"whitespace only", "  \n\t ", ""},
		{"inline tags keep text on one line", "<p>Hello <b>big</b> <em>world</em></p>", "Hello big world"},
		{"paragraphs split lines", "<p>One</p><p>Two</p>", "One\nTwo"},
		{"disallowed tag text kept", `<div><a href="x">link</a> text</div>`, "link text"},
		{"entities decoded", "<p>Fish &amp; chips</p>", "Fish & chips"},
		{"comment dropped", "<p>a<!-- hidden -->b</p>", "ab"},
		{"unclosed tag", "<p>open <b>bold", "open bold"},
		{"stray close", "</p>text</li>", "text"},
		{"trims outer whitespace", "   <h2>  Title  </h2>  ", "Title"},
		{"trims every line", "<p>  a  </p><p>\tb </p>", "a\nb"},
		{"drops interior blank lines", "one\n\n\n<p></p>two", "one\ntwo"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitize.Script(tt.input))
		})
	}
}

func TestScript_Deterministic(t *testing.T) {
	in := "<ul><li>a</li><li>b</li></ul>"
	assert.Equal(t, sanitize.Script(in), sanitize.Script(in))
}

func TestScript_NFC(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	assert.Equal(t, "caf\u00e9", sanitize.Script("<p>cafe\u0301</p>"))
}

func TestAllowed(t *testing.T) {
	for _, tag := range []string{"p", "B", "i", "u", "strong", "em", "h1", "h2", "h3", "ul", "ol", "li"} {
		assert.True(t, sanitize.Allowed(tag), tag)
	}
	for _, tag := range []string{"div", "script", "h4", "span", "a", "br"} {
		assert.False(t, sanitize.Allowed(tag), tag)
	}
}

func TestScript_Golden(t *testing.T) {
	g := goldie.New(t)
	fixtures := map[string]string{
		"prompt_sections": "<h1>Greeting</h1>\n<p>Hi, I am calling from <strong>Acme</strong>.</p>\n<h2>Rules</h2>\n<ol>\n  <li>Be <em>polite</em></li>\n  <li>Never share <u>secrets</u></li>\n</ol>",
		"stripped_markup": "<div class=\"x\"><span>Call</span> <a href=\"#\">us</a></div><table><tr><td>now</td></tr></table><br/><p>Thanks</p>",
	}
	for name, input := range fixtures {
		t.Run(name, func(t *testing.T) {
			g.Assert(t, name, []byte(sanitize.Script(input)))
		})
	}
}
