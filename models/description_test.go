package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDescription(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"keeps editor markup", "<p><strong>Bold</strong> and <em>it</em></p>", "<p><strong>Bold</strong> and <em>it</em></p>"},
		{"drops scripts with content", `<p>ok</p><script>alert(1)</script>`, "<p>ok</p>"},
		{"unwraps unknown tags", `<div><p>inside</p></div>`, "<p>inside</p>"},
		{"strips event handlers", `<p onclick="steal()">x</p>`, "<p>x</p>"},
		{"keeps color styles", `<span style="color: #ff0000; position: fixed">red</span>`, `<span style="color: #ff0000">red</span>`},
		{"rejects url in style", `<mark style="background-color: url(javascript:x)">h</mark>`, "<mark>h</mark>"},
		{"keeps http links", `<a href="https://example.com" target="_blank">site</a>`, `<a href="https://example.com" rel="noopener noreferrer nofollow">site</a>`},
		{"unwraps javascript links", `<a href="javascript:alert(1)">bad</a>`, "bad"},
		{"escapes text", `<p>1 &lt; 2</p>`, "<p>1 &lt; 2</p>"},
		{"void tags", "<p>a<br>b</p><hr>", "<p>a<br>b</p><hr>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeDescription(tt.in))
		})
	}
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Title First item Second", PlainText("<h1>Title</h1><ul><li>First item</li><li>Second</li></ul>"))
	assert.Equal(t, "a & b", PlainText("<p>a &amp; b</p><style>p{}</style>"))
	assert.Equal(t, "", PlainText(""))
}
