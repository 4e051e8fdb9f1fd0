package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain passthrough", "  Potluck   after\nservice ", "Potluck after service"},
		{"paragraphs", "<p>Bring a dish.</p><p>All welcome!</p>", "Bring a dish. All welcome!"},
		{"line breaks", "Line one<br>Line two<br/>Line three", "Line one Line two Line three"},
		{"inline tags", "Join <strong>us</strong> at <a href=\"/x\">the hall</a>.", "Join us at the hall."},
		{"entities", "Fish &amp; chips &ndash; &quot;free&quot;", "Fish & chips – \"free\""},
		{"script dropped", "<script>alert(1)</script>Hello<style>p{}</style> world", "Hello world"},
		{"list", "<ul><li>One</li><li>Two</li></ul>", "One Two"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Plain(tt.in))
		})
	}
}
