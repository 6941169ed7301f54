package sanitizer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/canopyhq/canopy/pkg/sanitizer"
)

func TestText(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in   string
		want string
	}{
		"plain":            {in: "Ada Lovelace", want: "Ada Lovelace"},
		"tags stripped":    {in: "<b>Ada</b> <i>Lovelace</i>", want: "Ada Lovelace"},
		"script removed":   {in: `Ada<script>alert("x")</script>`, want: "Ada"},
		"entities decoded": {in: "Smith &amp; Sons", want: "Smith & Sons"},
		"whitespace":       {in: "  Ada \n\t Lovelace  ", want: "Ada Lovelace"},
		"empty":            {in: "", want: ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizer.Text(tt.in))
		})
	}
}

func TestHTML(t *testing.T) {
	t.Parallel()

	out := sanitizer.HTML(`<p onclick="x()">hi <a href="https://example.com">there</a><script>bad()</script></p>`)
	assert.Contains(t, out, "<p>hi ")
	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, `rel="nofollow"`)
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "script")

	assert.NotContains(t, sanitizer.HTML(`<a href="javascript:alert(1)">x</a>`), "javascript")
}
