package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVisibleText_DropsScriptsAndSeparatesBlocks(t *testing.T) {
	doc, err := NewDocument(`<html><head><title>Cafe X</title><style>p{}</style></head>
<body><p>Call us</p><p>(250) 555-0142</p><script>var x = "hidden@example.com";</script>
<noscript>enable js</noscript><div>info@cafex.ca</div></body></html>`, "https://cafex.ca/")
	require.NoError(t, err)

	text := doc.VisibleText()
	assert.Equal(t, "Call us (250) 555-0142 info@cafex.ca", text)
	assert.Equal(t, "Cafe X", doc.Title())
}

func TestResolve(t *testing.T) {
	doc, err := NewDocument(`<html></html>`, "https://www.yellowpages.ca/search/si/1/pizza/Vernon")
	require.NoError(t, err)

	assert.Equal(t, "https://www.yellowpages.ca/bus/British-Columbia/Vernon/Pizza-Place/123.html",
		doc.Resolve("/bus/British-Columbia/Vernon/Pizza-Place/123.html"))
	assert.Equal(t, "https://pizza.example.com/", doc.Resolve("https://pizza.example.com/"))
	assert.Equal(t, "", doc.Resolve("#top"))
	assert.Equal(t, "", doc.Resolve("javascript:void(0)"))
	assert.Equal(t, "", doc.Resolve("   "))
}

func TestHasAndText(t *testing.T) {
	doc, err := NewDocument(`<div class="card"><span class="name">  Pizza
   Place </span></div>`, "")
	require.NoError(t, err)

	assert.True(t, doc.Has(".card"))
	assert.False(t, doc.Has(".missing"))
	assert.Equal(t, "Pizza Place", Text(doc.Find(".name")))
}
