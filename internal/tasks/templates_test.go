package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutContentModes(t *testing.T) {
	engine := newTemplateEngine(map[string]string{
		"base":   `<title>{{#block "title"}}Site{{/block}}</title><main>{{#block "body"}}empty{{/block}}</main><footer>{{#block "footer"}}(c){{/block}}</footer>`,
		"teaser": `<p>{{text}}</p>`,
	})

	page := `{{#extend "base"}}` +
		`{{#content "title" mode="prepend"}}Home | {{/content}}` +
		`{{#content "body"}}{{> teaser}}{{/content}}` +
		`{{#content "footer" mode="append"}} 2024{{/content}}` +
		`{{/extend}}`

	out, err := engine.Render(page, map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, `<title>Home | Site</title><main><p>hi</p></main><footer>(c) 2024</footer>`, out)
}

func TestLayoutMostDerivedWins(t *testing.T) {
	engine := newTemplateEngine(map[string]string{
		"base": `[{{#block "a"}}base{{/block}}]`,
		"section": `{{#extend "base"}}{{#content "a"}}section{{/content}}{{/extend}}`,
	})

	out, err := engine.Render(`{{#extend "section"}}{{#content "a"}}page{{/content}}{{/extend}}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "[page]", out)

	out, err = engine.Render(`{{#extend "section"}}{{#content "a" mode="append"}}+page{{/content}}{{/extend}}`, nil)
	require.NoError(t, err)
	assert.Equal(t, "[section+page]", out)
}

func TestEmbedIsolatesContent(t *testing.T) {
	engine := newTemplateEngine(map[string]string{
		"base": `<body>{{#block "body"}}{{/block}}</body>`,
		"card": `<div>{{#block "body"}}card{{/block}}</div>`,
	})

	page := `{{#extend "base"}}{{#content "body"}}{{#embed "card"}}{{/embed}}{{/content}}{{/extend}}`
	out, err := engine.Render(page, nil)
	require.NoError(t, err)
	assert.Equal(t, "<body><div>card</div></body>", out)
}

func TestLayoutErrors(t *testing.T) {
	engine := newTemplateEngine(map[string]string{"base": `{{#block "a"}}{{/block}}`})

	_, err := engine.Render(`{{#extend "missing"}}{{/extend}}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown layout "missing"`)

	_, err = engine.Render(`{{#extend "base"}}{{#content "a" mode="shuffle"}}x{{/content}}{{/extend}}`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "shuffle"`)

	_, err = engine.Render(`{{#if}}`, nil)
	assert.Error(t, err)
}

func TestSplitFrontMatter(t *testing.T) {
	matter, body, err := splitFrontMatter([]byte("---\ntitle: Home\ntags: [a, b]\n---\n<h1>{{frontmatter.title}}</h1>\n"))
	require.NoError(t, err)
	assert.Equal(t, "Home", matter["title"])
	assert.Equal(t, []interface{}{"a", "b"}, matter["tags"])
	assert.Equal(t, "<h1>{{frontmatter.title}}</h1>\n", string(body))

	matter, body, err = splitFrontMatter([]byte("---\r\ntitle: CRLF\r\n---\r\nbody"))
	require.NoError(t, err)
	assert.Equal(t, "CRLF", matter["title"])
	assert.Equal(t, "body", string(body))

	matter, body, err = splitFrontMatter([]byte("<p>plain</p>"))
	require.NoError(t, err)
	assert.Nil(t, matter)
	assert.Equal(t, "<p>plain</p>", string(body))

	_, _, err = splitFrontMatter([]byte("---\ntitle: [unclosed\n---\n"))
	assert.Error(t, err)
}
