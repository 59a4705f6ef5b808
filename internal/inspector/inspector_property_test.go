//go:build property

package inspector

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/net/html"
)

var classPool = []interface{}{
	"mod_teaser", "mod_main_nav", "var_dark", "var_teaser_wide",
	"layout", "modifier", "js-toggle", "mod_a_b_c", HighlightClass,
}

func buildPage(classLists [][]string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>t</title></head><body>")
	for i, classes := range classLists {
		if len(classes) == 0 {
			fmt.Fprintf(&b, "<p>%d</p>", i)
			continue
		}
		fmt.Fprintf(&b, `<div class="%s"><span>%d</span></div>`, strings.Join(classes, " "), i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func renderString(doc *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, doc)
	return buf.String()
}

func TestInspectorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	classLists := gen.SliceOf(gen.SliceOf(gen.OneConstOf(classPool...)).Map(func(v []interface{}) []string {
		out := make([]string, len(v))
		for i, c := range v {
			out[i] = c.(string)
		}
		return out
	}))

	properties.Property("three toggles restore the document", prop.ForAll(
		func(lists [][]string) bool {
			doc, err := html.Parse(strings.NewReader(buildPage(lists)))
			if err != nil {
				return false
			}
			before := renderString(doc)

			var insp Inspector
			insp.Toggle(doc)
			insp.Toggle(doc)
			insp.Toggle(doc)

			return insp.Mode() == Off && renderString(doc) == before
		},
		classLists,
	))

	properties.Property("module classes become space separated labels", prop.ForAll(
		func(prefix string, words []string) bool {
			label, ok := Label(prefix + strings.Join(words, "_"))
			return ok && label == strings.Join(words, " ")
		},
		gen.OneConstOf("mod_", "var_"),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("every highlight carries the labels of its module classes", prop.ForAll(
		func(lists [][]string) bool {
			doc, err := html.Parse(strings.NewReader(buildPage(lists)))
			if err != nil {
				return false
			}
			var insp Inspector
			for _, h := range insp.Toggle(doc) {
				log := attr(h.Node, LogAttribute)
				for _, class := range strings.Fields(attr(h.Node, "class")) {
					if label, ok := Label(class); ok && !strings.Contains(log, "[ "+label+" ]") {
						return false
					}
				}
			}
			return true
		},
		classLists,
	))

	properties.TestingRun(t)
}
