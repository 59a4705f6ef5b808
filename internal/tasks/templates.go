package tasks

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/aymerick/raymond"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/estatico/internal/pipeline"
)

// Content modes of the content helper.
const (
	contentReplace = "replace"
	contentAppend  = "append"
	contentPrepend = "prepend"
)

// templateEngine renders Handlebars templates with a fixed set of partials
// and the layout helpers extend, embed, block and content.
//
// A page wraps itself in a layout with {{#extend "layout"}}, fills the
// layout's {{#block "name"}} placeholders with {{#content "name"}}
// sections, and may append or prepend instead of replacing with
// mode="append" / mode="prepend". Layouts can extend other layouts; the
// content of the most derived template is applied last.
type templateEngine struct {
	partials map[string]string
}

func newTemplateEngine(partials map[string]string) *templateEngine {
	if partials == nil {
		partials = make(map[string]string)
	}
	return &templateEngine{partials: partials}
}

// Render executes source against ctx.
func (e *templateEngine) Render(source string, ctx interface{}) (string, error) {
	s := &renderState{engine: e}
	return s.exec(source, ctx)
}

type contentAction struct {
	mode    string
	content string
}

func (a contentAction) apply(current string) string {
	switch a.mode {
	case contentAppend:
		return current + a.content
	case contentPrepend:
		return a.content + current
	default:
		return a.content
	}
}

// renderState is the layout bookkeeping of one Render call.
type renderState struct {
	engine *templateEngine
	// one frame of content actions per active extend, outermost first
	frames     []map[string][]contentAction
	collecting map[string][]contentAction
}

func (s *renderState) exec(source string, ctx interface{}) (string, error) {
	tpl, err := raymond.Parse(source)
	if err != nil {
		return "", err
	}

	tpl.RegisterPartials(s.engine.partials)
	tpl.RegisterHelpers(map[string]interface{}{
		"extend":  s.extend,
		"embed":   s.embed,
		"block":   s.block,
		"content": s.content,
	})

	return tpl.Exec(ctx)
}

func (s *renderState) extend(name string, options *raymond.Options) raymond.SafeString {
	source, ok := s.engine.partials[name]
	if !ok {
		panic(fmt.Errorf("extend: unknown layout %q", name))
	}

	frame := make(map[string][]contentAction)
	previous := s.collecting
	s.collecting = frame
	options.Fn()
	s.collecting = previous

	s.frames = append(s.frames, frame)
	out, err := s.exec(source, options.Ctx())
	s.frames = s.frames[:len(s.frames)-1]
	if err != nil {
		panic(err)
	}

	return raymond.SafeString(out)
}

// embed is extend with its own, empty content stack, for placing a layout
// inside another without the outer content leaking into it.
func (s *renderState) embed(name string, options *raymond.Options) raymond.SafeString {
	frames := s.frames
	s.frames = nil
	defer func() { s.frames = frames }()

	return s.extend(name, options)
}

func (s *renderState) block(name string, options *raymond.Options) raymond.SafeString {
	result := options.Fn()
	for i := len(s.frames) - 1; i >= 0; i-- {
		for _, action := range s.frames[i][name] {
			result = action.apply(result)
		}
	}
	return raymond.SafeString(result)
}

func (s *renderState) content(name string, options *raymond.Options) string {
	if s.collecting == nil {
		return ""
	}

	mode := options.HashStr("mode")
	switch mode {
	case "":
		mode = contentReplace
	case contentReplace, contentAppend, contentPrepend:
	default:
		panic(fmt.Errorf("content %q: unknown mode %q", name, mode))
	}

	s.collecting[name] = append(s.collecting[name], contentAction{mode: mode, content: options.Fn()})
	return ""
}

// splitFrontMatter separates a leading YAML block delimited by "---" lines
// from the body.
func splitFrontMatter(src []byte) (map[string]interface{}, []byte, error) {
	normalized := bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, src, nil
	}

	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, src, nil
	}

	header := rest[:end]
	body := rest[end+len("\n---"):]
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = nil
	}

	matter := make(map[string]interface{})
	if err := yaml.Unmarshal(header, &matter); err != nil {
		return nil, nil, err
	}
	return matter, body, nil
}

// templateName derives the partial or template name of a file: its path
// below the base, without extension.
func templateName(f *pipeline.File) string {
	rel := f.Rel()
	return strings.TrimSuffix(rel, path.Ext(rel))
}
