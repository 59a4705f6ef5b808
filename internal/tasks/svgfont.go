package tasks

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const fontUnitsPerEm = 1000

// glyph is one icon converted to font units.
type glyph struct {
	Name      string
	Codepoint rune
	Advance   float64
	Path      string
}

// Hex returns the codepoint as upper-case hexadecimal, e.g. "E001".
func (g glyph) Hex() string {
	return strings.ToUpper(strconv.FormatInt(int64(g.Codepoint), 16))
}

// parseIcon converts an SVG icon into a glyph scaled to the em height.
// Paths, rects, circles, ellipses and polygons are supported; transforms
// are not.
func parseIcon(name string, codepoint rune, src []byte) (glyph, error) {
	dec := xml.NewDecoder(bytes.NewReader(src))

	var (
		box   [4]float64
		found bool
		shape []string
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return glyph{}, fmt.Errorf("parsing svg: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		attrs := attrMap(start.Attr)

		switch start.Name.Local {
		case "svg":
			box, found, err = viewBox(attrs)
			if err != nil {
				return glyph{}, err
			}
		case "path":
			if attrs["d"] != "" {
				shape = append(shape, attrs["d"])
			}
		case "rect", "circle", "ellipse", "polygon":
			d, err := shapePath(start.Name.Local, attrs)
			if err != nil {
				return glyph{}, err
			}
			shape = append(shape, d)
		}
	}

	if !found {
		return glyph{}, fmt.Errorf("svg has neither viewBox nor width and height")
	}
	if box[3] <= 0 || box[2] <= 0 {
		return glyph{}, fmt.Errorf("svg has an empty viewBox")
	}

	t := pathTransform{minX: box[0], minY: box[1], height: box[3], scale: fontUnitsPerEm / box[3]}

	var parts []string
	for _, d := range shape {
		out, err := transformPath(d, t)
		if err != nil {
			return glyph{}, fmt.Errorf("path data: %w", err)
		}
		parts = append(parts, out)
	}

	return glyph{
		Name:      name,
		Codepoint: codepoint,
		Advance:   box[2] * t.scale,
		Path:      strings.Join(parts, ""),
	}, nil
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}

func viewBox(attrs map[string]string) ([4]float64, bool, error) {
	var box [4]float64
	if vb := attrs["viewBox"]; vb != "" {
		fields := strings.FieldsFunc(vb, func(r rune) bool { return r == ' ' || r == ',' })
		if len(fields) != 4 {
			return box, false, fmt.Errorf("invalid viewBox %q", vb)
		}
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return box, false, fmt.Errorf("invalid viewBox %q", vb)
			}
			box[i] = v
		}
		return box, true, nil
	}

	w, errW := parseLength(attrs["width"])
	h, errH := parseLength(attrs["height"])
	if errW != nil || errH != nil {
		return box, false, nil
	}
	box[2], box[3] = w, h
	return box, true, nil
}

func parseLength(v string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
}

func numAttrs(attrs map[string]string, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, n := range names {
		if attrs[n] == "" {
			continue
		}
		v, err := parseLength(attrs[n])
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", n, attrs[n])
		}
		out[i] = v
	}
	return out, nil
}

// shapePath converts a basic shape element into equivalent path data.
func shapePath(kind string, attrs map[string]string) (string, error) {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

	switch kind {
	case "rect":
		v, err := numAttrs(attrs, "x", "y", "width", "height")
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("M%s %sh%sv%sh%sZ", f(v[0]), f(v[1]), f(v[2]), f(v[3]), f(-v[2])), nil
	case "circle", "ellipse":
		names := []string{"cx", "cy", "rx", "ry"}
		if kind == "circle" {
			names = []string{"cx", "cy", "r", "r"}
		}
		v, err := numAttrs(attrs, names...)
		if err != nil {
			return "", err
		}
		cx, cy, rx, ry := v[0], v[1], v[2], v[3]
		return fmt.Sprintf("M%s %sa%s %s 0 1 0 %s 0a%s %s 0 1 0 %s 0Z",
			f(cx-rx), f(cy), f(rx), f(ry), f(2*rx), f(rx), f(ry), f(-2*rx)), nil
	case "polygon":
		points := strings.FieldsFunc(attrs["points"], func(r rune) bool { return r == ' ' || r == ',' || r == '\n' || r == '\t' })
		if len(points) < 4 || len(points)%2 != 0 {
			return "", fmt.Errorf("invalid polygon points %q", attrs["points"])
		}
		return "M" + strings.Join(points[:2], " ") + "L" + strings.Join(points[2:], " ") + "Z", nil
	}
	return "", fmt.Errorf("unsupported shape %s", kind)
}

// renderSVGFont writes the glyphs as an SVG font named fontName.
func renderSVGFont(fontName string, glyphs []glyph) []byte {
	var buf bytes.Buffer

	advance := float64(fontUnitsPerEm)
	for _, g := range glyphs {
		if g.Advance > advance {
			advance = g.Advance
		}
	}

	name := escapeXML(fontName)
	buf.WriteString(`<?xml version="1.0" standalone="no"?>` + "\n")
	buf.WriteString(`<!DOCTYPE svg PUBLIC "-//W3C//DTD SVG 1.1//EN" "http://www.w3.org/Graphics/SVG/1.1/DTD/svg11.dtd">` + "\n")
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg">` + "\n<defs>\n")
	fmt.Fprintf(&buf, "  <font id=\"%s\" horiz-adv-x=\"%s\">\n", name, formatArgs([]float64{advance}))
	fmt.Fprintf(&buf, "    <font-face font-family=\"%s\" units-per-em=\"%d\" ascent=\"%d\" descent=\"0\"/>\n",
		name, fontUnitsPerEm, fontUnitsPerEm)
	buf.WriteString("    <missing-glyph horiz-adv-x=\"0\"/>\n")
	for _, g := range glyphs {
		fmt.Fprintf(&buf, "    <glyph glyph-name=\"%s\" unicode=\"&#x%s;\" horiz-adv-x=\"%s\" d=\"%s\"/>\n",
			escapeXML(g.Name), g.Hex(), formatArgs([]float64{g.Advance}), g.Path)
	}
	buf.WriteString("  </font>\n</defs>\n</svg>\n")

	return buf.Bytes()
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
