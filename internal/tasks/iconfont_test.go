package tasks

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/errors"
)

func TestTransformPath(t *testing.T) {
	flip := pathTransform{height: 10, scale: 100}

	testCases := []struct {
		name     string
		input    string
		t        pathTransform
		expected string
	}{
		{"absolute", "M0 0L10 10Z", flip, "M0 1000L1000 0Z"},
		{"relative", "m1 1l2 3z", pathTransform{height: 10, scale: 1}, "m1 -1l2 -3z"},
		{"repeated groups", "M0,0 10,0 10,10", pathTransform{height: 10, scale: 1}, "M0 10 10 10 10 0"},
		{"horizontal and vertical", "M0 0H5V5", pathTransform{height: 10, scale: 1}, "M0 10H5V5"},
		{"arc sweep flips", "M0 5A5 5 0 0 1 10 5", pathTransform{height: 10, scale: 1}, "M0 5A5 5 0 0 0 10 5"},
		{"compact arc flags", "M0 5a5 5 0 0110 0", pathTransform{height: 10, scale: 1}, "M0 5a5 5 0 0 0 10 0"},
		{"view box offset", "M5 5", pathTransform{minX: 5, minY: 5, height: 10, scale: 1}, "M0 10"},
		{"exponent", "M1e1 0", pathTransform{height: 10, scale: 1}, "M10 10"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := transformPath(tc.input, tc.t)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, out)
		})
	}

	_, err := transformPath("M0 0 X", flip)
	assert.Error(t, err)
	_, err = transformPath("L", flip)
	assert.Error(t, err)
	_, err = transformPath("M0", flip)
	assert.Error(t, err)
}

func TestShapePath(t *testing.T) {
	d, err := shapePath("rect", map[string]string{"x": "1", "y": "2", "width": "3", "height": "4"})
	require.NoError(t, err)
	assert.Equal(t, "M1 2h3v4h-3Z", d)

	d, err = shapePath("circle", map[string]string{"cx": "5", "cy": "5", "r": "2"})
	require.NoError(t, err)
	assert.Equal(t, "M3 5a2 2 0 1 0 4 0a2 2 0 1 0 -4 0Z", d)

	d, err = shapePath("polygon", map[string]string{"points": "0,0 10,0 5,10"})
	require.NoError(t, err)
	assert.Equal(t, "M0 0L10 0 5 10Z", d)

	_, err = shapePath("polygon", map[string]string{"points": "0,0 1"})
	assert.Error(t, err)
}

func TestParseIcon(t *testing.T) {
	g, err := parseIcon("arrow", 0xE001, []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 20 10"><path d="M0 0L20 10Z"/></svg>`))
	require.NoError(t, err)
	assert.Equal(t, "E001", g.Hex())
	assert.Equal(t, float64(2000), g.Advance)
	assert.Equal(t, "M0 1000L2000 0Z", g.Path)

	g, err = parseIcon("box", 0xE002, []byte(`<svg width="10px" height="10px"><rect width="10" height="10"/></svg>`))
	require.NoError(t, err)
	assert.Equal(t, "M0 1000h1000v-1000h-1000Z", g.Path)

	_, err = parseIcon("bad", 0xE003, []byte(`<svg><path d="M0 0"/></svg>`))
	assert.Error(t, err)
	_, err = parseIcon("bad", 0xE003, []byte(`<svg viewBox="0 0 10 10"><path d="M0 0"`))
	assert.Error(t, err)
}

func TestIconfont(t *testing.T) {
	env, runner := newTestEnv(t)
	env.Config.Iconfont.Converters = []config.ConverterConfig{
		{Ext: "woff", Command: []string{"sfnt2woff", "{src}", "{dest}"}},
	}
	writeFiles(t, env.Root, map[string]string{
		"source/assets/media/iconfont/search.svg":        `<svg viewBox="0 0 10 10"><path d="M0 0L10 10Z"/></svg>`,
		"source/modules/teaser/iconfont/arrow.svg":       `<svg viewBox="0 0 10 10"><circle cx="5" cy="5" r="5"/></svg>`,
		"source/assets/media/iconfont/ignored/close.svg": `<svg viewBox="0 0 10 10"/>`,
	})

	require.NoError(t, env.Iconfont(context.Background()))

	font := readFile(t, env.Root, "build/assets/fonts/icons/Icons.svg")
	assert.Contains(t, font, `<font id="Icons" horiz-adv-x="1000">`)
	assert.Contains(t, font, `glyph-name="arrow" unicode="&#xE001;"`)
	assert.Contains(t, font, `glyph-name="search" unicode="&#xE002;" horiz-adv-x="1000" d="M0 1000L1000 0Z"`)
	assert.NotContains(t, font, "close")

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"build/assets/fonts/icons/Icons.svg", "build/assets/fonts/icons/Icons.woff"}, calls[0].Args)

	styles := readFile(t, env.Root, "source/assets/.tmp/icons.scss")
	assert.Contains(t, styles, `url("../fonts/icons/Icons.svg#Icons")`)
	assert.Contains(t, styles, `"arrow": "\E001",`)
	assert.Contains(t, styles, ".icon-search:before {")
	assert.Contains(t, styles, `content: "\E002";`)
}

func TestIconfontProjectTemplate(t *testing.T) {
	env, _ := newTestEnv(t)
	writeFiles(t, env.Root, map[string]string{
		"source/assets/media/iconfont/a.svg":     `<svg viewBox="0 0 10 10"/>`,
		"source/assets/css/templates/icons.scss": `{{#each codepoints}}{{name}}={{codepoint}};{{/each}}{{options.fontName}}`,
	})

	require.NoError(t, env.Iconfont(context.Background()))
	assert.Equal(t, "a=E001;Icons", readFile(t, env.Root, "source/assets/.tmp/icons.scss"))
}

func TestIconfontDuplicateNames(t *testing.T) {
	env, _ := newTestEnv(t)
	writeFiles(t, env.Root, map[string]string{
		"source/assets/media/iconfont/arrow.svg": `<svg viewBox="0 0 10 10"/>`,
		"source/modules/nav/iconfont/arrow.svg":  `<svg viewBox="0 0 10 10"/>`,
	})

	err := env.Iconfont(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransformError(err))
	assert.Contains(t, err.Error(), "duplicate icon name arrow")
}

func solidPNG(t *testing.T, w, h int, c color.Color) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.String()
}

func TestPackTopDown(t *testing.T) {
	items := []spriteItem{
		{Name: "b", Width: 4, Height: 1},
		{Name: "a", Width: 2, Height: 3},
		{Name: "c", Width: 1, Height: 1},
	}

	w, h := packTopDown(items, 2)
	assert.Equal(t, 4, w)
	assert.Equal(t, 3+2+1+2+1, h)
	assert.Equal(t, "a", items[0].Name)
	assert.Equal(t, []int{0, 5, 8}, []int{items[0].Y, items[1].Y, items[2].Y})

	w, h = packTopDown(nil, 2)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestPNGSprite(t *testing.T) {
	env, _ := newTestEnv(t)
	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}
	writeFiles(t, env.Root, map[string]string{
		"source/assets/media/pngsprite/a.png": solidPNG(t, 2, 3, red),
		"source/modules/nav/pngsprite/b.png":  solidPNG(t, 4, 1, blue),
	})

	require.NoError(t, env.PNGSprite(context.Background()))

	f, err := os.Open(filepath.Join(env.Root, "build/assets/media/sprite.png"))
	require.NoError(t, err)
	defer f.Close()
	sheet, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 4, 4), sheet.Bounds())
	assert.Equal(t, red, color.NRGBAModel.Convert(sheet.At(1, 2)))
	assert.Equal(t, blue, color.NRGBAModel.Convert(sheet.At(3, 3)))
	assert.Equal(t, color.NRGBA{}, color.NRGBAModel.Convert(sheet.At(3, 0)))

	styles := readFile(t, env.Root, "source/assets/.tmp/sprite.scss")
	assert.Contains(t, styles, "$a: 0px 0px 0px 0px 2px 3px 4px 4px '../media/sprite.png';")
	assert.Contains(t, styles, "$b: 0px 3px 0px -3px 4px 1px 4px 4px '../media/sprite.png';")
}

func TestPNGSpriteWithoutImages(t *testing.T) {
	env, _ := newTestEnv(t)

	require.NoError(t, env.PNGSprite(context.Background()))
	assert.NoFileExists(t, filepath.Join(env.Root, "build/assets/media/sprite.png"))
}

func TestPNGSpriteInvalidImage(t *testing.T) {
	env, _ := newTestEnv(t)
	writeFiles(t, env.Root, map[string]string{
		"source/assets/media/pngsprite/broken.png": "not a png",
	})

	err := env.PNGSprite(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransformError(err))
	assert.Equal(t, "source/assets/media/pngsprite/broken.png", errors.GetErrorContext(err)["file"])
}

func TestEscapeImagePath(t *testing.T) {
	assert.Equal(t, "../media/my%20sprite.png", escapeImagePath("../media/my sprite.png"))
}
