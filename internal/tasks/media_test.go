package tasks

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/estatico/internal/errors"
)

func TestMediaCopiesBelowBase(t *testing.T) {
	env, _ := newTestEnv(t)
	writeFiles(t, env.Root, map[string]string{
		"source/assets/fonts/icons/icons.woff": "woff",
		"source/assets/media/logo.svg":         "<svg/>",
		"source/assets/media/pngsprite/a.png":  "sprite source",
		"source/tmp/media/placeholder.jpg":     "jpg",
	})

	require.NoError(t, env.Media(context.Background()))

	assert.Equal(t, "woff", readFile(t, env.Root, "build/assets/fonts/icons/icons.woff"))
	assert.Equal(t, "<svg/>", readFile(t, env.Root, "build/assets/media/logo.svg"))
	assert.Equal(t, "jpg", readFile(t, env.Root, "build/tmp/media/placeholder.jpg"))
	assert.NoFileExists(t, filepath.Join(env.Root, "build/assets/media/pngsprite/a.png"))
}

func TestClean(t *testing.T) {
	env, _ := newTestEnv(t)
	writeFiles(t, env.Root, map[string]string{
		"build/index.html":  "x",
		"source/index.html": "y",
	})

	ctx := context.Background()
	require.NoError(t, env.Clean(ctx))
	assert.NoDirExists(t, filepath.Join(env.Root, "build"))
	assert.FileExists(t, filepath.Join(env.Root, "source/index.html"))

	// already clean
	require.NoError(t, env.Clean(ctx))
}

func TestParseImageSize(t *testing.T) {
	testCases := []struct {
		input    string
		expected imageSize
		wantErr  bool
	}{
		{"300x200", imageSize{300, 200}, false},
		{" 64X ", imageSize{Width: 64}, false},
		{"x48", imageSize{Height: 48}, false},
		{"x", imageSize{}, true},
		{"300", imageSize{}, true},
		{"ax2", imageSize{}, true},
		{"-1x2", imageSize{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			size, err := parseImageSize(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, size)
		})
	}
}

func TestImageSizeResolve(t *testing.T) {
	src := image.Rect(0, 0, 400, 200)
	assert.Equal(t, imageSize{100, 50}, imageSize{Width: 100}.resolve(src))
	assert.Equal(t, imageSize{200, 100}, imageSize{Height: 100}.resolve(src))
	assert.Equal(t, imageSize{10, 10}, imageSize{10, 10}.resolve(src))
}

func TestResizeCroppedKeepsCenter(t *testing.T) {
	// left and right thirds red, middle blue
	src := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 30; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if x >= 10 && x < 20 {
				c = color.NRGBA{B: 255, A: 255}
			}
			src.Set(x, y, c)
		}
	}

	out := resizeCropped(src, imageSize{4, 4})
	assert.Equal(t, image.Rect(0, 0, 4, 4), out.Bounds())

	r, _, b, _ := out.At(2, 2).RGBA()
	assert.Greater(t, b, r)
}

func imageProject(t *testing.T) *Env {
	env, _ := newTestEnv(t)
	writeFiles(t, env.Root, map[string]string{
		"source/assets/media/imageversions/teaser.png":                solidPNG(t, 40, 20, color.NRGBA{G: 200, A: 255}),
		"source/assets/media/imageversions/notes.txt":                 "ignored",
		"source/assets/media/imageversions/imageversions.yml":         "teaser.png: [10x10, 20x]\n",
		"source/assets/media/imageversions/gallery/photo.png":         solidPNG(t, 8, 8, color.NRGBA{R: 10, A: 255}),
		"source/assets/media/imageversions/gallery/imageversions.yml": "\"*.png\": [x4]\n",
	})
	return env
}

func decodePNG(t *testing.T, p string) image.Image {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestImageVersions(t *testing.T) {
	env := imageProject(t)

	require.NoError(t, env.ImageVersions(context.Background()))

	dest := filepath.Join(env.Root, "build/assets/media/imageversions")
	assert.Equal(t, image.Rect(0, 0, 10, 10), decodePNG(t, filepath.Join(dest, "teaser_10x10.png")).Bounds())
	assert.Equal(t, image.Rect(0, 0, 20, 10), decodePNG(t, filepath.Join(dest, "teaser_20x10.png")).Bounds())
	assert.Equal(t, image.Rect(0, 0, 4, 4), decodePNG(t, filepath.Join(dest, "gallery/photo_4x4.png")).Bounds())
	assert.NoFileExists(t, filepath.Join(dest, "notes.txt"))
}

func TestImageVersionsDeterministic(t *testing.T) {
	env := imageProject(t)
	ctx := context.Background()
	out := filepath.Join(env.Root, "build/assets/media/imageversions/teaser_10x10.png")

	require.NoError(t, env.ImageVersions(ctx))
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	require.NoError(t, env.ImageVersions(ctx))
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestImageVersionsInvalidManifest(t *testing.T) {
	env, _ := newTestEnv(t)
	writeFiles(t, env.Root, map[string]string{
		"source/assets/media/imageversions/a.png":             solidPNG(t, 2, 2, color.Black),
		"source/assets/media/imageversions/imageversions.yml": "a.png: [big]\n",
	})

	err := env.ImageVersions(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransformError(err))
	assert.Equal(t, "source/assets/media/imageversions/imageversions.yml", errors.GetErrorContext(err)["file"])
}

func TestImageVersionsWithoutSource(t *testing.T) {
	env, _ := newTestEnv(t)
	assert.NoError(t, env.ImageVersions(context.Background()))
}
