package tasks

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/image/draw"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/pipeline"
)

// imageSize is a requested version size. A zero dimension follows the
// aspect ratio of the source.
type imageSize struct {
	Width  int
	Height int
}

func parseImageSize(s string) (imageSize, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return imageSize{}, fmt.Errorf("size %q is not WIDTHxHEIGHT", s)
	}

	var size imageSize
	var err error
	if w != "" {
		if size.Width, err = strconv.Atoi(w); err != nil || size.Width < 0 {
			return imageSize{}, fmt.Errorf("invalid width in %q", s)
		}
	}
	if h != "" {
		if size.Height, err = strconv.Atoi(h); err != nil || size.Height < 0 {
			return imageSize{}, fmt.Errorf("invalid height in %q", s)
		}
	}
	if size.Width == 0 && size.Height == 0 {
		return imageSize{}, fmt.Errorf("size %q needs a width or a height", s)
	}
	return size, nil
}

// resolve fills in a missing dimension from the source size.
func (s imageSize) resolve(src image.Rectangle) imageSize {
	switch {
	case s.Width == 0:
		s.Width = max(1, src.Dx()*s.Height/src.Dy())
	case s.Height == 0:
		s.Height = max(1, src.Dy()*s.Width/src.Dx())
	}
	return s
}

// imageManifest maps file name patterns, relative to the manifest's
// directory, to the sizes to generate:
//
//	teaser.jpg: [300x200, 600x400]
//	"*.png": [64x]
type imageManifest map[string][]string

// ImageVersions writes resized copies of images. Every directory below
// the source holding a manifest gets a version named NAME_WxH.EXT for
// each size listed for each of its images. Images are cropped around the
// center to the requested aspect ratio before scaling, and the output
// only depends on the input, so repeated runs produce identical files.
func (e *Env) ImageVersions(ctx context.Context) error {
	cfg := e.Config.ImageVersions
	srcRoot := e.path(cfg.Src)

	var manifests []string
	err := filepath.WalkDir(srcRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == cfg.Manifest {
			manifests = append(manifests, p)
		}
		return nil
	})
	if os.IsNotExist(err) {
		e.Logger.Info(ctx, "No image version source directory", "src", cfg.Src)
		return nil
	}
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeReadFailed, "scanning image versions failed", cfg.Src)
	}
	sort.Strings(manifests)

	count := 0
	for _, manifestPath := range manifests {
		n, err := e.processManifest(ctx, srcRoot, manifestPath)
		if err != nil {
			return err
		}
		count += n
	}

	e.Logger.Info(ctx, "Generated image versions", "count", count, "manifests", len(manifests))
	return nil
}

func (e *Env) processManifest(ctx context.Context, srcRoot, manifestPath string) (int, error) {
	cfg := e.Config.ImageVersions
	relManifest, _ := filepath.Rel(e.Root, manifestPath)
	relManifest = filepath.ToSlash(relManifest)

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return 0, errors.WrapIO(err, errors.ErrCodeReadFailed, "read failed", relManifest)
	}

	var manifest imageManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return 0, errors.WrapTransform(err, errors.ErrCodeCompileFailed, "invalid manifest", relManifest)
	}

	dir := filepath.Dir(manifestPath)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.WrapIO(err, errors.ErrCodeReadFailed, "read failed", path.Dir(relManifest))
	}

	relDir, _ := filepath.Rel(srcRoot, dir)
	patterns := make([]string, 0, len(manifest))
	for p := range manifest {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)

	var outputs []*pipeline.File
	for _, entry := range entries {
		if entry.IsDir() || !hasExtension(entry.Name(), cfg.Extensions) {
			continue
		}

		var sizes []imageSize
		for _, pattern := range patterns {
			if ok, _ := doublestar.Match(pattern, entry.Name()); !ok {
				continue
			}
			for _, s := range manifest[pattern] {
				size, err := parseImageSize(s)
				if err != nil {
					return 0, errors.WrapTransform(err, errors.ErrCodeCompileFailed, "invalid manifest", relManifest)
				}
				sizes = append(sizes, size)
			}
		}
		if len(sizes) == 0 {
			continue
		}

		if err := ctx.Err(); err != nil {
			return 0, err
		}

		srcRel := path.Join(cfg.Src, filepath.ToSlash(relDir), entry.Name())
		versions, err := e.imageVersions(srcRel, sizes)
		if err != nil {
			return 0, err
		}
		for _, v := range versions {
			v.Path = path.Join(filepath.ToSlash(relDir), v.Path)
		}
		outputs = append(outputs, versions...)
	}

	if _, err := pipeline.Write(e.Root, cfg.Dest, outputs); err != nil {
		return 0, err
	}
	return len(outputs), nil
}

func (e *Env) imageVersions(srcRel string, sizes []imageSize) ([]*pipeline.File, error) {
	raw, err := os.ReadFile(e.path(srcRel))
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeReadFailed, "read failed", srcRel)
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.WrapTransform(err, errors.ErrCodeTransformFailed, "invalid image", srcRel)
	}

	ext := path.Ext(srcRel)
	name := strings.TrimSuffix(path.Base(srcRel), ext)

	files := make([]*pipeline.File, 0, len(sizes))
	for _, requested := range sizes {
		size := requested.resolve(src.Bounds())
		out := resizeCropped(src, size)

		var buf bytes.Buffer
		switch format {
		case "jpeg":
			err = jpeg.Encode(&buf, out, &jpeg.Options{Quality: 90})
		default:
			err = png.Encode(&buf, out)
		}
		if err != nil {
			return nil, errors.WrapTransform(err, errors.ErrCodeTransformFailed, "encoding image failed", srcRel)
		}

		versionName := fmt.Sprintf("%s_%dx%d%s", name, size.Width, size.Height, ext)
		files = append(files, pipeline.NewFile(versionName, ".", buf.Bytes()))
	}
	return files, nil
}

// resizeCropped crops src around its center to the aspect ratio of size
// and scales the result to size.
func resizeCropped(src image.Image, size imageSize) image.Image {
	b := src.Bounds()
	crop := b

	// compare width/height ratios without floating point
	if b.Dx()*size.Height > b.Dy()*size.Width {
		w := b.Dy() * size.Width / size.Height
		x := b.Min.X + (b.Dx()-w)/2
		crop = image.Rect(x, b.Min.Y, x+w, b.Max.Y)
	} else if b.Dx()*size.Height < b.Dy()*size.Width {
		h := b.Dx() * size.Height / size.Width
		y := b.Min.Y + (b.Dy()-h)/2
		crop = image.Rect(b.Min.X, y, b.Max.X, y+h)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(name)), ".")
	for _, e := range extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}
