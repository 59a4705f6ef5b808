package tasks

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"net/url"
	"sort"
	"strings"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/pipeline"
)

// spriteItem is one image placed on the sprite sheet.
type spriteItem struct {
	Name   string
	Image  image.Image
	X, Y   int
	Width  int
	Height int
}

// packTopDown stacks the images vertically in name order, separated by
// padding pixels, and returns the sheet size.
func packTopDown(items []spriteItem, padding int) (width, height int) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })

	y := 0
	for i := range items {
		items[i].X = 0
		items[i].Y = y
		y += items[i].Height + padding
		if items[i].Width > width {
			width = items[i].Width
		}
	}
	if len(items) > 0 {
		height = y - padding
	}
	return width, height
}

// PNGSprite combines the sprite images into one sheet and renders the
// stylesheet template describing the position of every image on it.
func (e *Env) PNGSprite(ctx context.Context) error {
	cfg := e.Config.PNGSprite

	files, err := pipeline.Read(e.Root, glob.New(cfg.Src...))
	if err != nil {
		return err
	}

	items := make([]spriteItem, 0, len(files))
	seen := make(map[string]bool)
	for _, f := range files {
		if seen[f.Name()] {
			return errors.NewTransformError(errors.ErrCodeTransformFailed,
				"duplicate sprite name "+f.Name(), nil).WithLocation(f.Path, 0)
		}
		seen[f.Name()] = true

		img, err := png.Decode(bytes.NewReader(f.Contents))
		if err != nil {
			return errors.WrapTransform(err, errors.ErrCodeTransformFailed, "invalid png", f.Path)
		}
		b := img.Bounds()
		items = append(items, spriteItem{Name: f.Name(), Image: img, Width: b.Dx(), Height: b.Dy()})
	}

	if len(items) == 0 {
		e.Logger.Info(ctx, "No sprite images found")
		return nil
	}

	width, height := packTopDown(items, cfg.Padding)

	sheet := image.NewNRGBA(image.Rect(0, 0, width, height))
	for _, it := range items {
		dst := image.Rect(it.X, it.Y, it.X+it.Width, it.Y+it.Height)
		draw.Draw(sheet, dst, it.Image, it.Image.Bounds().Min, draw.Src)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, sheet); err != nil {
		return errors.WrapTransform(err, errors.ErrCodeTransformFailed, "encoding sprite failed", cfg.ImgName)
	}
	written, err := pipeline.Write(e.Root, cfg.Dest, []*pipeline.File{pipeline.NewFile(cfg.ImgName, ".", buf.Bytes())})
	if err != nil {
		return err
	}

	data := spriteTemplateData(items, width, height, cfg.ImgPath)
	if err := e.renderStyles(cfg.Template, "sprite.scss", cfg.StylesDest, cfg.CSSName, data); err != nil {
		return err
	}

	e.Logger.Info(ctx, "Generated sprite", "images", len(items), "sprite", written[0])
	return nil
}

// spriteTemplateData exposes the layout the way stylesheet templates for
// sprite sheets conventionally expect it.
func spriteTemplateData(items []spriteItem, width, height int, imgPath string) map[string]interface{} {
	px := func(v int) string { return fmt.Sprintf("%dpx", v) }
	escaped := escapeImagePath(imgPath)

	list := make([]map[string]interface{}, len(items))
	for i, it := range items {
		list[i] = map[string]interface{}{
			"name":          it.Name,
			"x":             it.X,
			"y":             it.Y,
			"width":         it.Width,
			"height":        it.Height,
			"offset_x":      -it.X,
			"offset_y":      -it.Y,
			"total_width":   width,
			"total_height":  height,
			"image":         imgPath,
			"escaped_image": escaped,
			"px": map[string]interface{}{
				"x":            px(it.X),
				"y":            px(it.Y),
				"width":        px(it.Width),
				"height":       px(it.Height),
				"offset_x":     px(-it.X),
				"offset_y":     px(-it.Y),
				"total_width":  px(width),
				"total_height": px(height),
			},
		}
	}

	return map[string]interface{}{
		"items":   list,
		"sprites": list,
		"spritesheet": map[string]interface{}{
			"width":         width,
			"height":        height,
			"image":         imgPath,
			"escaped_image": escaped,
			"px": map[string]interface{}{
				"width":  px(width),
				"height": px(height),
			},
		},
	}
}

func escapeImagePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
