package tasks

import (
	"context"
	"encoding/json"
	"os"
	"path"
	"regexp"
	"sort"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/pipeline"
	"github.com/conneroisu/estatico/internal/process"
)

var (
	modernizrScriptRef = regexp.MustCompile(`Modernizr\.([a-z][a-z0-9]*)`)
	modernizrClassRef  = regexp.MustCompile(`(?:\.no-|html\.)([a-z][a-z0-9]*)`)
)

// modernizrDetects maps test names, as they appear in scripts and class
// names, to the feature-detect modules of the Modernizr builder.
var modernizrDetects = map[string]string{
	"applicationcache": "applicationcache",
	"audio":            "audio",
	"backgroundsize":   "css/backgroundsize",
	"borderradius":     "css/borderradius",
	"boxshadow":        "css/boxshadow",
	"canvas":           "canvas",
	"csstransforms":    "css/transforms",
	"csstransforms3d":  "css/transforms3d",
	"csstransitions":   "css/transitions",
	"cssanimations":    "css/animations",
	"flexbox":          "css/flexbox",
	"geolocation":      "geolocation",
	"history":          "history",
	"hsla":             "css/hsla",
	"inlinesvg":        "svg/inline",
	"localstorage":     "storage/localstorage",
	"opacity":          "css/opacity",
	"placeholder":      "forms/placeholder",
	"rgba":             "css/rgba",
	"sessionstorage":   "storage/sessionstorage",
	"svg":              "svg",
	"touchevents":      "touchevents",
	"video":            "video",
	"webgl":            "webgl",
}

// modernizrConfig is the configuration file format of the Modernizr
// command-line builder.
type modernizrConfig struct {
	Minify         bool     `json:"minify"`
	Options        []string `json:"options"`
	FeatureDetects []string `json:"feature-detects"`
}

// crawlModernizr returns the sorted detects referenced by files. Names
// without a known detect are returned separately.
func crawlModernizr(files []*pipeline.File) (detects, unknown []string) {
	seen := make(map[string]bool)
	for _, f := range files {
		pattern := modernizrScriptRef
		if path.Ext(f.Path) != ".js" {
			pattern = modernizrClassRef
		}
		for _, m := range pattern.FindAllSubmatch(f.Contents, -1) {
			seen[string(m[1])] = true
		}
	}

	for name := range seen {
		if detect, ok := modernizrDetects[name]; ok {
			detects = append(detects, detect)
		} else if !isModernizrAPI(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(detects)
	sort.Strings(unknown)
	return detects, unknown
}

func isModernizrAPI(name string) bool {
	switch name {
	case "on", "addtest", "prefixed", "mq", "testprop", "testallprops", "teststyles", "hasevent", "js":
		return true
	}
	return false
}

// Modernizr crawls styles and scripts for feature tests and builds a
// Modernizr containing only those.
func (e *Env) Modernizr(ctx context.Context) error {
	cfg := e.Config.Modernizr

	files, err := pipeline.Read(e.Root, glob.New(cfg.Src...))
	if err != nil {
		return err
	}

	detects, unknown := crawlModernizr(files)
	if len(unknown) > 0 {
		e.Logger.Warn(ctx, nil, "Ignoring unknown Modernizr tests", "tests", unknown)
	}
	if detects == nil {
		detects = []string{}
	}

	if err := os.MkdirAll(e.path(cfg.Dest), 0755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "create directory failed", cfg.Dest)
	}

	configPath := path.Join(cfg.Dest, "modernizr-config.json")
	configData, err := json.MarshalIndent(modernizrConfig{
		Minify:         e.Config.Production,
		Options:        []string{"setClasses"},
		FeatureDetects: detects,
	}, "", "  ")
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "encoding modernizr config", err)
	}
	if err := os.WriteFile(e.path(configPath), configData, 0644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "write failed", configPath)
	}
	defer os.Remove(e.path(configPath))

	dest := path.Join(cfg.Dest, cfg.File)
	cmd, err := process.FromArgs(cfg.Command)
	if err != nil {
		return err
	}
	cmd = cmd.Expand(map[string]string{"config": configPath, "dest": dest})
	cmd.Dir = e.Root
	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		return err
	}

	if e.Config.Production {
		if err := e.minifyInPlace(dest); err != nil {
			return err
		}
	}

	e.Logger.Info(ctx, "Built Modernizr", "detects", len(detects), "dest", dest)
	return nil
}

func (e *Env) minifyInPlace(rel string) error {
	data, err := os.ReadFile(e.path(rel))
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeReadFailed, "read failed", rel)
	}
	min, err := pipeline.MinifyBytes(pipeline.MediaTypeJS, data)
	if err != nil {
		return errors.WrapTransform(err, errors.ErrCodeTransformFailed, "minify failed", rel)
	}
	if err := os.WriteFile(e.path(rel), min, 0644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "write failed", rel)
	}
	return nil
}
