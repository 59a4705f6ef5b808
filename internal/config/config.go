// Package config loads the project configuration using Viper from a YAML
// file (.estatico.yml), ESTATICO_ environment variables and command-line
// flags.
//
// Every task kind has its own section with its own struct, and decoding is
// exact: a key that no section declares is rejected instead of silently
// ignored. Defaults reproduce the conventional layout, sources under
// source/, output under build/ and generated intermediates under
// source/assets/.tmp.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/estatico/internal/errors"
)

// Task names.
const (
	TaskHTML          = "html"
	TaskCSS           = "css"
	TaskJS            = "js"
	TaskJSTemplates   = "js-templates"
	TaskModernizr     = "modernizr"
	TaskLodash        = "lodash"
	TaskIconfont      = "iconfont"
	TaskPNGSprite     = "pngsprite"
	TaskMedia         = "media"
	TaskClean         = "clean"
	TaskImageVersions = "imageversions"
	TaskSetup         = "setup"
	TaskBuild         = "build"
	TaskWatch         = "watch"
	TaskDefault       = "default"
)

// TaskNames lists every task in registration order.
var TaskNames = []string{
	TaskHTML, TaskCSS, TaskJS, TaskJSTemplates, TaskModernizr, TaskLodash,
	TaskIconfont, TaskPNGSprite, TaskMedia, TaskClean, TaskImageVersions,
	TaskSetup, TaskBuild, TaskWatch, TaskDefault,
}

// Config is the complete project configuration.
type Config struct {
	Production    bool                `mapstructure:"production" yaml:"production"`
	HTML          HTMLConfig          `mapstructure:"html" yaml:"html"`
	CSS           CSSConfig           `mapstructure:"css" yaml:"css"`
	JS            JSConfig            `mapstructure:"js" yaml:"js"`
	JSTemplates   JSTemplatesConfig   `mapstructure:"js_templates" yaml:"js_templates"`
	Modernizr     ModernizrConfig     `mapstructure:"modernizr" yaml:"modernizr"`
	Lodash        LodashConfig        `mapstructure:"lodash" yaml:"lodash"`
	Iconfont      IconfontConfig      `mapstructure:"iconfont" yaml:"iconfont"`
	PNGSprite     PNGSpriteConfig     `mapstructure:"pngsprite" yaml:"pngsprite"`
	Media         MediaConfig         `mapstructure:"media" yaml:"media"`
	Clean         CleanConfig         `mapstructure:"clean" yaml:"clean"`
	ImageVersions ImageVersionsConfig `mapstructure:"imageversions" yaml:"imageversions"`
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Watch         WatchConfig         `mapstructure:"watch" yaml:"watch"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
}

// HTMLConfig configures page rendering.
type HTMLConfig struct {
	Src      []string `mapstructure:"src" yaml:"src"`
	Base     string   `mapstructure:"base" yaml:"base"`
	Partials []string `mapstructure:"partials" yaml:"partials"`
	Data     string   `mapstructure:"data" yaml:"data"`
	Dest     string   `mapstructure:"dest" yaml:"dest"`
}

// CSSConfig configures stylesheet compilation.
type CSSConfig struct {
	Src          []string `mapstructure:"src" yaml:"src"`
	LoadPaths    []string `mapstructure:"load_paths" yaml:"load_paths"`
	Command      []string `mapstructure:"command" yaml:"command"`
	Autoprefixer []string `mapstructure:"autoprefixer" yaml:"autoprefixer"`
	Dest         string   `mapstructure:"dest" yaml:"dest"`
}

// JSConfig configures linting and bundling of scripts.
type JSConfig struct {
	Lint        []string `mapstructure:"lint" yaml:"lint"`
	LintCommand []string `mapstructure:"lint_command" yaml:"lint_command"`
	Bundles     []string `mapstructure:"bundles" yaml:"bundles"`
	Dest        string   `mapstructure:"dest" yaml:"dest"`
}

// JSTemplatesConfig configures client-side template bundling.
type JSTemplatesConfig struct {
	Src       []string `mapstructure:"src" yaml:"src"`
	Base      string   `mapstructure:"base" yaml:"base"`
	Namespace string   `mapstructure:"namespace" yaml:"namespace"`
	Dest      string   `mapstructure:"dest" yaml:"dest"`
	File      string   `mapstructure:"file" yaml:"file"`
}

// ModernizrConfig configures the feature-detection build.
type ModernizrConfig struct {
	Src     []string `mapstructure:"src" yaml:"src"`
	Command []string `mapstructure:"command" yaml:"command"`
	Dest    string   `mapstructure:"dest" yaml:"dest"`
	File    string   `mapstructure:"file" yaml:"file"`
}

// LodashConfig configures the custom utility-library build.
type LodashConfig struct {
	Command []string `mapstructure:"command" yaml:"command"`
	Include []string `mapstructure:"include" yaml:"include"`
	Output  string   `mapstructure:"output" yaml:"output"`
	Debug   bool     `mapstructure:"debug" yaml:"debug"`
}

// ConverterConfig turns the generated SVG font into another format.
type ConverterConfig struct {
	Ext     string   `mapstructure:"ext" yaml:"ext"`
	Command []string `mapstructure:"command" yaml:"command"`
}

// IconfontConfig configures icon font generation.
type IconfontConfig struct {
	Src            []string          `mapstructure:"src" yaml:"src"`
	FontName       string            `mapstructure:"font_name" yaml:"font_name"`
	FontPath       string            `mapstructure:"font_path" yaml:"font_path"`
	StartCodepoint int               `mapstructure:"start_codepoint" yaml:"start_codepoint"`
	Template       string            `mapstructure:"template" yaml:"template"`
	StylesDest     string            `mapstructure:"styles_dest" yaml:"styles_dest"`
	Dest           string            `mapstructure:"dest" yaml:"dest"`
	Converters     []ConverterConfig `mapstructure:"converters" yaml:"converters"`
}

// PNGSpriteConfig configures sprite sheet generation.
type PNGSpriteConfig struct {
	Src        []string `mapstructure:"src" yaml:"src"`
	ImgName    string   `mapstructure:"img_name" yaml:"img_name"`
	CSSName    string   `mapstructure:"css_name" yaml:"css_name"`
	ImgPath    string   `mapstructure:"img_path" yaml:"img_path"`
	Template   string   `mapstructure:"template" yaml:"template"`
	Padding    int      `mapstructure:"padding" yaml:"padding"`
	Dest       string   `mapstructure:"dest" yaml:"dest"`
	StylesDest string   `mapstructure:"styles_dest" yaml:"styles_dest"`
}

// MediaConfig configures the copy of static assets.
type MediaConfig struct {
	Src  []string `mapstructure:"src" yaml:"src"`
	Base string   `mapstructure:"base" yaml:"base"`
	Dest string   `mapstructure:"dest" yaml:"dest"`
}

// CleanConfig lists the directories the clean task removes.
type CleanConfig struct {
	Paths []string `mapstructure:"paths" yaml:"paths"`
}

// ImageVersionsConfig configures resized image generation.
type ImageVersionsConfig struct {
	Src        string   `mapstructure:"src" yaml:"src"`
	Extensions []string `mapstructure:"extensions" yaml:"extensions"`
	Manifest   string   `mapstructure:"manifest" yaml:"manifest"`
	Dest       string   `mapstructure:"dest" yaml:"dest"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	LivereloadPort int      `mapstructure:"livereload_port" yaml:"livereload_port"`
	Root           string   `mapstructure:"root" yaml:"root"`
	Open           bool     `mapstructure:"open" yaml:"open"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// Subscription binds a set of watched patterns to the task they trigger.
type Subscription struct {
	Task     string   `mapstructure:"task" yaml:"task"`
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
}

// WatchConfig configures the change-watch loop.
type WatchConfig struct {
	Debounce      time.Duration  `mapstructure:"debounce" yaml:"debounce"`
	Ignore        []string       `mapstructure:"ignore" yaml:"ignore"`
	Subscriptions []Subscription `mapstructure:"subscriptions" yaml:"subscriptions"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Dir    string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults registers the default value of every key on v. Keys must be
// known to Viper for environment overrides to apply.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("production", false)

	v.SetDefault("html.src", []string{"source/*.html", "source/pages/*.html"})
	v.SetDefault("html.base", "source")
	v.SetDefault("html.partials", []string{"source/layouts/**/*.html", "source/modules/**/*.html"})
	v.SetDefault("html.data", "source/data")
	v.SetDefault("html.dest", "build")

	v.SetDefault("css.src", []string{"source/assets/css/*.scss"})
	v.SetDefault("css.load_paths", []string{"source/assets/vendor", "source/modules"})
	v.SetDefault("css.command", []string{"sass", "--stdin", "--no-source-map"})
	v.SetDefault("css.autoprefixer", []string{})
	v.SetDefault("css.dest", "build/assets/css")

	v.SetDefault("js.lint", []string{"source/assets/js/*.js", "source/modules/**/*.js", "!source/assets/vendor/*.js"})
	v.SetDefault("js.lint_command", []string{"jshint", "--config", ".jshintrc"})
	v.SetDefault("js.bundles", []string{"source/assets/js/head.js", "source/assets/js/main.js"})
	v.SetDefault("js.dest", "build/assets/js")

	v.SetDefault("js_templates.src", []string{"source/modules/**/*.html"})
	v.SetDefault("js_templates.base", "source/modules")
	v.SetDefault("js_templates.namespace", "estatico.templates")
	v.SetDefault("js_templates.dest", "source/assets/.tmp")
	v.SetDefault("js_templates.file", "templates.js")

	v.SetDefault("modernizr.src", []string{
		"source/assets/css/*.scss",
		"source/modules/**/*.scss",
		"source/assets/js/*.js",
		"source/modules/**/*.js",
		"!source/assets/vendor/*.js",
	})
	v.SetDefault("modernizr.command", []string{"modernizr", "-c", "{config}", "-d", "{dest}"})
	v.SetDefault("modernizr.dest", "source/assets/.tmp")
	v.SetDefault("modernizr.file", "modernizr.js")

	v.SetDefault("lodash.command", []string{"node_modules/.bin/lodash"})
	v.SetDefault("lodash.include", []string{"debounce"})
	v.SetDefault("lodash.output", "source/assets/.tmp/lodash.js")
	v.SetDefault("lodash.debug", true)

	v.SetDefault("iconfont.src", []string{"source/assets/media/iconfont/*.svg", "source/modules/**/iconfont/*.svg"})
	v.SetDefault("iconfont.font_name", "Icons")
	v.SetDefault("iconfont.font_path", "../fonts/icons/")
	v.SetDefault("iconfont.start_codepoint", 0xE001)
	v.SetDefault("iconfont.template", "source/assets/css/templates/icons.scss")
	v.SetDefault("iconfont.styles_dest", "source/assets/.tmp")
	v.SetDefault("iconfont.dest", "build/assets/fonts/icons")
	v.SetDefault("iconfont.converters", []ConverterConfig{})

	v.SetDefault("pngsprite.src", []string{"source/assets/media/pngsprite/*.png", "source/modules/**/pngsprite/*.png"})
	v.SetDefault("pngsprite.img_name", "sprite.png")
	v.SetDefault("pngsprite.css_name", "sprite.scss")
	v.SetDefault("pngsprite.img_path", "../media/sprite.png")
	v.SetDefault("pngsprite.template", "source/assets/css/templates/sprite.scss")
	v.SetDefault("pngsprite.padding", 0)
	v.SetDefault("pngsprite.dest", "build/assets/media")
	v.SetDefault("pngsprite.styles_dest", "source/assets/.tmp")

	v.SetDefault("media.src", []string{"source/assets/fonts/**/*", "source/assets/media/*.*", "source/tmp/media/*"})
	v.SetDefault("media.base", "source")
	v.SetDefault("media.dest", "build")

	v.SetDefault("clean.paths", []string{"build"})

	v.SetDefault("imageversions.src", "source/assets/media/imageversions")
	v.SetDefault("imageversions.extensions", []string{"jpg", "jpeg", "png"})
	v.SetDefault("imageversions.manifest", "imageversions.yml")
	v.SetDefault("imageversions.dest", "build/assets/media/imageversions")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 9000)
	v.SetDefault("server.livereload_port", 35729)
	v.SetDefault("server.root", "build")
	v.SetDefault("server.open", true)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("watch.debounce", "100ms")
	v.SetDefault("watch.ignore", []string{"**/.git/**", "**/node_modules/**"})
	v.SetDefault("watch.subscriptions", DefaultSubscriptions())

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.dir", "")
}

// DefaultSubscriptions returns the conventional watch bindings.
func DefaultSubscriptions() []Subscription {
	return []Subscription{
		{Task: TaskHTML, Patterns: []string{
			"source/*.html", "source/*/*.html", "source/data/*.json", "source/modules/**/*.html",
		}},
		{Task: TaskCSS, Patterns: []string{
			"source/assets/css/*.scss", "source/assets/.tmp/*.scss", "source/modules/**/*.scss",
		}},
		{Task: TaskJS, Patterns: []string{
			"source/assets/js/**/*.js", "source/assets/.tmp/*.js", "source/modules/**/*.js",
		}},
		{Task: TaskPNGSprite, Patterns: []string{
			"source/assets/media/pngsprite/*.png", "source/modules/**/pngsprite/*.png",
		}},
		{Task: TaskIconfont, Patterns: []string{
			"source/assets/media/iconfont/*.svg", "source/modules/**/iconfont/*.svg",
		}},
	}
}

// Load decodes and validates the configuration held by v. Defaults are
// registered first, so v only needs the user's settings.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var config Config
	if err := v.UnmarshalExact(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeUnknownKey, "invalid configuration")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Default returns the configuration with every default applied.
func Default() *Config {
	config, err := Load(viper.New())
	if err != nil {
		panic(fmt.Sprintf("default configuration is invalid: %v", err))
	}
	return config
}

// URL returns the address the development server is reachable at.
func (c ServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}
