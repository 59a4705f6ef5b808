package config

import (
	"fmt"
	"strings"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    - %s\n", suggestion))
			}
		}
	}

	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// Validate returns a ConfigurationError describing every problem found by
// ValidateWithDetails, or nil.
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if !result.HasErrors() {
		return nil
	}

	first := result.Errors[0]
	code := errors.ErrCodeConfigInvalid
	switch {
	case strings.Contains(first.Message, "glob"):
		code = errors.ErrCodeInvalidGlob
	case strings.Contains(first.Message, "path"):
		code = errors.ErrCodeInvalidPath
	}

	return errors.NewConfigError(code, "invalid configuration:\n"+result.String()).
		WithContext("field", first.Field)
}

// ValidateWithDetails checks every section and collects all issues.
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{}

	checkGlobs(result, "html.src", c.HTML.Src)
	checkPath(result, "html.base", c.HTML.Base)
	checkGlobs(result, "html.partials", c.HTML.Partials)
	checkPath(result, "html.data", c.HTML.Data)
	checkPath(result, "html.dest", c.HTML.Dest)

	checkGlobs(result, "css.src", c.CSS.Src)
	for _, p := range c.CSS.LoadPaths {
		checkPath(result, "css.load_paths", p)
	}
	checkCommand(result, "css.command", c.CSS.Command, true)
	checkCommand(result, "css.autoprefixer", c.CSS.Autoprefixer, false)
	checkPath(result, "css.dest", c.CSS.Dest)

	checkGlobs(result, "js.lint", c.JS.Lint)
	checkCommand(result, "js.lint_command", c.JS.LintCommand, false)
	for _, b := range c.JS.Bundles {
		checkPath(result, "js.bundles", b)
	}
	checkPath(result, "js.dest", c.JS.Dest)

	checkGlobs(result, "js_templates.src", c.JSTemplates.Src)
	checkPath(result, "js_templates.base", c.JSTemplates.Base)
	checkPath(result, "js_templates.dest", c.JSTemplates.Dest)
	if c.JSTemplates.Namespace == "" {
		result.addError("js_templates.namespace", c.JSTemplates.Namespace, "namespace cannot be empty")
	}
	checkFileName(result, "js_templates.file", c.JSTemplates.File)

	checkGlobs(result, "modernizr.src", c.Modernizr.Src)
	checkCommand(result, "modernizr.command", c.Modernizr.Command, true)
	checkPath(result, "modernizr.dest", c.Modernizr.Dest)
	checkFileName(result, "modernizr.file", c.Modernizr.File)

	checkCommand(result, "lodash.command", c.Lodash.Command, true)
	checkPath(result, "lodash.output", c.Lodash.Output)
	if len(c.Lodash.Include) == 0 {
		result.addWarning("lodash.include", c.Lodash.Include, "no functions included; the build will contain all of lodash")
	}

	checkGlobs(result, "iconfont.src", c.Iconfont.Src)
	checkFileName(result, "iconfont.font_name", c.Iconfont.FontName)
	checkPath(result, "iconfont.template", c.Iconfont.Template)
	checkPath(result, "iconfont.styles_dest", c.Iconfont.StylesDest)
	checkPath(result, "iconfont.dest", c.Iconfont.Dest)
	if c.Iconfont.StartCodepoint < 0xE000 || c.Iconfont.StartCodepoint > 0xF8FF {
		result.addError("iconfont.start_codepoint", c.Iconfont.StartCodepoint,
			"codepoint must lie in the private use area U+E000-U+F8FF")
	}
	for _, conv := range c.Iconfont.Converters {
		if conv.Ext == "" {
			result.addError("iconfont.converters", conv, "converter needs an extension")
		}
		checkCommand(result, "iconfont.converters", conv.Command, true)
	}

	checkGlobs(result, "pngsprite.src", c.PNGSprite.Src)
	checkFileName(result, "pngsprite.img_name", c.PNGSprite.ImgName)
	checkFileName(result, "pngsprite.css_name", c.PNGSprite.CSSName)
	checkPath(result, "pngsprite.dest", c.PNGSprite.Dest)
	checkPath(result, "pngsprite.styles_dest", c.PNGSprite.StylesDest)
	if c.PNGSprite.Padding < 0 {
		result.addError("pngsprite.padding", c.PNGSprite.Padding, "padding cannot be negative")
	}

	checkGlobs(result, "media.src", c.Media.Src)
	checkPath(result, "media.base", c.Media.Base)
	checkPath(result, "media.dest", c.Media.Dest)

	for _, p := range c.Clean.Paths {
		checkPath(result, "clean.paths", p)
	}

	checkPath(result, "imageversions.src", c.ImageVersions.Src)
	checkPath(result, "imageversions.dest", c.ImageVersions.Dest)
	checkFileName(result, "imageversions.manifest", c.ImageVersions.Manifest)

	validateServer(result, &c.Server)
	validateWatch(result, &c.Watch)
	validateLog(result, &c.Log)

	return result
}

func validateServer(result *ValidationResult, server *ServerConfig) {
	ports := []struct {
		field string
		port  int
	}{
		{"server.port", server.Port},
		{"server.livereload_port", server.LivereloadPort},
	}
	for _, p := range ports {
		field, port := p.field, p.port
		if port < 0 || port > 65535 {
			result.addError(field, port, fmt.Sprintf("port %d is not in valid range 0-65535", port),
				"Port 0 allows system to assign an available port")
		} else if port > 0 && port < 1024 {
			result.addWarning(field, port, "port below 1024 requires elevated privileges")
		}
	}

	if server.Port != 0 && server.Port == server.LivereloadPort {
		result.addError("server.livereload_port", server.LivereloadPort,
			"live-reload port must differ from the server port")
	}

	if strings.ContainsAny(server.Host, ";&|$`()<>\"'\\ ") {
		result.addError("server.host", server.Host, "host contains dangerous characters",
			"Use 'localhost' for local development")
	}

	checkPath(result, "server.root", server.Root)
}

func validateWatch(result *ValidationResult, watch *WatchConfig) {
	if watch.Debounce < 0 {
		result.addError("watch.debounce", watch.Debounce, "debounce cannot be negative")
	}

	checkGlobs(result, "watch.ignore", watch.Ignore)

	known := make(map[string]bool, len(TaskNames))
	for _, name := range TaskNames {
		known[name] = true
	}

	for i, sub := range watch.Subscriptions {
		field := fmt.Sprintf("watch.subscriptions[%d]", i)
		if !known[sub.Task] {
			result.addError(field+".task", sub.Task, fmt.Sprintf("unknown task %q", sub.Task),
				"Available tasks: "+strings.Join(TaskNames, ", "))
		}
		if sub.Task == TaskWatch || sub.Task == TaskDefault {
			result.addError(field+".task", sub.Task, "a subscription cannot start the watch loop again")
		}
		if len(sub.Patterns) == 0 {
			result.addError(field+".patterns", sub.Patterns, "subscription has no patterns")
		}
		checkGlobs(result, field+".patterns", sub.Patterns)
	}
}

func validateLog(result *ValidationResult, log *LogConfig) {
	if _, err := logging.ParseLevel(log.Level); err != nil {
		result.addError("log.level", log.Level, err.Error(),
			"Use one of debug, info, warn, error")
	}
	if log.Format != "" && log.Format != "text" && log.Format != "json" {
		result.addError("log.format", log.Format, "format must be text or json")
	}
	if log.Dir != "" {
		checkPath(result, "log.dir", log.Dir)
	}
}

func checkGlobs(result *ValidationResult, field string, patterns []string) {
	for _, p := range patterns {
		if err := glob.New(p).Validate(); err != nil {
			result.addError(field, p, "invalid glob pattern: "+p,
				"Patterns use ** for any depth and a leading ! to exclude")
		}
	}
}

func checkPath(result *ValidationResult, field, path string) {
	if err := validation.ValidateRelativePath(path); err != nil {
		result.addError(field, path, "invalid path: "+err.Error(),
			"Paths are relative to the project root and may not leave it")
	}
}

func checkFileName(result *ValidationResult, field, name string) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		result.addError(field, name, "must be a plain file name")
	}
}

func checkCommand(result *ValidationResult, field string, argv []string, required bool) {
	if len(argv) == 0 {
		if required {
			result.addError(field, argv, "command cannot be empty")
		}
		return
	}
	for _, arg := range argv {
		if err := validation.ValidateArgument(arg); err != nil {
			result.addError(field, arg, err.Error(),
				"Avoid shell metacharacters in commands")
		}
	}
}
