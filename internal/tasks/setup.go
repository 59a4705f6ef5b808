package tasks

import (
	"context"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/registry"
)

// Services are the long-running parts the composite tasks start. They are
// supplied by the caller so this package does not depend on the watcher or
// the server.
type Services struct {
	// Watch starts the change-watch loop and returns once it is watching.
	Watch registry.Action
	// Serve runs the development server until ctx is done.
	Serve registry.Action
}

// Register adds every task, transforms and composites, to reg.
func Register(reg *registry.Registry, env *Env, svc Services) error {
	tasks := []registry.Task{
		{Name: config.TaskHTML, Action: env.HTML, Reload: true,
			Description: "Render pages with their layouts, partials and data"},
		{Name: config.TaskCSS, Action: env.CSS, Reload: true,
			Description: "Compile stylesheets"},
		{Name: config.TaskJS, Action: env.JS, Reload: true,
			Description: "Lint scripts and build the script bundles"},
		{Name: config.TaskJSTemplates, Action: env.JSTemplates, Reload: true,
			Description: "Bundle module templates for client-side rendering"},
		{Name: config.TaskModernizr, Action: env.Modernizr,
			Description: "Build a feature detection script for the tests in use"},
		{Name: config.TaskLodash, Action: env.Lodash,
			Description: "Build the reduced utility library"},
		{Name: config.TaskIconfont, Action: env.Iconfont,
			Description: "Generate the icon font and its stylesheet"},
		{Name: config.TaskPNGSprite, Action: env.PNGSprite,
			Description: "Generate the sprite sheet and its stylesheet"},
		{Name: config.TaskMedia, Action: env.Media,
			Description: "Copy fonts and media"},
		{Name: config.TaskClean, Action: env.Clean,
			Description: "Remove the build output"},
		{Name: config.TaskImageVersions, Action: env.ImageVersions,
			Description: "Generate resized image versions"},
		{Name: config.TaskSetup, Deps: []string{config.TaskLodash}, Action: env.Modernizr,
			Description: "Generate the vendor helpers"},
		{Name: config.TaskBuild, Deps: []string{config.TaskIconfont, config.TaskPNGSprite},
			Action: func(ctx context.Context) error {
				return reg.RunParallel(ctx, config.TaskHTML, config.TaskCSS, config.TaskJS, config.TaskMedia)
			},
			Description: "Build the whole site"},
		{Name: config.TaskWatch, Action: svc.Watch,
			Description: "Rebuild on changes"},
		{Name: config.TaskDefault,
			Deps: []string{
				config.TaskIconfont, config.TaskPNGSprite, config.TaskHTML, config.TaskCSS,
				config.TaskJS, config.TaskMedia, config.TaskWatch,
			},
			Action:      svc.Serve,
			Description: "Build, watch and serve with live reload"},
	}

	for _, t := range tasks {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return reg.Validate()
}
