package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/registry"
	"github.com/conneroisu/estatico/internal/tasks"
)

// taskRegistry returns the tasks of a default project, for help texts and
// the tasks command.
func taskRegistry() *registry.Registry {
	reg := registry.New(nil)
	noop := func(ctx context.Context) error { return nil }
	_ = tasks.Register(reg, tasks.NewEnv(".", config.Default(), nil, nil), tasks.Services{Watch: noop, Serve: noop})
	return reg
}

func newTaskCommands(v *viper.Viper, opts *options) []*cobra.Command {
	var cmds []*cobra.Command
	for _, task := range taskRegistry().Tasks() {
		name := task.Name
		short := task.Description
		if len(task.Deps) > 0 {
			short += " (after " + strings.Join(task.Deps, ", ") + ")"
		}
		cmds = append(cmds, &cobra.Command{
			Use:   name,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTasks(cmd, v, opts, []string{name})
			},
		})
	}
	return cmds
}

func newRunCommand(v *viper.Viper, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run <task>...",
		Short: "Run several tasks concurrently",
		Long: `Run the named tasks and their dependencies. Tasks without an ordering
between them run concurrently; every dependency runs once.

Examples:
  estatico run html css js
  estatico run iconfont pngsprite --production`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTasks(cmd, v, opts, args)
		},
	}
}

func newTasksCommand(v *viper.Viper, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"ls"},
		Short:   "List the tasks and their dependencies",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := taskRegistry()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TASK\tDEPENDS ON\tUSED BY\tDESCRIPTION")
			for _, task := range reg.Tasks() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					task.Name, joinOrDash(task.Deps), joinOrDash(reg.Dependents(task.Name)), task.Description)
			}
			return w.Flush()
		},
	}
}

// runTasks wires up the project and runs names until they finish or the
// process is interrupted.
func runTasks(cmd *cobra.Command, v *viper.Viper, opts *options, names []string) error {
	a, err := newApp(v, opts.dir, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.run(ctx, names)
}

func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}
