package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/net/html"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/inspector"
)

func newInspectCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "inspect <page.html>",
		Short: "List the modules of a built page",
		Long: `List every module element of a page, the way the in-page inspector
(ctrl+m) highlights them: elements with mod_ or var_ classes, labelled by
the class name without its prefix.

Examples:
  estatico inspect build/index.html
  estatico inspect build/index.html --write /tmp/highlighted.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "write", "w", "", "write the highlighted page to this file")
	return cmd
}

func runInspect(cmd *cobra.Command, page, output string) error {
	data, err := os.ReadFile(page)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeReadFailed, "cannot read page", page)
	}

	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return errors.WrapTransform(err, errors.ErrCodeTransformFailed, "cannot parse page", page)
	}

	// A page written by an earlier --write still carries its highlights.
	inspector.Clear(doc)

	var insp inspector.Inspector
	highlights := insp.Toggle(doc)

	out := cmd.OutOrStdout()
	for _, h := range highlights {
		fmt.Fprintf(out, "%s %s (%s)\n", h.Selector(), h.Log(), h.Title())
	}
	fmt.Fprintf(out, "%d modules\n", len(highlights))

	if output == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return errors.WrapTransform(err, errors.ErrCodeTransformFailed, "cannot render page", page)
	}
	if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "cannot write page", output)
	}
	return nil
}
