package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/estatico/internal/registry"
	"github.com/conneroisu/estatico/internal/version"
)

// statusRow is one task line of the status page.
type statusRow struct {
	Task        string
	Description string
	Deps        []string
	Stats       registry.TaskStats
	Ran         bool
}

type statusView struct {
	Rows        []statusRow
	Clients     int
	SuccessRate float64
	Version     string
}

func (s *Server) statusView() statusView {
	view := statusView{
		Clients:     s.hub.Count(),
		SuccessRate: s.metrics.SuccessRate(),
		Version:     version.Get().Short(),
	}
	for _, task := range s.registry.Tasks() {
		stats, ran := s.metrics.Get(task.Name)
		view.Rows = append(view.Rows, statusRow{
			Task:        task.Name,
			Description: task.Description,
			Deps:        task.Deps,
			Stats:       stats,
			Ran:         ran,
		})
	}
	return view
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	templ.Handler(statusPage(s.statusView())).ServeHTTP(w, r)
}

func statusPage(view statusView) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><meta charset="utf-8"><title>estatico</title>`+
			`<style>body{font-family:sans-serif;margin:2em}table{border-collapse:collapse}`+
			`td,th{padding:.3em .8em;border-bottom:1px solid #ddd;text-align:left}`+
			`.failed{color:#b00}.ok{color:#070}</style></head><body>`); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<h1>estatico %s</h1><p>%d live-reload clients, %.0f%% successful runs</p>`,
			templ.EscapeString(view.Version), view.Clients, view.SuccessRate); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<table><thead><tr><th>Task</th><th>Depends on</th><th>Runs</th>`+
			`<th>Last duration</th><th>Status</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, row := range view.Rows {
			if err := statusTaskRow(row).Render(ctx, w); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</tbody></table></body></html>`)
		return err
	})
}

func statusTaskRow(row statusRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		status, class := "not run", ""
		if row.Ran {
			status, class = "ok", "ok"
			if !row.Stats.OK() {
				status, class = row.Stats.LastError, "failed"
			}
		}

		_, err := fmt.Fprintf(w, `<tr><td title="%s">%s</td><td>%s</td><td>%d</td><td>%s</td><td class="%s">%s</td></tr>`,
			templ.EscapeString(row.Description),
			templ.EscapeString(row.Task),
			templ.EscapeString(strings.Join(row.Deps, ", ")),
			row.Stats.Runs,
			row.Stats.LastDuration.Round(time.Millisecond),
			class,
			templ.EscapeString(status),
		)
		return err
	})
}
