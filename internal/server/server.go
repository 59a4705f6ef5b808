// Package server is the development server: it serves the build output,
// injects the live-reload client into every HTML page, and tells connected
// browsers to reload when a task that changes the page succeeds.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/process"
	"github.com/conneroisu/estatico/internal/registry"
	"github.com/conneroisu/estatico/internal/validation"
	"github.com/conneroisu/estatico/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Server serves the build output with live reload.
type Server struct {
	root     string
	cfg      config.ServerConfig
	registry *registry.Registry
	metrics  *registry.Metrics
	hub      *Hub
	runner   process.Runner
	logger   logging.Logger
}

// Option customises a Server.
type Option func(*Server)

// WithRunner sets the runner used to open the browser.
func WithRunner(runner process.Runner) Option {
	return func(s *Server) {
		s.runner = runner
	}
}

// New creates a server for cfg and subscribes it to reg's task results.
// root is the project directory cfg.Root is relative to.
func New(root string, cfg config.ServerConfig, reg *registry.Registry, logger logging.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("server")

	s := &Server{
		root:     filepath.Join(root, cfg.Root),
		cfg:      cfg,
		registry: reg,
		metrics:  registry.NewMetrics(),
		hub:      NewHub(allowedOrigins(cfg), logger),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = process.NewExecRunner(logger)
	}

	reg.OnComplete(s.metrics.Record)
	reg.OnComplete(s.onTaskComplete)
	return s
}

// allowedOrigins lists the origins pages are served from.
func allowedOrigins(cfg config.ServerConfig) []string {
	port := strconv.Itoa(cfg.Port)
	origins := []string{
		net.JoinHostPort(cfg.Host, port),
		net.JoinHostPort("localhost", port),
		net.JoinHostPort("127.0.0.1", port),
	}
	return append(origins, cfg.AllowedOrigins...)
}

// Hub returns the live-reload hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Notify reloads every connected browser and returns how many were reached.
func (s *Server) Notify() int {
	return s.hub.Notify("")
}

func (s *Server) onTaskComplete(result registry.Result) {
	if !result.OK() || !result.Reload {
		return
	}
	n := s.hub.Notify(reloadPath(result.Task))
	s.logger.Debug(context.Background(), "Reload sent", "task", result.Task, "clients", n)
}

// reloadPath lets the client swap stylesheets in place instead of reloading
// the page.
func reloadPath(task string) string {
	if task == config.TaskCSS {
		return "*.css"
	}
	return ""
}

// Handler serves the build output, the status page and the health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/_estatico", s.handleStatus)
	mux.HandleFunc("/", s.handleStatic)
	return mux
}

// ReloadHandler serves the live-reload channel and its client script.
func (s *Server) ReloadHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/livereload", s.hub)
	mux.HandleFunc("/livereload.js", serveClientScript)
	return mux
}

// Run listens on both ports and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	site, err := s.listen(s.cfg.Port)
	if err != nil {
		return err
	}
	reload, err := s.listen(s.cfg.LivereloadPort)
	if err != nil {
		site.Close()
		return err
	}

	siteServer := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	reloadServer := &http.Server{Handler: s.ReloadHandler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 2)
	go func() { errCh <- siteServer.Serve(site) }()
	go func() { errCh <- reloadServer.Serve(reload) }()

	url := fmt.Sprintf("http://%s", site.Addr().String())
	s.logger.Info(ctx, "Serving build output",
		"url", url,
		"root", s.root,
		"livereload", reload.Addr().String())

	if s.cfg.Open {
		go s.openBrowser(ctx, s.cfg.URL())
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.hub.Close()
	if err := siteServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, err, "Site server shutdown failed")
	}
	if err := reloadServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(shutdownCtx, err, "Live-reload server shutdown failed")
	}

	if serveErr != nil && serveErr != http.ErrServerClosed {
		return errors.NewIOError(errors.ErrCodeListenFailed, "server stopped", serveErr)
	}
	return nil
}

func (s *Server) listen(port int) (net.Listener, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeListenFailed, "cannot listen on "+addr, err)
	}
	return ln, nil
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.root, filepath.FromSlash(name))

	info, err := os.Stat(file)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		file = filepath.Join(file, "index.html")
		if _, err := os.Stat(file); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	if ext := strings.ToLower(filepath.Ext(file)); ext != ".html" && ext != ".htm" {
		http.ServeFile(w, r, file)
		return
	}

	page, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "Cannot read page", http.StatusInternalServerError)
		return
	}

	injected, err := InjectScript(page, s.scriptURL(r))
	if err != nil {
		s.logger.Warn(r.Context(), err, "Live-reload injection failed", "file", file)
		injected = page
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(injected)
}

// scriptURL is the client script address as seen by the requesting browser.
func (s *Server) scriptURL(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(r.Host); err == nil {
		host = h
	}
	return fmt.Sprintf("//%s/livereload.js", net.JoinHostPort(host, strconv.Itoa(s.cfg.LivereloadPort)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	info := version.Get()
	health := map[string]interface{}{
		"status":       "healthy",
		"timestamp":    time.Now(),
		"version":      info.Short(),
		"build":        info,
		"clients":      s.hub.Count(),
		"success_rate": s.metrics.SuccessRate(),
		"tasks":        s.metrics.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.Warn(r.Context(), err, "Failed to encode health response")
	}
}

func (s *Server) openBrowser(ctx context.Context, url string) {
	if err := validation.ValidateURL(url); err != nil {
		s.logger.Warn(ctx, err, "Refusing to open browser", "url", url)
		return
	}

	var cmd process.Command
	switch runtime.GOOS {
	case "linux":
		cmd = process.Command{Name: "xdg-open", Args: []string{url}}
	case "windows":
		cmd = process.Command{Name: "rundll32", Args: []string{"url.dll,FileProtocolHandler", url}}
	case "darwin":
		cmd = process.Command{Name: "open", Args: []string{url}}
	default:
		s.logger.Warn(ctx, nil, "Cannot open browser on this platform", "os", runtime.GOOS)
		return
	}

	if _, err := s.runner.Run(ctx, cmd); err != nil {
		s.logger.Warn(ctx, err, "Failed to open browser", "url", url)
	}
}
