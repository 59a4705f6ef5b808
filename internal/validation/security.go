// Package validation guards the values that leave the process: arguments
// handed to external programs, output paths, URLs opened in a browser, and
// the origins allowed to connect to the live-reload socket.
package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// shellMeta are characters a configured command line never needs. Commands
// are executed without a shell, but a stray metacharacter almost always
// means a command string was pasted where an argv list was expected.
const shellMeta = ";&|$`()<>\\\"'\n\r"

// ValidateArgument rejects a program argument that carries shell
// metacharacters, climbs out of the project, or names an absolute path
// outside the system binary directories.
func ValidateArgument(arg string) error {
	if i := strings.IndexAny(arg, shellMeta); i >= 0 {
		return fmt.Errorf("contains dangerous character: %q", arg[i])
	}

	if strings.Contains(arg, "..") {
		return fmt.Errorf("contains path traversal: %s", arg)
	}

	if filepath.IsAbs(arg) && !strings.HasPrefix(arg, "/usr/bin/") && !strings.HasPrefix(arg, "/bin/") {
		return fmt.Errorf("absolute path not allowed: %s", arg)
	}

	return nil
}

// ValidateFileArgument accepts any argument exec can pass to a program
// unchanged. Characters a shell would interpret are fine since no shell is
// involved.
func ValidateFileArgument(arg string) error {
	if i := strings.IndexAny(arg, "\x00\n\r"); i >= 0 {
		return fmt.Errorf("contains control character: %q", arg[i])
	}
	return nil
}

// ValidateRelativePath checks that a configured output path stays inside
// the project.
func ValidateRelativePath(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return fmt.Errorf("absolute path not allowed: %s", path)
	}

	clean := filepath.ToSlash(filepath.Clean(path))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path traversal detected: %s", path)
	}

	if i := strings.IndexAny(path, ";&|$`<>"); i >= 0 {
		return fmt.Errorf("path contains dangerous character: %q", path[i])
	}

	return nil
}

// ValidateOrigin accepts origin when it, or its host:port, is listed in
// allowedOrigins. Browsers always send an origin on websocket upgrades, so
// a missing one is refused.
func ValidateOrigin(origin string, allowedOrigins []string) error {
	if origin == "" {
		return fmt.Errorf("origin header is required")
	}

	u, err := parseHTTPURL(origin)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}

	for _, allowed := range allowedOrigins {
		if origin == allowed || u.Host == allowed {
			return nil
		}
	}

	return fmt.Errorf("origin %q is not allowed", origin)
}

// ValidateURL checks a URL before it is handed to the system browser
// opener. It must be a plain http(s) URL that is also a safe argument.
func ValidateURL(rawURL string) error {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}
	if u.User != nil {
		return fmt.Errorf("URL must not carry credentials")
	}
	if strings.ContainsAny(rawURL, " \t") {
		return fmt.Errorf("URL contains whitespace")
	}
	if err := ValidateArgument(rawURL); err != nil {
		return fmt.Errorf("unsafe URL: %w", err)
	}
	return nil
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme %q: only http and https are allowed", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("URL must have a host")
	}
	return u, nil
}
