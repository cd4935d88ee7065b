package scanner

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"

	"github.com/bmatcuk/doublestar/v4"
)

// FilterResult is the outcome of one filter evaluation.
type FilterResult struct {
	Included bool
	Reason   string
}

// FilterConfig configures the filter cascade.
type FilterConfig struct {
	// ReservedHiddenDir is the engine's own metadata directory name; it
	// is always excluded from scan results regardless of other rules.
	ReservedHiddenDir string
	// SkipPatterns are doublestar glob patterns matched against the
	// path relative to the vault root.
	SkipPatterns []string
	// IgnoreFileName, if set, names a per-directory ignore marker file
	// (e.g. ".vaultignore") containing one glob per line.
	IgnoreFileName string
}

// Filter implements the three-layer cascade a scan applies to every
// candidate path: the reserved directory, config-level glob patterns,
// and per-directory ignore marker files.
type Filter struct {
	cfg      FilterConfig
	vaultDir string
	logger   *slog.Logger

	mu          gosync.RWMutex
	ignoreCache map[string][]string // dir -> patterns, nil slice means "checked, none"
}

// NewFilter builds a Filter rooted at vaultDir.
func NewFilter(cfg FilterConfig, vaultDir string, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{
		cfg:         cfg,
		vaultDir:    vaultDir,
		logger:      logger,
		ignoreCache: make(map[string][]string),
	}
}

// ShouldSync evaluates path (forward-slash, relative to the vault root).
func (f *Filter) ShouldSync(path string, isDir bool) FilterResult {
	if result := f.checkReserved(path); !result.Included {
		return result
	}
	if result := f.checkSkipPatterns(path); !result.Included {
		return result
	}
	return f.checkIgnoreFile(path, isDir)
}

func (f *Filter) checkReserved(path string) FilterResult {
	if f.cfg.ReservedHiddenDir == "" {
		return FilterResult{Included: true}
	}
	first := strings.SplitN(path, "/", 2)[0]
	if first == f.cfg.ReservedHiddenDir {
		return FilterResult{Included: false, Reason: "reserved metadata directory"}
	}
	return FilterResult{Included: true}
}

func (f *Filter) checkSkipPatterns(path string) FilterResult {
	for _, pattern := range f.cfg.SkipPatterns {
		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			f.logger.Warn("scanner: malformed skip pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			f.logger.Debug("scanner: path excluded by skip pattern", "path", path, "pattern", pattern)
			return FilterResult{Included: false, Reason: fmt.Sprintf("matches skip pattern %q", pattern)}
		}
	}
	return FilterResult{Included: true}
}

func (f *Filter) checkIgnoreFile(path string, isDir bool) FilterResult {
	if f.cfg.IgnoreFileName == "" {
		return FilterResult{Included: true}
	}

	dir := filepath.ToSlash(filepath.Dir(path))
	if dir == "." {
		dir = ""
	}
	patterns := f.loadIgnoreFile(dir)

	matchPath := path
	if isDir {
		matchPath += "/"
	}
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, matchPath)
		if err == nil && matched {
			f.logger.Debug("scanner: path excluded by ignore file", "path", path, "pattern", pattern)
			return FilterResult{Included: false, Reason: "excluded by " + f.cfg.IgnoreFileName}
		}
	}
	return FilterResult{Included: true}
}

func (f *Filter) loadIgnoreFile(dir string) []string {
	f.mu.RLock()
	patterns, cached := f.ignoreCache[dir]
	f.mu.RUnlock()
	if cached {
		return patterns
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if patterns, cached = f.ignoreCache[dir]; cached {
		return patterns
	}

	ignorePath := filepath.Join(f.vaultDir, filepath.FromSlash(dir), f.cfg.IgnoreFileName)
	parsed := parseIgnoreFile(ignorePath)
	f.ignoreCache[dir] = parsed
	return parsed
}

func parseIgnoreFile(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
