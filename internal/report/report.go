// Package report writes research reports to disk as Markdown files.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	maxNameLength = 255
	hintLength    = 20
)

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

var forbidden = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_", "/", "_",
	`\`, "_", "|", "_", "?", "_", "*", "_",
)

// SafeName converts s into a name usable as a file or directory on every
// major filesystem, Windows included.
func SafeName(s string) string {
	s = forbidden.Replace(s)
	s = strings.TrimRight(s, " .")
	if _, ok := reservedNames[strings.ToUpper(s)]; ok {
		s += "_"
	}
	if r := []rune(s); len(r) > maxNameLength {
		s = string(r[:maxNameLength])
	}
	return s
}

// FileName returns the report file name derived from a hint: the first
// twenty characters of the sanitized hint plus ".md".
func FileName(hint string) string {
	name := []rune(SafeName(hint))
	if len(name) > hintLength {
		name = name[:hintLength]
	}
	if len(name) == 0 {
		return "report.md"
	}
	return string(name) + ".md"
}

// Saver persists report content under a root directory.
type Saver struct {
	Root   string
	Logger *zap.Logger
}

// NewSaver creates a saver rooted at root ("" means the working directory).
func NewSaver(root string, logger *zap.Logger) *Saver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Saver{Root: root, Logger: logger}
}

// Save writes content to <root>/<directory>/<FileName(hint)>, creating the
// directory if needed, and returns the written path.
func (s *Saver) Save(content, hint, directory string) (string, error) {
	dir := filepath.Join(s.Root, directory)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, FileName(hint))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	s.Logger.Info("report saved", zap.String("path", path))
	return path, nil
}
