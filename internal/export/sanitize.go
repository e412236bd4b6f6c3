package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var ErrInvalidOutputDir = errors.New("invalid output_dir")

// SanitizeName makes a clip or scene name safe for a single EDL comment line
// and for use as a file name. Control characters are dropped, anything else
// outside the allowed set becomes '_', and whitespace runs collapse to one space.
func SanitizeName(s string, maxLen int) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return r
		case strings.ContainsRune("-_.,()", r):
			return r
		default:
			return '_'
		}
	}, s)

	cleaned := strings.Join(strings.Fields(mapped), " ")
	if runes := []rune(cleaned); maxLen > 0 && len(runes) > maxLen {
		cleaned = strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}

// ValidateOutputDir accepts only an existing, absolute, clean directory path.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: output_dir is required", ErrInvalidOutputDir)
	}
	if !filepath.IsAbs(dir) {
		return fmt.Errorf("%w: output_dir must be absolute", ErrInvalidOutputDir)
	}
	if containsParent(strings.Split(filepath.ToSlash(dir), "/")) {
		return fmt.Errorf("%w: output_dir cannot contain path traversal", ErrInvalidOutputDir)
	}
	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: output_dir must be a clean path", ErrInvalidOutputDir)
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: output_dir does not exist", ErrInvalidOutputDir)
	case err != nil:
		return fmt.Errorf("%w: %w", ErrInvalidOutputDir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: output_dir is not a directory", ErrInvalidOutputDir)
	}
	return nil
}

func containsParent(parts []string) bool {
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}
