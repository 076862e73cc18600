// Package validation checks user-supplied paths before they reach the
// filesystem: table overlays, plugin directories and export targets.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Length limits.
const (
	MaxFilenameLength = 255
	MaxPathLength     = 4096
)

// Validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrFilenameTooLong  = errors.New("filename too long")
	ErrOverlayExtension = errors.New("overlay must be a .tbl or CLDR .xml file, optionally .xz compressed")
)

// Overlay file extensions, matched case-insensitively.
var overlayExtensions = []string{".tbl", ".tbl.xz", ".xml", ".xml.xz"}

// ValidatePath rejects empty or overlong paths and paths holding NUL or
// other control characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if i := strings.IndexFunc(path, unicode.IsControl); i >= 0 {
		return fmt.Errorf("%w: control character at byte %d", ErrInvalidCharacter, i)
	}
	return nil
}

// ValidateFilename checks a single path element.
func ValidateFilename(name string) error {
	switch {
	case name == "":
		return ErrInvalidFilename
	case len(name) > MaxFilenameLength:
		return ErrFilenameTooLong
	case name == "." || name == "..":
		return fmt.Errorf("%w: reserved name", ErrInvalidFilename)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: path separator not allowed", ErrInvalidFilename)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return fmt.Errorf("%w: control character not allowed", ErrInvalidFilename)
	case strings.HasPrefix(name, "-"):
		// would be read as a flag by the tools that consume it
		return fmt.Errorf("%w: filename cannot start with hyphen", ErrInvalidFilename)
	}
	return nil
}

// ValidateOverlay checks an overlay table path. Only the path is examined;
// existence is left to the loader.
func ValidateOverlay(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	lower := strings.ToLower(path)
	for _, ext := range overlayExtensions {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrOverlayExtension, filepath.Base(path))
}

// ValidateOutputFile checks a file the tool is about to create.
func ValidateOutputFile(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	return ValidateFilename(filepath.Base(path))
}
