// Package validation provides the path and name sanitization used before
// any user-controlled string becomes part of the generated project tree.
package validation

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/respogen/respogen/internal/errors"
	"github.com/respogen/respogen/internal/project"
)

const (
	// MaxPathLength bounds a raw entry path in bytes.
	MaxPathLength = 4096
	// MaxProjectNameLength bounds a sanitized project name in bytes.
	MaxProjectNameLength = 255
)

// SanitizePath validates and normalizes a relative entry path using the
// default length ceiling.
func SanitizePath(raw string) (string, error) {
	return SanitizePathWithLimit(raw, MaxPathLength)
}

// SanitizePathWithLimit is the single choke point for admitting a path into
// a FileSet. The result is slash-separated, NFC-normalized, has no leading
// slash and no empty, "." or ".." segments.
//
// Backslashes count as separators, duplicate separators collapse and one
// leading "/" is stripped. Drive-letter and UNC prefixes are rejected as
// absolute, as is any ".." segment anywhere in the path.
func SanitizePathWithLimit(raw string, maxLen int) (string, error) {
	if raw == "" {
		return "", errors.NewPathError(raw, "path cannot be empty")
	}
	if maxLen > 0 && len(raw) > maxLen {
		return "", errors.NewPathError(truncate(raw), fmt.Sprintf("path exceeds %d bytes", maxLen))
	}
	if strings.ContainsRune(raw, 0) {
		return "", errors.NewPathError(strings.ReplaceAll(raw, "\x00", `\0`), "path contains NUL byte")
	}

	p := strings.ReplaceAll(raw, `\`, "/")

	if strings.HasPrefix(p, "//") {
		return "", errors.NewPathError(raw, "UNC paths are not allowed")
	}
	if hasDrivePrefix(p) {
		return "", errors.NewPathError(raw, "absolute path not allowed")
	}

	p = norm.NFC.String(p)

	segments := strings.Split(p, "/")
	kept := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", errors.NewPathError(raw, "path traversal detected")
		}
		kept = append(kept, seg)
	}

	if len(kept) == 0 {
		return "", errors.NewPathError(raw, "path has no file component")
	}

	clean := strings.Join(kept, "/")
	if maxLen > 0 && len(clean) > maxLen {
		return "", errors.NewPathError(truncate(raw), fmt.Sprintf("path exceeds %d bytes", maxLen))
	}

	return clean, nil
}

// IsDirectoryPath reports whether raw names a directory rather than a file.
func IsDirectoryPath(raw string) bool {
	return strings.HasSuffix(raw, "/") || strings.HasSuffix(raw, `\`)
}

// SanitizeProjectName turns the free-form project name field into a value
// usable as an archive file name. Blank input yields the default name;
// input with nothing usable left is a fatal validation error.
func SanitizeProjectName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return project.DefaultProjectName, nil
	}

	name = norm.NFC.String(name)

	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}

	cleaned := strings.Trim(b.String(), "-.")
	if cleaned == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidProjectName,
			fmt.Sprintf("project name %q contains no usable characters", raw))
	}
	if len(cleaned) > MaxProjectNameLength {
		return "", errors.NewValidationError(errors.ErrCodeInvalidProjectName,
			fmt.Sprintf("project name exceeds %d bytes", MaxProjectNameLength))
	}

	return cleaned, nil
}

// SanitizeInput removes NUL and control characters from free text such as
// the project description, keeping common whitespace.
func SanitizeInput(input string) string {
	var sanitized strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' || r == '\r' {
			sanitized.WriteRune(r)
		}
	}

	return sanitized.String()
}

func hasDrivePrefix(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func truncate(s string) string {
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
