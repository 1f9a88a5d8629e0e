package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

var (
	// ErrInvalidFilename is returned for upload names outside the allowed
	// character set or length.
	ErrInvalidFilename = errors.New("invalid filename")
	// ErrUnsupportedVideo is returned for upload names without an allowed
	// video extension.
	ErrUnsupportedVideo = errors.New("unsupported video format")
)

// VideoExtensions are the accepted upload extensions, lower case.
var VideoExtensions = []string{".mp4", ".mov", ".avi"}

var uploadNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._ -]{0,127}$`)

// ValidateUploadFilename checks a client-supplied upload name and returns its
// lower-cased extension. Directory components are never accepted.
func ValidateUploadFilename(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) || !uploadNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(VideoExtensions, ext) {
		return "", fmt.Errorf("%w: %q (allowed: %s)", ErrUnsupportedVideo, ext, strings.Join(VideoExtensions, " "))
	}
	return ext, nil
}
