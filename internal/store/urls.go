package store

import (
	"path/filepath"
	"strings"
)

// URLResolver synthesizes public locations from internal storage paths.
// Resolution is a pure function of the configured base path/URL pair.
type URLResolver struct {
	BasePath string
	BaseURL  string
}

// NewURLResolver creates a resolver for the given base path and URL.
// Trailing separators are normalized away.
func NewURLResolver(basePath, baseURL string) URLResolver {
	return URLResolver{
		BasePath: strings.TrimRight(basePath, string(filepath.Separator)),
		BaseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// IsURL reports whether a location is already a URL rather than a
// storage path.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Resolve derives the public location for an internal storage path.
// A location that is already a URL passes through unchanged. Paths
// outside the base path also pass through; they cannot be served.
func (r URLResolver) Resolve(location string) string {
	if IsURL(location) || r.BasePath == "" {
		return location
	}
	rel, err := filepath.Rel(r.BasePath, location)
	if err != nil || strings.HasPrefix(rel, "..") {
		return location
	}
	return r.BaseURL + "/" + filepath.ToSlash(rel)
}

// PathFor maps a public location back to its internal storage path.
// Returns an empty string for external locations, which have no local
// file to manage.
func (r URLResolver) PathFor(location string) string {
	if !IsURL(location) {
		return location
	}
	if r.BaseURL == "" || !strings.HasPrefix(location, r.BaseURL+"/") {
		return ""
	}
	rel := strings.TrimPrefix(location, r.BaseURL+"/")
	return filepath.Join(r.BasePath, filepath.FromSlash(rel))
}

// IsExternal reports whether a location references storage outside this
// instance's base URL, in which case no local file may be deleted for it.
func (r URLResolver) IsExternal(location string) bool {
	return IsURL(location) && r.PathFor(location) == ""
}
