// Package mediatypes classifies source files by extension: which media
// kind an original belongs to and which MIME type to advertise for it.
// It is a dependency-light foundation importable from every other
// package without cycles.
package mediatypes
