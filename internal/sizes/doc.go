// Package sizes models the host's named-size registry: the set of size
// names an asset may be rendered at, their pixel dimensions, and the
// parsing of literal "WxH" size tokens.
package sizes
