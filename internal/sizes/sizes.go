package sizes

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Full is the size name of the unresized rendering. It is always part of
// a conversion pass even when the registry does not list it.
const Full = "full"

// Dimension holds the pixel dimensions of one named size.
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Registry is the host collaborator that knows which named sizes exist.
// Unrecognized size names are pruned from stored variants on the next
// conversion pass.
type Registry interface {
	// Names returns the currently registered size names.
	Names(ctx context.Context) ([]string, error)

	// Dimensions returns the registered sizes of one asset with their
	// pixel dimensions.
	Dimensions(ctx context.Context, assetID string) (map[string]Dimension, error)
}

// StaticRegistry is a Registry backed by a fixed map, used when the host
// configures sizes statically rather than per asset.
type StaticRegistry map[string]Dimension

// Names implements Registry. Names are returned sorted so passes visit
// sizes in a stable order.
func (r StaticRegistry) Names(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Dimensions implements Registry.
func (r StaticRegistry) Dimensions(_ context.Context, _ string) (map[string]Dimension, error) {
	out := make(map[string]Dimension, len(r))
	for name, dim := range r {
		out[name] = dim
	}
	return out, nil
}

// ParseToken parses a literal "WxH" size token such as "300x200".
// Both dimensions must be positive integers.
func ParseToken(name string) (Dimension, bool) {
	sep := strings.IndexByte(name, 'x')
	if sep <= 0 || sep == len(name)-1 {
		return Dimension{}, false
	}
	w, err := strconv.Atoi(name[:sep])
	if err != nil || w <= 0 {
		return Dimension{}, false
	}
	h, err := strconv.Atoi(name[sep+1:])
	if err != nil || h <= 0 {
		return Dimension{}, false
	}
	return Dimension{Width: w, Height: h}, true
}

// ResolveWidth resolves the pixel width of a size name against the
// registered dimensions. Naming may be either symbolic ("thumbnail") or a
// literal "WxH" token, in which case the match is made by width. Returns
// false when no width can be resolved; callers must not fabricate one.
func ResolveWidth(name string, dims map[string]Dimension) (int, bool) {
	if dim, ok := dims[name]; ok && dim.Width > 0 {
		return dim.Width, true
	}
	if dim, ok := ParseToken(name); ok {
		for _, registered := range dims {
			if registered.Width == dim.Width {
				return dim.Width, true
			}
		}
		return dim.Width, true
	}
	return 0, false
}
