package graph

import (
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/rfsync/internal/proxy"
)

// resolutionKey identifies one domain object resolved as one requested
// proxy type. The same object requested as two different types yields two
// resolutions.
type resolutionKey struct {
	obj          any
	assignableTo string
}

// Resolution tracks the state of resolving one client value.
type Resolution struct {
	client any
	key    *resolutionKey

	// needsSimple is a one-shot flag ensuring scalar properties are copied
	// even when no paths were requested.
	needsSimple bool

	toResolve map[string]struct{}
	resolved  map[string]struct{}
}

func simpleResolution(client any) *Resolution {
	return &Resolution{client: client}
}

func proxyResolution(key resolutionKey, p *proxy.Proxy) *Resolution {
	return &Resolution{
		client:      p,
		key:         &key,
		needsSimple: true,
		resolved:    make(map[string]struct{}),
	}
}

// Client returns the resolved client value.
func (r *Resolution) Client() any { return r.client }

// addPaths strips prefix from each requested path and queues the paths not
// already resolved. Paths starting with "*." apply at every level.
func (r *Resolution) addPaths(prefix string, paths []string) {
	if r.client == nil || r.key == nil {
		return
	}
	if prefix != "" {
		prefix += "."
	}
	for _, path := range paths {
		var rel string
		switch {
		case strings.HasPrefix(path, prefix):
			rel = path[len(prefix):]
		case strings.HasPrefix(path, "*."):
			rel = path[len("*."):]
		default:
			continue
		}
		if _, done := r.resolved[rel]; done {
			continue
		}
		if r.toResolve == nil {
			r.toResolve = make(map[string]struct{})
		}
		r.toResolve[rel] = struct{}{}
	}
}

func (r *Resolution) hasWork() bool {
	return r.needsSimple || len(r.toResolve) > 0
}

// takeWork returns the pending relative paths and marks them resolved.
func (r *Resolution) takeWork() []string {
	r.needsSimple = false
	out := make([]string, 0, len(r.toResolve))
	for p := range r.toResolve {
		out = append(out, p)
		r.resolved[p] = struct{}{}
	}
	r.toResolve = nil
	slices.Sort(out)
	return out
}

// ExpandPropertyRefs expands dotted paths into every prefix: "a.b.c"
// becomes "a", "a.b" and "a.b.c". The result is sorted and has no
// duplicates.
func ExpandPropertyRefs(refs []string) []string {
	set := make(map[string]struct{})
	for _, raw := range refs {
		if raw == "" {
			continue
		}
		for idx := len(raw); idx >= 0; idx = strings.LastIndex(raw[:idx], ".") {
			set[raw[:idx]] = struct{}{}
		}
	}
	delete(set, "")
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

var indexSuffix = regexp.MustCompile(`\[\d+\]`)

// matchesPropertyRef reports whether name, with any [n] index suffixes
// removed, is requested. "*" requests everything.
func matchesPropertyRef(refs []string, name string) bool {
	if slices.Contains(refs, "*") {
		return true
	}
	return slices.Contains(refs, indexSuffix.ReplaceAllString(name, ""))
}
