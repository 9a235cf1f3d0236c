package routes

import "net/http"

// Group organizes routes under a common prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, g := range groups {
		g.register(mux, "")
	}
}

// Patterns lists the method-qualified patterns the groups would register.
func Patterns(groups ...Group) []string {
	var out []string
	for _, g := range groups {
		g.walk("", func(pattern string, _ http.HandlerFunc) {
			out = append(out, pattern)
		})
	}
	return out
}

func (g Group) register(mux *http.ServeMux, parent string) {
	g.walk(parent, func(pattern string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, h)
	})
}

func (g Group) walk(parent string, fn func(pattern string, h http.HandlerFunc)) {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		fn(r.Method+" "+prefix+r.Pattern, r.Handler)
	}
	for _, child := range g.Children {
		child.walk(prefix, fn)
	}
}
