package api

// Group registers routes under a common path prefix.
type Group struct {
	parent *Router
	path   string
}

// GET registers a GET route at the group prefix joined with path.
func (g *Group) GET(path string, handle Handler) {
	g.parent.GET(g.path+path, handle)
}
