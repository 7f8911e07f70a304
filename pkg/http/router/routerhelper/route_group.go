package routerhelper

import (
	"net/http"
	"path"

	"github.com/julienschmidt/httprouter"
)

// RouteGroup prefixes every route registered through it.
type RouteGroup struct {
	router *httprouter.Router
	prefix string
}

func NewRouteGroup(router *httprouter.Router, prefix string) *RouteGroup {
	return &RouteGroup{router: router, prefix: prefix}
}

func (g *RouteGroup) path(p string) string {
	return path.Join(g.prefix, p)
}

func (g *RouteGroup) GET(p string, handle httprouter.Handle) {
	g.router.Handle(http.MethodGet, g.path(p), handle)
}

func (g *RouteGroup) POST(p string, handle httprouter.Handle) {
	g.router.Handle(http.MethodPost, g.path(p), handle)
}
