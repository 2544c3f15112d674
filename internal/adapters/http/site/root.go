// Package site serves the embedded attendance kiosk page.
package site

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Register attaches the kiosk routes to r. The page is served at / and its
// assets under /static/.
func Register(r gin.IRouter) {
	if r == nil {
		panic("router is nil")
	}
	h := NewRootHandler()
	r.GET("/", h.HandleRoot)
	r.StaticFS("/static", FS())
}

// RootHandler serves the kiosk index page.
type RootHandler struct {
	files http.Handler
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{files: http.FileServer(FS())}
}

// HandleRoot handles GET / requests.
func (h *RootHandler) HandleRoot(c *gin.Context) {
	h.files.ServeHTTP(c.Writer, c.Request)
}
