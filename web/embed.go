// Package web embeds the page templates and static assets of the budget UI.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.html static
var files embed.FS

// Templates is rooted at templates/: pages and the htmx partials.
func Templates() fs.FS { return sub("templates") }

// Static is rooted at static/.
func Static() fs.FS { return sub("static") }

func sub(dir string) fs.FS {
	f, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return f
}
