package dashboard

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed assets
var assets embed.FS

// Handler returns an HTTP handler that serves the embedded dashboard assets.
// index.html is served at /; app.js polls /api/probes for probe status.
func Handler() http.Handler {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		// Unreachable: "assets" is embedded at build time.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
