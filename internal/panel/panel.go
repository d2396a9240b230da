package panel

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

//go:embed web
var assets embed.FS

// Handler serves the browser panel.
//
// dir, when it names an existing directory, replaces the embedded assets so
// the page can be edited live. Paths with no matching file get index.html.
func Handler(dir string) http.Handler {
	files := source(dir)
	server := http.FileServerFS(files)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name != "" && name != "." {
			if _, err := fs.Stat(files, name); err != nil {
				r = r.Clone(r.Context())
				r.URL.Path = "/"
			}
		}
		server.ServeHTTP(w, r)
	})
}

func source(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	web, err := fs.Sub(assets, "web")
	if err != nil {
		panic("panel: embedded assets missing: " + err.Error())
	}
	return web
}
