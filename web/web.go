// Package web serves the embedded HTML shell for the sylva frontend.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static/*
var content embed.FS

// Handler returns an http.Handler that serves the embedded pages.
//
// /login serves the login page, /public/* serves static assets, and every
// other page path falls back to the application shell so client-side
// routing can take over.
func Handler() (http.Handler, error) {
	fsys, err := fs.Sub(content, "static")
	if err != nil {
		return nil, fmt.Errorf("loading embedded web assets: %w", err)
	}

	indexBytes, err := fs.ReadFile(fsys, "index.html")
	if err != nil {
		return nil, fmt.Errorf("reading embedded index.html: %w", err)
	}
	loginBytes, err := fs.ReadFile(fsys, "login.html")
	if err != nil {
		return nil, fmt.Errorf("reading embedded login.html: %w", err)
	}

	static := http.FileServer(http.FS(fsys))

	serveHTML := func(w http.ResponseWriter, body []byte) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(body)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			serveHTML(w, loginBytes)
			return
		}

		cleanPath := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if cleanPath == "." {
			serveHTML(w, indexBytes)
			return
		}

		if _, err := fs.Stat(fsys, cleanPath); err == nil {
			static.ServeHTTP(w, r)
			return
		}

		// Deep-link fallback to the shell.
		serveHTML(w, indexBytes)
	}), nil
}
