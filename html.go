/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
)

// serveHomePage lists the available game variants. Clients are expected to
// be real frontends talking to /ws; this page exists so a bare browser hit
// still shows something sensible.
func serveHomePage(cfg *Config) httprouter.Handle {
	var body strings.Builder
	body.WriteString(`<!DOCTYPE html><html lang="en"><head><title>partyhub</title></head><body>`)
	body.WriteString("<h1>partyhub</h1><p>Available games:</p><ul>")
	for _, variant := range knownVariants() {
		body.WriteString("<li>" + variant + "</li>")
	}
	body.WriteString("</ul><p>Connect via /ws?name=&lt;display name&gt;</p></body></html>")
	page := body.String()

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(page))
	}
}
