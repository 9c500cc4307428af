// Package httpserver owns http.Server construction so timeouts are set in
// exactly one place.
package httpserver

import (
	"net/http"
	"time"
)

// New wraps the API router in a server with a header read timeout; request
// deadlines belong to the handlers, shutdown to main.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
