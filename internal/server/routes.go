// Package server wires HTTP handlers into a ServeMux for the room chat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes bound to hub.
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/stats", StatsHandler(hub))
	mux.HandleFunc("/test", TestPageHandler(hub))
	return mux
}
