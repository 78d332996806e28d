// Package api implements the frontdesk HTTP server (Gin-based): REST endpoints
// for help requests and the knowledge base, the operator websocket, health,
// version and metrics endpoints, and serving of the operator UI.
package api
