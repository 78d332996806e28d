// Package apiresponses provides the uniform JSON responses of the frontdesk
// HTTP API and maps domain errors onto status codes.
package apiresponses
