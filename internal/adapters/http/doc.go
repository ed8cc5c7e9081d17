// Package http provides the HTTP adapter that uploads crash reports to the
// crash server.
package http
