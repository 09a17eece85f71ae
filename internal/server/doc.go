// Package server implements the HTTP and WebSocket surface of the chat service
// and the Hub that tracks room presence and fans out room events.
//
// The implementation is organized into specialized files for configuration,
// the hub loop, per-event handlers, delivery, clients, routing, and HTTP
// handlers to keep each concern small and testable.
package server
