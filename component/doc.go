// Package component defines the lifecycle contract shared by the service's
// infrastructure pieces (broker connection, database, HTTP server) and the
// Registry that starts them in order and stops them in reverse.
package component
