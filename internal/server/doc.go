// Package server hosts the Fiber HTTP service that exposes read-mostly
// diagnostics for a running resource locator under the /-/ prefix. It wires
// the recover and request-id middlewares and a JSON fallback for unknown
// paths; the concrete endpoints live in the routes subpackage and are attached
// through NewApp's register callbacks. Resource bytes are never served.
package server
