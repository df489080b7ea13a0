// Package cachedb is the persistent metadata cache for resource storages. It
// records every known storage (stored relative to the resource root so the
// root can move), the resources each storage exposes per type, and tag
// associations. The schema lives in embedded, numbered SQL migrations applied
// on Open. All operations either complete inside a single transaction or
// report an error; callers never observe partial structured results.
package cachedb
