// Package locator owns the resource root. It decides on startup whether the
// root needs a first-run installation, a migration, or just a synchronize,
// keeps the set of live storages (the root folder plus every archive found
// beneath it), reconciles them against the cache database, and serves
// identity-stable handles through the runtime cache.
//
// A Locator is constructed explicitly with New and owned by the embedding
// program; there is no package-level instance.
package locator
