// Package storage abstracts the physical containers that hold resource files.
// A FolderStorage is a directory tree with one subdirectory per resource type;
// an ArchiveStorage is a single read-only file (.bundle zip, .abr or .asl
// library). Both satisfy Storage, which exposes enumeration per resource type,
// byte-level fetch by name, and tag discovery. The package also owns the
// temp-file + rename copy primitives used when installing resources into the
// resource root, so a partially written file never becomes visible.
package storage
