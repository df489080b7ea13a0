// Package watcher triggers a resynchronization when files under the resource
// root change. Bursts of events are coalesced with a debounce timer, and while
// a resync is already pending further triggers are discarded.
package watcher
