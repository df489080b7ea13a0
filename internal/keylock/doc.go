// Package keylock provides per-key mutexes that are released once no caller
// holds or waits for them. It backs the runtime handle cache and the atomic
// file writers.
package keylock
