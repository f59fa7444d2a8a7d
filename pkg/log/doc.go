// Package log wraps zerolog with component-scoped child loggers shared by
// every stage of the replay pipeline (transport, caches, engine,
// comparator, mutation lab).
package log
