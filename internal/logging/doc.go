// Package logging provides structured JSON logging for ideaforge.
//
// A root Logger is created once per process from the logging section of the
// configuration and handed down to the server, the orchestrator and the
// store. Each layer derives a child logger carrying its own context:
//
//	log := root.WithSession(sessionID).WithTurn(req.TurnNumber)
//	log.WithPhase("analyzing").Warn("analysis role failed", "role", "critic", "error", err)
//
// Children share the root's writer and level, so SetLevel on the root (used
// when the configuration file changes) applies everywhere.
//
// When a log directory is configured, output goes to ideaforge.log in that
// directory through a RotatingWriter that rotates by size and keeps a fixed
// number of (optionally gzipped) backups. Without a directory logs go to
// stderr. Tests use NopLogger or NewWithWriter over a bytes.Buffer.
package logging
