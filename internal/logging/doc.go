// Package logging builds the zerolog loggers used across tablesync.
//
// Loggers are passed explicitly to long-lived components (controllers, HTTP
// clients, the demo server) and carried on context.Context for request-scoped
// work. FromContext never returns nil: callers without a logger on their
// context get a disabled logger.
package logging
