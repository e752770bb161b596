// Package memory implements conversation memory.
//
// Short-term memory is a bounded FIFO Window of recent messages per session.
// Long-term memory is a durable, append-only Store ordered by id; the
// pipeline only appends to it, while point lookup, update and delete are
// administrative operations exposed through askctl.
//
// Store backends: gorm over sqlite or postgres, a JSON file, or process memory.
// Content is scrubbed for secrets before it reaches any backend.
package memory
