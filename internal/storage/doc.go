// Package storage is the directory store of the relay bot.
//
// It persists the owner id, the known users, the admin set, the managed chats,
// the searchable message archive and an append-only audit log.
//
// Drivers:
//   - "memory": process-local, for tests and throwaway runs
//   - "file":   JSON snapshot + JSON Lines op journal, compacted periodically
//   - "sqlite": single database file (modernc.org/sqlite, no cgo)
package storage
