// Package ledger records every shard the server hands out.
//
// The ledger is an optional SQLite database. Each row names the log file,
// the byte range shipped, and who received it, which makes it possible to
// pick a restart offset after a server crash.
package ledger
