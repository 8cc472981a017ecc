// Package shard owns the server-side read cursor over the active daily log.
//
// A Cursor reads at most one block per call from the current offset, hands
// back only complete lines, and holds any trailing partial line until a
// later read finishes it. The offset advances by every byte read, including
// held-back bytes, so nothing is read twice. On a UTC day change the cursor
// moves to the new file at offset zero and drops the held-back tail; the
// very first file instead starts at the configured offset.
//
// The log producer must only append. Rewriting bytes below the current
// offset is a precondition violation; the cursor neither detects nor
// repairs it.
package shard
