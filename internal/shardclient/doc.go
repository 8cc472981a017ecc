// Package shardclient polls a shard server and replays shards into local
// replica files.
//
// The client keeps no cursor of its own: the server decides what is new,
// and each 200 payload is appended to the replica named by the response's
// first line. When a poll creates a replica that did not exist, the
// configured command is started once for it.
package shardclient
