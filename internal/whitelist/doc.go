// Package whitelist loads the IP allow-list consulted before each shard
// request.
//
// Entries are matched by exact string equality against the client's remote
// address host. An empty list allows every client.
package whitelist
