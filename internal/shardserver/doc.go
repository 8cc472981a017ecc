// Package shardserver exposes the shard cursor over HTTP.
//
// A single endpoint, GET /shard, hands out the next line-aligned chunk of
// today's log. Requests are handled one at a time. Before each request the
// server re-resolves the daily log and access log paths and reloads the IP
// whitelist; failure to open the access log or read the whitelist is fatal.
package shardserver
