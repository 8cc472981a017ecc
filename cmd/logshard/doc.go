// Package main hosts the logshard CLI.
//
// `logshard server` hands out line-aligned shards of a daily log over HTTP
// and `logshard client` polls one and replays the shards into local
// replicas. The remaining commands inspect configuration, the shipment
// ledger, and whitelist files.
package main
