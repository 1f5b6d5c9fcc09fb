// Package config loads runtime configuration for the notekeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Environment variables prefixed NOTEKEEPER_. A .env file in the working
//     directory is loaded first; variables already set in the process win.
//  3. Optional JSON file selected with -c or -config.
//  4. Command-line flags, which override everything else.
//
// The result is validated before it is returned.
//
// Supported flags
//
//	-a string      address:port of the note store gRPC endpoint
//	-i int         online status check interval (seconds)
//	-d string      path of the local SQLite database
//	-cache string  directory for cached image blobs
//	-l string      log level (debug, info, warn, error)
//	-log string    log file; empty logs to stderr
//	-token string  session token
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "3s" or integer
// nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "online_check_interval": "3s",
//	  "database_path": ".notekeeper/notes.db",
//	  "asset_retention": "720h",
//	  "s3": {"endpoint": "http://127.0.0.1:9000", "bucket": "notes"}
//	}
package config
