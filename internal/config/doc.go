// Package config loads devsyslog's optional TOML configuration.
//
// # Discovery
//
// Load resolves the file in this order:
//
//  1. An explicitly provided path (from --config)
//  2. ~/.config/devsyslog/config.toml
//
// A missing file is not an error; Load returns Default(). A file that exists
// but fails to parse, or names an unknown colors mode, is an error.
//
// # TOML Format
//
//	udid = "00008030001a2b3c4d5e6f708192a3b4c5d6e7f8"
//	debug = false
//	colors = "auto"          # auto | always | never
//	theme = "Kanagawa"
//	metrics_addr = "127.0.0.1:9464"
//	tui = false
//
// String values are trimmed. Leading ~ in the config path expands to the
// user's home directory.
//
// # Precedence
//
// The config only supplies defaults. Flags passed on the command line always
// win; the merge happens in package app.
package config
