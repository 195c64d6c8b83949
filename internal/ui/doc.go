// Package ui provides the optional Bubble Tea live view for devsyslog.
//
// # Layout
//
//	┌───────────────────────────────────────────────────────────┐
//	│ devsyslog  ACTIVE  <udid>  session 1a2b3c4d  lines 1204   │ header
//	├───────────────────────────────────────────────────────────┤
//	│ relayed lines (colorized by logtail, never restyled)      │ viewport
//	├───────────────────────────────────────────────────────────┤
//	│ Nightfox  f toggle follow • T cycle theme • ? help • q    │ footer
//	└───────────────────────────────────────────────────────────┘
//
// The header reads state.Store snapshots on a one-second tick. The viewport
// keeps the most recent lines (5000 unless prefs say otherwise) and follows
// the tail until the operator scrolls up; G or f resumes following. The f
// toggle is remembered across runs.
//
// # Feeding Lines
//
// Program.Sink returns an io.Writer for relay.Options.Output. Each write
// becomes one message to the program, one row per line; an unterminated
// write (a line cut at the assembler's capacity) is still a row of its own; the viewport
// content is rebuilt at most every 100ms so a chatty device does not force a
// redraw per line.
//
// # Themes
//
// Nightfox, Kanagawa and Slate color the header and footer only. T cycles
// them and saves the choice with package prefs. A theme set in config.toml
// wins over the saved one.
package ui
