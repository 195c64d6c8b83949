// Package logtail reassembles and colorizes a device's live syslog stream.
//
// # Overview
//
// A device pushes its syslog one byte at a time. This package turns that
// stream into lines and renders each line with ANSI colors for a terminal.
// It is the only place that understands the shape of a syslog line.
//
// # Line Assembly
//
// Assembler buffers bytes until a newline arrives or the buffer reaches its
// capacity (4096 bytes by default), then hands the buffered line to an emit
// callback and starts over:
//
//	asm := logtail.NewAssembler(0, func(line []byte) {
//		_ = colorizer.WriteLine(line)
//	})
//	asm.Push('h')
//	asm.Push('\n') // emits "h\n"
//
// Overlong lines are cut at capacity rather than rejected, so a runaway or
// binary stream can never grow memory. Concatenating every emitted line
// reproduces the input exactly. An Assembler belongs to one capture session
// and is not safe for concurrent use.
//
// # Line Format
//
// Split recognizes the device console layout:
//
//	Oct 15 17:07:21 iPhone SpringBoard[58] <Notice>: message text
//	└──── header ─────────┘└─ process ──┘└─ level ─┘└── message ──┘
//
// The first 16 bytes are always part of the header. The next three spaces
// bound the process, level and message spans. Lines shorter than 16 bytes or
// with fewer than three spaces are not split.
//
// # Colors
//
//   - Header: neutral white
//   - Process: cyan, with a bracketed pid suffix in dim cyan
//   - Level: <Debug> magenta, <Warning> yellow, <Error> red, <Notice> green;
//     the "<" and ">" punctuation is dimmed and the colon is neutral
//   - Message: default terminal color
//
// Unknown levels are printed after a reset. Lines that cannot be split are
// written unchanged, byte for byte.
//
// # Error Handling
//
// Nothing in this package fails on input. Colorizer.WriteLine only returns
// errors from the underlying writer.
package logtail
