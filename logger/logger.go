// Package logger is the logging seam of go-arqlink.
//
// Sessions and links log through the Logger interface with a short message
// and key/value pairs, for example "link: packet retransmitted" with "seq".
// Per-frame events (sent, acked, dropped on CRC, out of order) go to Debug,
// link start, stop and periodic stats go to Info, a session faulted by an
// unframed byte goes to Warn, and failed reads or a stuck Close go to Error.
// Nothing in the library calls Fatal.
//
// The default implementation is built on log/slog; see NewSlog.
package logger

// LogLevel is a logging severity, independent of the backend's own levels.
type LogLevel = int8

const (
	// DebugLevel shows every frame; expect one line per frame sent or received.
	DebugLevel LogLevel = iota - 1
	// InfoLevel is the default level.
	InfoLevel
	// WarnLevel reports a session that stopped accepting input.
	WarnLevel
	// ErrorLevel reports stream and shutdown failures.
	ErrorLevel
	// FatalLevel logs and exits the program.
	FatalLevel
)

// Logger is the interface every go-arqlink package logs through.
// A Logger returned by With carries its key/values into every message.
type Logger interface {
	// Debug logs per-frame protocol events.
	Debug(msg string, keysAndValues ...any)
	// Info logs link lifecycle events and stats.
	Info(msg string, keysAndValues ...any)
	// Warn logs conditions that stop a session without an I/O error.
	Warn(msg string, keysAndValues ...any)
	// Error logs stream failures and shutdown problems.
	Error(msg string, keysAndValues ...any)
	// Fatal logs at FatalLevel and then calls os.Exit(1). It is left to
	// applications; library code never exits the process.
	Fatal(msg string, keysAndValues ...any)
	// With returns a child logger that adds keyValues to every message,
	// such as the port name of a uart.Link. The parent is unchanged.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level.
	Level() LogLevel
	// SetLevel changes the minimum enabled level.
	SetLevel(level LogLevel)
}
