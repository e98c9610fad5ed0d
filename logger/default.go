package logger

import "os"

var defLogger = NewSlog(InfoLevel, false)

// Debug logs a message at DebugLevel on the package-level logger.
func Debug(msg string, keysAndValues ...any) {
	defLogger.Debug(msg, keysAndValues...)
}

// Info logs a message at InfoLevel on the package-level logger.
func Info(msg string, keysAndValues ...any) {
	defLogger.Info(msg, keysAndValues...)
}

// Warn logs a message at WarnLevel on the package-level logger.
func Warn(msg string, keysAndValues ...any) {
	defLogger.Warn(msg, keysAndValues...)
}

// Error logs a message at ErrorLevel on the package-level logger.
func Error(msg string, keysAndValues ...any) {
	defLogger.Error(msg, keysAndValues...)
}

// Fatal logs a message at FatalLevel on the package-level logger, then exits.
func Fatal(msg string, keysAndValues ...any) {
	defLogger.Fatal(msg, keysAndValues...)
}

// SetLevel sets the minimum enabled level of the package-level logger.
func SetLevel(level LogLevel) {
	defLogger.SetLevel(level)
}

// GetLogger returns the package-level logger.
func GetLogger() Logger {
	return defLogger
}

// With creates a child of the package-level logger.
func With(keyValues ...any) Logger {
	return defLogger.With(keyValues...)
}

// ParseLevel maps a level name ("debug", "info", "warn", "error", "fatal")
// to a LogLevel. Unknown names map to InfoLevel.
func ParseLevel(name string) LogLevel {
	switch name {
	case "debug", "DEBUG":
		return DebugLevel
	case "warn", "WARN", "warning":
		return WarnLevel
	case "error", "ERROR":
		return ErrorLevel
	case "fatal", "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func init() {
	if lv, ok := os.LookupEnv("ARQLINK_LOG_LEVEL"); ok {
		defLogger.SetLevel(ParseLevel(lv))
	}
}
