package monitoring

import "log"

// Logf is the package-level diagnostic logger shared by the pipeline stages.
// It defaults to log.Printf but may be replaced by SetLogger. Tests or
// production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs through Logf with the "warning:" prefix used for overload drops,
// publish failures and simulated capture failures.
func Warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}
