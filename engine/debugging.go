package engine

import "log"

// DebugLogf, if non-nil, receives verbose tracing messages from
// operator/producer evaluation. verbosityLevel is a number greater than
// zero, with higher numbers meaning the message is increasingly
// verbose. If nil (the default), level-1 messages fall back to
// log.Printf and higher levels are silently dropped, so tracing costs
// nothing when a caller hasn't opted in. Grounded on
// corefile/debugging.go's DebugLogf hook.
var DebugLogf func(verbosityLevel int, format string, args ...interface{})

func logf(format string, args ...interface{}) {
	if DebugLogf != nil {
		DebugLogf(1, format, args...)
	} else {
		log.Printf(format, args...)
	}
}

func verbosef(format string, args ...interface{}) {
	if DebugLogf != nil {
		DebugLogf(2, format, args...)
	}
}
