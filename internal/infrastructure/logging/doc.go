// Package logging builds the process-wide *slog.Logger.
//
// Every record carries service=sensegrid and the build version. Level,
// handler format and destination come from the logging section of
// config.yaml:
//
//	logging:
//	  level: "info"    # debug | info | warn | error
//	  format: "json"   # json | text
//	  output: "stdout" # stdout | stderr
//
// Device tokens, session tokens and passwords must never reach a log
// line; log the device ID or user ID.
package logging
