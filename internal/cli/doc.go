// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates cobra flags, and the FRAMEGRID_* environment variables viper
// binds to them, into the application's internal configuration.
package cli
