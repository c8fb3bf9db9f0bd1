// Package logx configures welcomebot's structured logging.
//
// Logger is a small wrapper on top of zerolog:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON-structured
//   - An optional chat sink mirrors WARN+ lines into a platform channel (min-level + rate limiting)
package logx
