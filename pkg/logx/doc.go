// Package logx is remindbot's structured logging layer.
//
// It wraps zerolog with a small value-typed Logger:
//   - console output stays readable (short timestamp + short caller)
//   - the file sink writes JSON lines
//   - an optional chat sink forwards warnings to an admin chat, rate limited
package logx
