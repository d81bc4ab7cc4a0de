// Package logx configures relaybot's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - console output readable (short timestamp + short caller)
//   - file output JSON-structured
//   - an optional Telegram sink (min-level + rate limiting) for the operators' log group
package logx
