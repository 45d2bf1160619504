// Package logx configures campaigner's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured, appended across runs
//
// Operator-facing output (prompts, progress bar, summaries) is not logging;
// it goes straight to Stdout().
package logx
