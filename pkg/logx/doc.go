// Package logx is hwbot's structured logging: a small value-type wrapper
// (logx.Logger) on top of zerolog with readable console output, optional
// JSON file output and a CRITICAL level that never exits the process.
package logx
