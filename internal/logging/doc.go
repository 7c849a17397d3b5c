// Package logging provides file-based structured logging with rotation for
// Mosaic. With --debug set, comprehensive JSON logs are written under
// ~/.mosaic/logs/ for troubleshooting.
//
// Serve mode logs to file only: stdout carries the MCP protocol stream and
// must never receive log output.
package logging
