// Package logging sets up structured JSON logging for chatsearch with
// size-based file rotation under ~/.chatsearch/logs/, and provides the
// viewer behind `chatsearch logs`.
//
// The stdio MCP server must never write to stdout or stderr, so it logs to
// the file only (see SetupMCPMode).
package logging
