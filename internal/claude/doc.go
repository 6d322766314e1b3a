// ABOUTME: Package documentation for the claude package
// ABOUTME: Explains the client, the continuation driver, and response extraction

// Package claude talks to the Anthropic API on behalf of the document bot.
//
// # Content model
//
// Responses arrive as an ordered sequence of tagged content blocks. The
// package models them as an explicit union:
//
//   - text blocks carry assistant prose
//   - bash_code_execution_tool_result blocks nest an execution result whose
//     items may reference generated files
//   - anything else decodes as an unknown block, is ignored by extraction,
//     and round-trips verbatim when fed back to the service
//
// # Continuation
//
// A response whose stop reason is pause_turn means the service needs another
// round to finish using its tools. The Driver feeds the paused content back
// as an assistant turn and re-invokes, carrying the latest container ID
// forward, until the turn completes or the invocation budget (default 10)
// is exhausted.
//
// # Extraction
//
// Extract normalizes a final response into plain text, an ordered list of
// artifact file IDs, and the continuation-context token to persist on the
// session.
package claude
