// Package mcp exposes BOTLOOP to Model Context Protocol agents.
//
// The Client is a thin proxy: every tool call becomes a request against the REST API
// (see package api), so an agent, a browser watching /ws and curl all see the same sessions.
// Results are rendered as plain text boards with the tape and bot status underneath.
//
// Tools:
//   - create_session, get_session, list_sessions
//   - game_state
//   - load_tape, set_slot, clear_tape
//   - step, control (program, run, stop), step_history
//   - set_level, next_level, list_levels
//   - generate_level, solve_level, level_stats
//   - game_instructions
//
// Every session tool requires session_id.
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//
//	// Stdio mode
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
