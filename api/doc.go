// Package api provides the HTTP REST API for BOTLOOP sessions and levels.
//
// Endpoints:
//
// Sessions:
//   - POST /api/sessions - Create a session, optionally {"level_id": "stage-3"}
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get a session
//   - DELETE /api/sessions/{id} - Delete a session
//
// Tape (PROGRAMMING only):
//   - PUT /api/sessions/{id}/tape - Load a whole tape, {"program": "F F L"}
//   - DELETE /api/sessions/{id}/tape - Set every slot to none
//   - POST /api/sessions/{id}/command - Write at the cursor and advance, {"command": "forward"}
//   - POST /api/sessions/{id}/cursor - Move the cursor, {"slot": 2}
//   - PUT /api/sessions/{id}/slots/{slot} - Write one slot
//
// Bot:
//   - POST /api/sessions/{id}/program - Back to PROGRAMMING at the start pose
//   - POST /api/sessions/{id}/run - Start the loop
//   - POST /api/sessions/{id}/stop - Abort a running bot
//   - POST /api/sessions/{id}/step - Execute {"count": N} loop steps
//   - POST /api/sessions/{id}/tick - Advance the animation clock by {"ms": 16}
//   - POST /api/sessions/{id}/speed - {"on": true} for the fast tick rate
//   - POST /api/sessions/{id}/level - Switch level, {"level_id": "stage-4"}
//   - POST /api/sessions/{id}/next - Advance to the next stage
//   - GET /api/sessions/{id}/state - Current snapshot
//   - GET /api/sessions/{id}/history - Step records (?page=1&limit=20&order=desc)
//
// Levels:
//   - GET /api/levels - List built-in, file and generated levels
//   - POST /api/levels - Save a level, {"id": "mine", "name": ..., "capacity": 2, "layout": [...]}
//   - GET /api/levels/{name} - Get one level
//   - POST /api/levels/generate - Generate a level, {"capacity": 3, "size": 9, "seed": 7}
//   - GET /api/levels/{name}/solve - Brute-force a random solving tape (?seed=&attempts=&steps=)
//   - GET /api/levels/{name}/stats - Aggregate several brute-force runs (?runs=10)
//
// Other:
//   - GET /ws?session={id} - WebSocket feed of state updates
//   - GET /health
//
// Errors are JSON objects with an "error" field. Unknown sessions and levels are 404,
// malformed input is 400 and edits outside PROGRAMMING are 409.
//
// Usage:
//
//	server := api.NewServer(gameService, hub)
//	go server.RunClock(ctx, api.FrameInterval)
//	http.ListenAndServe(":8080", server)
package api
