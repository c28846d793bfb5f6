// Package websocket pushes BOTLOOP session snapshots to browsers and other watchers.
//
// A client connects to /ws?session=<id> and from then on receives a JSON Message every time
// the session changes, whether through the REST API or the server clock that animates
// running bots:
//
//	{"session_id": "ab12", "event": "state_update", "game_state": {...}}
//
// Client input is ignored; commands go through the REST API or MCP.
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	hub.ServeWS(w, r, sessionID)
//	hub.BroadcastToSession(sessionID, state)
//
// Broadcasts to sessions nobody watches are dropped before they are queued.
package websocket
