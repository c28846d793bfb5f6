// Package service provides the business logic layer for BOTLOOP.
//
// GameService is what every transport (REST, websocket, MCP) talks to. It owns no state of its
// own: sessions live in a SessionManager and levels come from a ConfigManager, both supplied
// by the caller. Each session wraps one engine.GameEngine, and all engine access goes through
// the service lock.
//
// Usage:
//
//	sessions := session.NewManager()
//	levels, _ := config.NewManager("levels")
//	svc := service.NewGameService(sessions, levels)
//
//	info, err := svc.CreateSession(ctx, "stage-2")
//	if err != nil {
//		return err
//	}
//	svc.LoadTape(ctx, info.ID, "F F L")
//	result, err := svc.Step(ctx, info.ID, 100) // result.Cleared == true
//
// Step runs the simulation as fast as it can; Tick feeds it wall-clock time so that it steps
// at the animation cadence. Level generation and the brute-force solver are exposed here too
// so that remote clients can use them.
package service
