// Package session keeps BOTLOOP game sessions in memory.
//
// Each session owns one engine.GameEngine and is identified by a short id, a random
// 4-character hex string unless the caller picks one. Ids are case-insensitive.
//
// Sessions live for the lifetime of the process. Idle ones are dropped by RunCleanup,
// which reports every expired id so watchers can be disconnected:
//
//	manager := session.NewManager()
//	go manager.RunCleanup(ctx, time.Minute, 24*time.Hour, hub.CloseSession)
//
//	sess, err := manager.Create("", "stage-1", config)
//	if err != nil {
//		return err
//	}
package session
