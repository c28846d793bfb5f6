// Package engine provides the core game logic for BOTLOOP.
//
// A level is a square Board of walls and floor with one start tile and one goal. The player
// fills a fixed-length Tape of commands; once run, the bot executes the tape in an endless
// loop until it stands on the goal.
//
// Core Types:
//
// Simulation owns a Board, its Tape and the Bot and implements the step function
// (RunCommand) together with the Program and Run transitions. Animator drives a Simulation
// from wall-clock ticks and interpolates the bot between steps for renderers. GameEngine
// wraps both with a level config, lifecycle checks and a step history, and is what the
// services and transports use.
//
// Usage:
//
//	e, err := engine.NewEngine("stage-2", engine.StageConfig(engine.Stages[1]))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	_ = e.LoadTape([]engine.Command{engine.Forward, engine.Forward, engine.TurnLeft})
//	_ = e.Run()
//	_, _ = e.Step(20)
//	fmt.Println(e.IsCleared())
//
// Coordinates:
//
// Row 0 is the bottom row of the board, so the last line of a layout is y = 0. Orientation 0
// faces +x, 1 faces +y (up the screen), 2 faces -x and 3 faces -y. Turning left adds one.
package engine
