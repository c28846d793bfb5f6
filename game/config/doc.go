// Package config resolves BOTLOOP level ids to level configurations.
//
// Three sources are consulted, in order:
//
//   - the built-in stages (stage-1 .. stage-10, bonus-1, bonus-2), always present
//   - the level directory: <id>.json files holding an engine.LevelConfig (or a bare packed
//     board string), and *.hcl files holding any number of level blocks
//   - levels registered in memory, such as freshly generated ones
//
// An HCL level file looks like:
//
//	level "corridor" {
//	  name        = "Corridor"
//	  description = "Straight ahead"
//	  capacity    = 1
//	  layout = [
//	    "#####",
//	    "#   #",
//	    "#R G#",
//	    "#   #",
//	    "#####",
//	  ]
//	}
//
// Directory levels are cached after the first read; RefreshCache drops the cache.
// SaveConfig always writes JSON.
package config
