// Package levelgen generates random levels and brute-forces existing ones.
//
// Generate carves a maze (Carve), places a start (PlaceStart) and then looks for a goal that a
// random tape of the requested capacity provably reaches, so every generated level is solvable.
// Bruteforce and BruteStats estimate how hard a board is by counting how many random tapes it
// takes to clear it.
//
// All searches are bounded and return ErrSearchExhausted when their budget runs out. They are
// synchronous and use the *rand.Rand passed in their options, so a fixed seed reproduces a run.
package levelgen
