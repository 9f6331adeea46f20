// Package session models the game-session aggregate.
//
// A session tracks one battle: battle round, active turn and phase, command
// points per side, the deployed unit roster, and stratagem usage. All of it is
// derived by folding the session's timeline events in sequence order; nothing
// mutates a snapshot directly.
//
// The package holds:
//   - command deciders for battle flow (round, turn, phase, CP, notes),
//   - fold logic for replaying the full timeline, including reversal events,
//   - and the state constraints other deciders read before accepting commands.
//
// Event payloads carry enough prior state to compute their own inverse, which
// is what makes the uniform revert engine possible.
package session
