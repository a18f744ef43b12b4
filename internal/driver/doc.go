// Package driver runs the sieve engine in the background and wires it to
// its consumers.
//
// The engine itself is synchronous: Run blocks, and pausing means
// cancelling the context passed to it. The driver owns that context. It
// exposes the control surface of an interactive front end (start, pause,
// resume, change the delay, watch a number) and makes sure at most one
// engine run is ever in flight.
//
// ARCHITECTURE:
//
//	control call ──► ctl lock ──► cancel active run ──► wait ──► start run
//	                                                              │
//	engine.Run ──progress──► eventQueue ──► dispatcher ──► throttle ──► OnProgress
//	    │
//	    └──result──► journal ──► refresh watched verdict ──► OnRunFinished
//
// Progress funcs run under the engine lock, so the driver's progress func
// only enqueues. Delivery happens on a separate dispatcher goroutine, and
// intermediate progress is throttled to Options.ProgressHz. A final 1.0 is
// always delivered.
//
// Every finished run and every verdict check is written to the optional
// Journal. Journal failures are logged and collected; Close returns them.
package driver
