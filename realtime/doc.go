// Package realtime drives blend graphs from a fixed-rate tick loop.
//
// A Runtime owns one core.Graph and ticks it on its own goroutine. Other
// goroutines never touch the graph directly: they queue commands with Send
// or SendWithPriority, or run a function on the tick goroutine with Call.
// Queued commands are applied at the start of the next tick, before the
// graph's early pass.
//
// # Example Usage
//
//	g := core.NewGraph(host)
//	rt := realtime.NewRuntime(g, realtime.Config{
//		TickRate: 16667 * time.Microsecond, // 60 FPS
//	})
//	rt.Start(ctx)
//	rt.Send(core.PlayCommand(0, "walk"))
//
// # Command Ordering Guarantees
//
// Commands are ordered deterministically using:
//  1. Priority (higher priority applied first)
//  2. Sequence number (FIFO for same priority)
//  3. Stable sorting (preserves relative order)
//
// Given the same sequence of Send calls between two ticks, the graph sees
// the same sequence of commands regardless of timing.
//
// # Many Graphs
//
// A Director ticks a set of independent graphs once per frame on a shared
// worker pool, with a barrier at the end of the frame. Each graph is still
// ticked by exactly one goroutine at a time, so the single-threaded graph
// model holds.
//
// # Trade-offs
//
// Latency is up to one tick between Send and the command taking effect.
// The time step is fixed: every tick advances the graph by TickRate
// regardless of how late the ticker fired.
package realtime
