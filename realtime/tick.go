package realtime

// processTick applies the queued commands in order, then ticks the graph
// by one fixed step.
func (rt *Runtime) processTick() {
	cmds := rt.collectCommands()
	sortCommands(cmds)
	for _, c := range cmds {
		rt.graph.Apply(c.Command)
	}
	if err := rt.graph.Tick(rt.dt); err != nil {
		rt.logger.Error("tick failed", "graph", rt.graph.ID(), "err", err)
	}
}

// collectCommands atomically retrieves and clears the command batch.
func (rt *Runtime) collectCommands() []CommandWithMeta {
	rt.batchMu.Lock()
	defer rt.batchMu.Unlock()
	cmds := rt.batch
	rt.batch = make([]CommandWithMeta, 0, cap(rt.batch))
	return cmds
}
