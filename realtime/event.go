package realtime

import (
	"sort"

	"github.com/comalice/blendx/internal/core"
)

// CommandWithMeta adds sequencing metadata for deterministic ordering.
type CommandWithMeta struct {
	Command     core.Command
	SequenceNum uint64
	Priority    int
}

// sortCommands orders commands by priority, highest first, then by
// sequence number.
func sortCommands(cmds []CommandWithMeta) {
	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].Priority != cmds[j].Priority {
			return cmds[i].Priority > cmds[j].Priority
		}
		return cmds[i].SequenceNum < cmds[j].SequenceNum
	})
}
