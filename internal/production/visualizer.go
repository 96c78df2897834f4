package production

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/comalice/blendx/internal/core"
)

// DefaultVisualizer renders graph snapshots as Graphviz DOT or JSON.
type DefaultVisualizer struct{}

// ExportDOT generates Graphviz DOT source for the snapshot: one cluster per
// layer, edges labelled with input weights, current states filled and
// fading nodes drawn in orange.
func (v *DefaultVisualizer) ExportDOT(snap core.GraphSnapshot) string {
	var buf bytes.Buffer
	buf.WriteString(`digraph BlendGraph {
  rankdir=LR;
  node [shape=box, fontsize=10, style=rounded];
  edge [fontsize=9];
`)
	root := snap.GraphID
	if root == "" {
		root = "root"
	}
	rootStyle := ""
	if !snap.Playing {
		rootStyle = " fontcolor=gray"
	}
	fmt.Fprintf(&buf, `  %s [label="%s\nspeed=%.2f" shape=ellipse%s];`+"\n", quote("root"), escape(root), snap.Speed, rootStyle)

	for _, l := range snap.Layers {
		layerID := fmt.Sprintf("layer/%d", l.Index)
		fmt.Fprintf(&buf, "  subgraph cluster_%d {\n", l.Index)
		fmt.Fprintf(&buf, "    label=%s;\n", quote(l.Name))
		fmt.Fprintf(&buf, `    %s [label="%s\n%s" shape=ellipse%s];`+"\n",
			quote(layerID), escape(l.Name), weightLabel(l.Weight, l.TargetWeight, l.FadeSpeed), fadeStyle(l.FadeSpeed))
		for _, s := range l.States {
			style := fadeStyle(s.FadeSpeed)
			if s.Key == l.Current {
				style += ` style="rounded,filled" fillcolor=lightgreen`
			}
			if !s.Playing {
				style += " fontcolor=gray"
			}
			fmt.Fprintf(&buf, `    %s [label="%s\n%s\nt=%.2f/%.2f"%s];`+"\n",
				quote(layerID+"/"+s.Key), escape(s.Key), weightLabel(s.Weight, s.TargetWeight, s.FadeSpeed), s.Time, s.Length, style)
		}
		buf.WriteString("  }\n")
	}

	for _, l := range snap.Layers {
		layerID := fmt.Sprintf("layer/%d", l.Index)
		fmt.Fprintf(&buf, "  %s -> %s [label=\"%.2f\"];\n", quote("root"), quote(layerID), l.Weight)
		for _, s := range l.States {
			if s.Weight == 0 && s.FadeSpeed == 0 {
				continue
			}
			fmt.Fprintf(&buf, "  %s -> %s [label=\"%.2f\"];\n", quote(layerID), quote(layerID+"/"+s.Key), s.Weight)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

// ExportJSON serializes the snapshot to indented JSON.
func (v *DefaultVisualizer) ExportJSON(snap core.GraphSnapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

func weightLabel(weight, target, speed float64) string {
	if speed == 0 {
		return fmt.Sprintf("w=%.2f", weight)
	}
	return fmt.Sprintf("w=%.2f->%.2f", weight, target)
}

func fadeStyle(speed float64) string {
	if speed == 0 {
		return ""
	}
	return " color=orange"
}

func escape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`)
}

func quote(s string) string { return `"` + escape(s) + `"` }
