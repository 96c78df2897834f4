package core

import (
	"fmt"
)

// Command is a deferred graph mutation, applied on the goroutine that owns
// the graph.
type Command struct {
	Name  string
	Apply func(g *Graph) error
}

func lookupState(g *Graph, layer int, key any) (Layer, State, error) {
	if layer < 0 || layer >= g.LayerCount() {
		return Layer{}, State{}, fmt.Errorf("layer %d: %w", layer, ErrUnknownState)
	}
	l := g.Layer(layer)
	s, ok := l.GetState(key)
	if !ok {
		return Layer{}, State{}, fmt.Errorf("layer %d: state %s: %w", layer, keyString(key), ErrUnknownState)
	}
	return l, s, nil
}

// PlayCommand plays the state registered under key.
func PlayCommand(layer int, key any) Command {
	return Command{
		Name: fmt.Sprintf("play %s", keyString(key)),
		Apply: func(g *Graph) error {
			l, s, err := lookupState(g, layer, key)
			if err != nil {
				return err
			}
			l.Play(s)
			return nil
		},
	}
}

// CrossFadeCommand cross-fades to the state registered under key.
func CrossFadeCommand(layer int, key any, duration float64, mode FadeMode) Command {
	return Command{
		Name: fmt.Sprintf("crossfade %s", keyString(key)),
		Apply: func(g *Graph) error {
			l, s, err := lookupState(g, layer, key)
			if err != nil {
				return err
			}
			_, err = l.CrossFade(s, duration, mode)
			return err
		},
	}
}

// StopCommand stops a layer.
func StopCommand(layer int) Command {
	return Command{
		Name: fmt.Sprintf("stop layer %d", layer),
		Apply: func(g *Graph) error {
			if layer < 0 || layer >= g.LayerCount() {
				return fmt.Errorf("layer %d: %w", layer, ErrUnknownState)
			}
			g.Layer(layer).Stop()
			return nil
		},
	}
}

// SetSpeedCommand sets the graph speed.
func SetSpeedCommand(speed float64) Command {
	return Command{
		Name: "set speed",
		Apply: func(g *Graph) error {
			g.SetSpeed(speed)
			return nil
		},
	}
}
