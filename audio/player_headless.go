//go:build headless

package audio

// Player is the headless stand-in for the device player: it pumps the
// source on a timer so playback position still advances.
type Player struct {
	*Pump
}

func NewPlayer(src Source, opts Options) (*Player, error) {
	return &Player{Pump: NewPump(src, opts)}, nil
}
