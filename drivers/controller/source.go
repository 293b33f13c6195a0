package controller

import (
	"log"
)

// Selector picks the input source for each polling tick. A connected USB pad
// takes precedence over the GPIO inputs.
type Selector struct {
	Sources []Source // in order of preference
	Log     *log.Logger

	current Source
}

func NewSelector(sources ...Source) *Selector {
	return &Selector{Sources: sources, Log: log.Default()}
}

// Poll selects a source and returns its state. If no source is connected the
// neutral state is returned.
func (s *Selector) Poll() (State, Source) {
	var sel Source
	for _, src := range s.Sources {
		if src.Connected() {
			sel = src
			break
		}
	}

	if sel != s.current {
		if s.Log != nil {
			s.Log.Printf("controller: input source %s", sourceName(sel))
		}
		s.current = sel
	}

	if sel == nil {
		return Neutral, nil
	}
	return sel.State(), sel
}

// Current returns the source selected by the last Poll.
func (s *Selector) Current() Source {
	return s.current
}

func sourceName(s Source) string {
	if s == nil {
		return "none"
	}
	return s.Name()
}
