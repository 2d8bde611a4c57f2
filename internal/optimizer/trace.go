package optimizer

import (
	"github.com/rs/zerolog"
)

// TraceEvent is one diagnostic step recorded during an optimization run.
type TraceEvent struct {
	Stage   string
	Message string
	Attrs   map[string]any
}

// tracer accumulates trace events for one run and mirrors them to the logger.
type tracer struct {
	events []TraceEvent
	logger zerolog.Logger
}

func newTracer(logger zerolog.Logger) *tracer {
	return &tracer{logger: logger}
}

// add records an event. attrs is a flat list of key/value pairs.
func (t *tracer) add(stage, msg string, attrs ...any) {
	ev := TraceEvent{Stage: stage, Message: msg}
	if len(attrs) > 1 {
		ev.Attrs = make(map[string]any, len(attrs)/2)
		for i := 0; i+1 < len(attrs); i += 2 {
			key, ok := attrs[i].(string)
			if !ok {
				continue
			}
			ev.Attrs[key] = attrs[i+1]
		}
	}
	t.events = append(t.events, ev)

	e := t.logger.Debug().Str("stage", stage)
	if len(ev.Attrs) > 0 {
		e = e.Fields(ev.Attrs)
	}
	e.Msg(msg)
}
