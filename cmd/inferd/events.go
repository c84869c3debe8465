package main

import (
	"strings"

	"github.com/rs/zerolog"

	"inferd/internal/session"
)

// logPublisher forwards session lifecycle events to zerolog.
type logPublisher struct {
	log zerolog.Logger
}

func (p logPublisher) Publish(ev session.Event) {
	z := p.log.Info()
	if strings.HasSuffix(ev.Name, "_failed") {
		z = p.log.Warn()
	}
	z = z.Str("event", ev.Name)
	if ev.Model != "" {
		z = z.Str("model", ev.Model)
	}
	for k, v := range ev.Fields {
		z = z.Interface(k, v)
	}
	z.Msg("session")
}
