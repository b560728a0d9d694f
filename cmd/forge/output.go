package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/forgecode/forge/pkg/models"
)

// eventPrinter renders the models.AgentEvent stream per --output (spec §6):
// "text" prints a human-readable transcript, "json" emits one JSON object
// per event as it arrives, and "json-streaming" is an alias of "json" kept
// distinct so a future framing change (e.g. SSE) has a flag to attach to
// without overloading "json"'s meaning.
type eventPrinter struct {
	mode string
	w    io.Writer
	enc  *json.Encoder
}

func newEventPrinter(mode string, w io.Writer) *eventPrinter {
	p := &eventPrinter{mode: mode, w: w}
	if mode != "text" {
		p.enc = json.NewEncoder(w)
	}
	return p
}

func (p *eventPrinter) handle(ev models.AgentEvent) {
	if p.mode != "text" {
		_ = p.enc.Encode(ev)
		return
	}

	switch ev.Type {
	case models.AgentEventModelDelta:
		if ev.Stream != nil {
			fmt.Fprint(p.w, ev.Stream.Delta)
		}
	case models.AgentEventToolStarted:
		if ev.Tool != nil {
			fmt.Fprintf(p.w, "\n[tool] %s...\n", ev.Tool.Name)
		}
	case models.AgentEventToolFinished:
		if ev.Tool != nil {
			status := "ok"
			if !ev.Tool.Success {
				status = "error"
			}
			fmt.Fprintf(p.w, "[tool] %s: %s\n", ev.Tool.Name, status)
		}
	case models.AgentEventHookStarted:
		if ev.Hook != nil {
			fmt.Fprintf(p.w, "[hook] %s running\n", ev.Hook.Trigger)
		}
	case models.AgentEventHookFinished:
		if ev.Hook != nil && ev.Hook.Blocked {
			fmt.Fprintf(p.w, "[hook] %s blocked: %s\n", ev.Hook.Trigger, ev.Hook.Output)
		}
	case models.AgentEventRunError:
		if ev.Error != nil {
			fmt.Fprintf(p.w, "\n[error] %s\n", ev.Error.Message)
		}
	case models.AgentEventRunFinished:
		fmt.Fprintln(p.w)
	}
}

func (p *eventPrinter) flush() {}
