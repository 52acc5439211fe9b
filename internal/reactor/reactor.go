// Package reactor maps runtime events to the work they require. Handle is
// pure; the schedulers execute the returned effects.
package reactor

import "github.com/MrSnakeDoc/georoute/internal/domain"

// EventKind names what happened.
type EventKind int

const (
	Startup EventKind = iota
	Tick
	ManualRefresh
	FieldChanged
)

func (k EventKind) String() string {
	switch k {
	case Startup:
		return "startup"
	case Tick:
		return "tick"
	case ManualRefresh:
		return "manual_refresh"
	case FieldChanged:
		return "field_changed"
	default:
		return "unknown"
	}
}

// Event is one input to Handle. Field is set for FieldChanged only.
type Event struct {
	Kind  EventKind
	Field domain.Field
}

// Changed builds a FieldChanged event.
func Changed(f domain.Field) Event {
	return Event{Kind: FieldChanged, Field: f}
}

// Effect is work the caller must perform.
type Effect int

const (
	// Bootstrap commits the bundled list if nothing was committed yet
	Bootstrap Effect = iota
	// RefreshGeo runs one ingestion cycle
	RefreshGeo
	// RefreshCredential re-parses the proxy string into the auth responder
	RefreshCredential
	// Recompile rebuilds the routing policy from persisted state
	Recompile
)

func (e Effect) String() string {
	switch e {
	case Bootstrap:
		return "bootstrap"
	case RefreshGeo:
		return "refresh_geo"
	case RefreshCredential:
		return "refresh_credential"
	case Recompile:
		return "recompile"
	default:
		return "unknown"
	}
}

// State is what the reactor remembers between events.
type State struct {
	Started bool
	Events  uint64 // handled so far
}

// Handle returns the next state and the effects event requires, in
// execution order and without duplicates. A committed geo set only ever
// leads to Recompile, so ingestion cannot retrigger itself.
func Handle(s State, ev Event) (State, []Effect) {
	s.Events++

	switch ev.Kind {
	case Startup:
		if s.Started {
			return s, nil
		}
		s.Started = true
		return s, []Effect{Bootstrap, RefreshCredential, Recompile, RefreshGeo}
	case Tick, ManualRefresh:
		return s, []Effect{RefreshGeo}
	case FieldChanged:
		return s, fieldEffects(ev.Field)
	}
	return s, nil
}

func fieldEffects(f domain.Field) []Effect {
	switch f {
	case domain.FieldProxyConfig:
		return []Effect{RefreshCredential, Recompile}
	case domain.FieldGeoDomains, domain.FieldEnabled, domain.FieldUserSites:
		return []Effect{Recompile}
	default:
		// readiness, validator, timestamp and progress never change routing
		return nil
	}
}
