package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/mini-market/internal/events"
)

// Random event bounds.
const (
	randomEventMinMagnitude = 0.2
	randomEventMaxMagnitude = 0.8
	randomEventMinDuration  = 6
	randomEventMaxDuration  = 48
)

// InjectEvent validates e, assigns it the next event id and adds it to the
// run. Events may start in the past or future; only the window matters.
func (s *Simulation) InjectEvent(e events.Event) (events.Event, error) {
	if err := e.Validate(); err != nil {
		return events.Event{}, err
	}
	if e.ItemID != "" {
		if _, ok := s.itemIndex[e.ItemID]; !ok {
			return events.Event{}, fmt.Errorf("event targets unknown item %q", e.ItemID)
		}
	}
	if e.Category != "" && !e.Category.Valid() {
		return events.Event{}, fmt.Errorf("event targets unknown category %q", e.Category)
	}
	if e.Description == "" {
		e.Description = events.Describe(e.Type, s.targetName(e))
	}
	e.ID = fmt.Sprintf("evt-%d", s.nextEventID)
	s.nextEventID++
	s.events = append(s.events, e)
	return e, nil
}

// maybeGenerateEvent rolls for a random event starting at tick. Draw order:
// chance, type, item, magnitude, duration.
func (s *Simulation) maybeGenerateEvent(tick int) {
	if len(s.items) == 0 {
		return
	}
	if s.rng.Next() >= s.cfg.RandomEventProbability {
		return
	}
	typ := events.AllTypes[s.rng.Intn(len(events.AllTypes))]
	it := s.items[s.rng.Intn(len(s.items))]
	magnitude := s.rng.InRange(randomEventMinMagnitude, randomEventMaxMagnitude)
	duration := s.rng.IntBetween(randomEventMinDuration, randomEventMaxDuration)

	e, err := s.InjectEvent(events.Event{
		Type:          typ,
		ItemID:        it.ID,
		Magnitude:     magnitude,
		StartTick:     tick,
		DurationTicks: duration,
	})
	if err != nil {
		slog.Error("random event rejected", "type", typ, "item", it.ID, "error", err)
		return
	}
	slog.Debug("random event", "id", e.ID, "type", e.Type, "item", e.ItemID,
		"magnitude", e.Magnitude, "duration", e.DurationTicks, "tick", tick)
}

// applyEvents applies each active event once to every item it targets.
func (s *Simulation) applyEvents(tick int) {
	for _, e := range s.events {
		effect := e.Effect(tick)
		if effect == 0 {
			continue
		}
		for _, it := range s.items {
			if e.Targets(it) {
				events.Apply(e.Type, it, effect)
			}
		}
	}
}

func (s *Simulation) targetName(e events.Event) string {
	switch {
	case e.ItemID != "":
		if it, ok := s.itemIndex[e.ItemID]; ok {
			return it.Name
		}
		return e.ItemID
	case e.Category != "":
		return string(e.Category)
	default:
		return "all goods"
	}
}
