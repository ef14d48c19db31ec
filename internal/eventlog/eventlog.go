// Package eventlog implements the append-only event log (C10/§4.10):
// stable deterministic event ids so replayed emissions under idempotent
// retries collapse to the same id, a monotone per-append sequence number,
// and delivery via polling (HTTP) or push (WebSocket).
//
// Grounded on the teacher's core/events typed-event-plus-emit pattern and
// rpc/ws.go's subscribe-with-backlog-then-tail semantics.
package eventlog

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"swapgraph/internal/actor"
	"swapgraph/internal/signing"
	"swapgraph/internal/store"
)

// Log appends events to a StateStore and assigns stable ids.
type Log struct {
	store  *store.StateStore
	signer *signing.Signer
	hub    *Hub
}

// New constructs a Log. signer may be nil, in which case events are
// appended unsigned (useful for tests).
func New(st *store.StateStore, signer *signing.Signer) *Log {
	return &Log{store: st, signer: signer, hub: newHub()}
}

// Subscribe registers a live WebSocket-style subscriber for newly appended
// events (push delivery). Pair with Since(cursor, 0) for the backlog phase.
func (l *Log) Subscribe(buffer int) (<-chan interface{}, func()) {
	return l.hub.Subscribe(buffer)
}

// StableEventID derives a deterministic id from (type, correlationID,
// dedupKey) so repeated emissions under replay collapse to the same id.
func StableEventID(eventType, correlationID, dedupKey string) string {
	sum := sha256.Sum256([]byte("event|" + eventType + "|" + correlationID + "|" + dedupKey))
	return "evt_" + hex.EncodeToString(sum[:])[:20]
}

// Append appends one event inside an already-open Document mutation (callers
// emit from within a domain service's store.Update closure so the event is
// part of the same atomic write as the state change it describes). It draws
// the event's sequence number from the store's NextEventSeq itself, so it
// must be called inside the Update closure that d belongs to.
func (l *Log) Append(d *store.Document, eventType, correlationID, dedupKey string, actorCtx actor.Actor, payload map[string]interface{}) store.Event {
	seq := l.store.NextEventSeq()
	evt := store.Event{
		Seq:           seq,
		EventID:       StableEventID(eventType, correlationID, dedupKey),
		Type:          eventType,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: correlationID,
		Actor:         actorCtx,
		Payload:       payload,
	}
	if l.signer != nil {
		if sig, err := l.signer.Sign(envelopeForSigning(evt)); err == nil {
			evt.Signature = sig
		}
	}
	d.Events = append(d.Events, evt)
	l.hub.publish(evt)
	return evt
}

func envelopeForSigning(e store.Event) map[string]interface{} {
	return map[string]interface{}{
		"event_id":       e.EventID,
		"type":           e.Type,
		"correlation_id": e.CorrelationID,
		"payload":        e.Payload,
	}
}

// Since returns events with Seq > afterSeq, in append order, up to limit (0
// = unbounded). Used for both HTTP polling and a WebSocket's backlog phase.
func (l *Log) Since(afterSeq uint64, limit int) []store.Event {
	var out []store.Event
	l.store.View(func(d *store.Document) {
		for _, evt := range d.Events {
			if evt.Seq <= afterSeq {
				continue
			}
			out = append(out, evt)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	})
	return out
}

// Tail returns the sequence number of the most recently appended event, 0
// if the log is empty.
func (l *Log) Tail() uint64 {
	var last uint64
	l.store.View(func(d *store.Document) {
		if n := len(d.Events); n > 0 {
			last = d.Events[n-1].Seq
		}
	})
	return last
}
