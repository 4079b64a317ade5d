package vault

import (
	"context"
	"time"
)

// EventKind describes what happened to a credential.
type EventKind string

const (
	EventSaved   EventKind = "saved"
	EventDeleted EventKind = "deleted"
)

// Event notifies subscribers that the stored collection changed.
type Event struct {
	Kind  EventKind `json:"kind"`
	ID    string    `json:"id"`
	Owner string    `json:"owner"`
	At    time.Time `json:"at"`
}

// subscriberBuffer bounds each subscription; events beyond it are dropped.
const subscriberBuffer = 16

type subscriber struct {
	ch chan Event
}

// Subscribe returns a channel receiving every change made through v.
// The channel is closed once ctx is done. A subscriber that falls behind
// by more than a few events misses them; writers never block on it.
func (v *Vault) Subscribe(ctx context.Context) <-chan Event {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	v.subMu.Lock()
	v.subs[sub] = struct{}{}
	v.subMu.Unlock()

	go func() {
		<-ctx.Done()
		v.subMu.Lock()
		delete(v.subs, sub)
		close(sub.ch)
		v.subMu.Unlock()
	}()

	return sub.ch
}

func (v *Vault) publish(ev Event) {
	v.subMu.Lock()
	defer v.subMu.Unlock()

	for sub := range v.subs {
		select {
		case sub.ch <- ev:
		default:
			v.logger.Warn("dropping vault event for slow subscriber", "kind", ev.Kind, "id", ev.ID)
		}
	}
}
