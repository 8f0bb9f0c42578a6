package object

// EventReceiverGroup holds the receivers subscribed to one event type,
// optionally scoped to a single sender. Removal during an in-progress
// dispatch must not shift entries under an in-flight iteration, so the
// slot is nilled and the group marked dirty; compaction runs once the
// outermost dispatch finishes.
type EventReceiverGroup struct {
	receivers []Object
	inSend    int
	dirty     bool
}

// BeginSendEvent marks the start of a dispatch over this group.
func (g *EventReceiverGroup) BeginSendEvent() { g.inSend++ }

// EndSendEvent marks the end of a dispatch; at the outermost level it
// compacts any holes left by removals during the send.
func (g *EventReceiverGroup) EndSendEvent() {
	if g.inSend > 0 {
		g.inSend--
	}
	if g.inSend == 0 && g.dirty {
		g.compact()
	}
}

// Add subscribes a receiver. Nil receivers and duplicates are ignored;
// the object layer replaces handlers instead of stacking subscriptions.
func (g *EventReceiverGroup) Add(receiver Object) {
	if receiver == nil {
		return
	}
	for _, r := range g.receivers {
		if r == receiver {
			return
		}
	}
	g.receivers = append(g.receivers, receiver)
}

// Remove unsubscribes a receiver, reporting whether it was present.
// During a send the slot is nilled for later compaction; otherwise the
// entry is erased immediately, preserving order.
func (g *EventReceiverGroup) Remove(receiver Object) bool {
	for i, r := range g.receivers {
		if r != receiver {
			continue
		}
		if g.inSend > 0 {
			g.receivers[i] = nil
			g.dirty = true
		} else {
			g.receivers = append(g.receivers[:i], g.receivers[i+1:]...)
		}
		return true
	}
	return false
}

// Sending reports whether a dispatch over this group is in progress.
func (g *EventReceiverGroup) Sending() bool { return g.inSend > 0 }

// Count returns the current slot count, holes included. Dispatch
// snapshots this before iterating so same-pass subscribers are skipped.
func (g *EventReceiverGroup) Count() int { return len(g.receivers) }

// Receiver returns the slot at i; nil marks a hole.
func (g *EventReceiverGroup) Receiver(i int) Object {
	if i < 0 || i >= len(g.receivers) {
		return nil
	}
	return g.receivers[i]
}

func (g *EventReceiverGroup) compact() {
	kept := g.receivers[:0]
	for _, r := range g.receivers {
		if r != nil {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(g.receivers); i++ {
		g.receivers[i] = nil
	}
	g.receivers = kept
	g.dirty = false
}
