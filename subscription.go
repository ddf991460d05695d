package mqttiot

import "sync"

// MessageHandler is invoked for every inbound PUBLISH matching a
// subscription's topic filter.
type MessageHandler func(msg *Message)

// subscriptionEntry is the per-connection record of one active
// subscription: the filter and QoS the client asked for, the callback
// inbound dispatch invokes, and the bookkeeping needed to remove it
// safely while a callback may still be executing concurrently.
type subscriptionEntry struct {
	mu sync.Mutex

	filter          string
	qos             byte
	packetID        uint16 // the SUBSCRIBE packet id that added this record
	references      int
	unsubscribed    bool
	callback        MessageHandler
}

// MatchSubscriber lets TopicMatcher.Unsubscribe find this entry by
// identity even though subscriptionEntry embeds a sync.Mutex and is not
// comparable with ==.
func (s *subscriptionEntry) MatchSubscriber(other any) bool {
	o, ok := other.(*subscriptionEntry)
	return ok && o == s
}

func (s *subscriptionEntry) addRef() {
	s.mu.Lock()
	s.references++
	s.mu.Unlock()
}

// release drops one reference, returning true if the entry is now both
// unsubscribed and unreferenced and so safe to forget entirely.
func (s *subscriptionEntry) release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.references--
	return s.unsubscribed && s.references <= 0
}

func (s *subscriptionEntry) markUnsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unsubscribed = true
	return s.references <= 0
}

// subscriptionTable is the connection's guarded set of active
// subscriptions: a TopicMatcher for inbound dispatch by topic, plus an
// index by SUBSCRIBE packet id so a timed-out or rejected SUBSCRIBE can
// remove exactly the records it provisionally added.
type subscriptionTable struct {
	mu      sync.Mutex
	matcher *TopicMatcher
	byFilter map[string]*subscriptionEntry
	byPacketID map[uint16][]*subscriptionEntry
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{
		matcher:    NewTopicMatcher(),
		byFilter:   make(map[string]*subscriptionEntry),
		byPacketID: make(map[uint16][]*subscriptionEntry),
	}
}

// Add registers a new subscription record under sub_mutex, immediately
// after a SUBSCRIBE was successfully serialized but before the send was
// scheduled, as the component design requires.
func (t *subscriptionTable) Add(filter string, qos byte, packetID uint16, cb MessageHandler) *subscriptionEntry {
	entry := &subscriptionEntry{filter: filter, qos: qos, packetID: packetID, callback: cb}

	t.mu.Lock()
	defer t.mu.Unlock()

	if old, ok := t.byFilter[filter]; ok {
		_ = t.matcher.Unsubscribe(old.filter, old)
	}
	t.byFilter[filter] = entry
	t.byPacketID[packetID] = append(t.byPacketID[packetID], entry)
	_ = t.matcher.Subscribe(filter, entry)

	return entry
}

// byPacketIDSnapshot returns the subscription records added by one
// SUBSCRIBE, in the order Add registered them — the order SUBACK's
// per-filter return codes correlate against.
func (t *subscriptionTable) byPacketIDSnapshot(packetID uint16) []*subscriptionEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*subscriptionEntry{}, t.byPacketID[packetID]...)
}

// forget drops a subscription record entirely once it is unsubscribed
// and no inbound dispatch still holds a reference to it.
func (t *subscriptionTable) forget(e *subscriptionEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.byFilter[e.filter]; ok && cur == e {
		delete(t.byFilter, e.filter)
	}
	entries := t.byPacketID[e.packetID]
	for i, cand := range entries {
		if cand == e {
			t.byPacketID[e.packetID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
}

// RemoveByPacketID removes every subscription record associated with a
// SUBSCRIBE packet id — used when a waited-on SUBSCRIBE times out. Only
// the records added under packetID are removed; Clear is what removes
// every record at once.
func (t *subscriptionTable) RemoveByPacketID(packetID uint16) {
	t.mu.Lock()
	entries := t.byPacketID[packetID]
	delete(t.byPacketID, packetID)
	t.mu.Unlock()

	for _, e := range entries {
		t.removeEntry(e)
	}
}

// RemoveByFilter removes the subscription registered for filter, used by
// Unsubscribe before the UNSUBSCRIBE is sent.
func (t *subscriptionTable) RemoveByFilter(filter string) *subscriptionEntry {
	t.mu.Lock()
	entry, ok := t.byFilter[filter]
	if ok {
		delete(t.byFilter, filter)
	}
	t.mu.Unlock()

	if !ok {
		return nil
	}
	t.removeEntry(entry)
	return entry
}

func (t *subscriptionTable) removeEntry(e *subscriptionEntry) {
	t.mu.Lock()
	if cur, ok := t.byFilter[e.filter]; ok && cur == e {
		delete(t.byFilter, e.filter)
	}
	_ = t.matcher.Unsubscribe(e.filter, e)
	t.mu.Unlock()
	e.markUnsubscribed()
}

// Match returns the subscription entries whose filter matches topic,
// each with its reference count pre-incremented so the caller can invoke
// callbacks outside any lock and release them afterward.
func (t *subscriptionTable) Match(topic string) []*subscriptionEntry {
	t.mu.Lock()
	matches := t.matcher.Match(topic)
	entries := make([]*subscriptionEntry, 0, len(matches))
	for _, m := range matches {
		e, ok := m.(*subscriptionEntry)
		if !ok {
			continue
		}
		e.addRef()
		entries = append(entries, e)
	}
	t.mu.Unlock()
	return entries
}

// Snapshot returns the currently active filter/QoS pairs, used to record
// previous subscriptions before teardown.
func (t *subscriptionTable) Snapshot() []Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := make([]Subscription, 0, len(t.byFilter))
	for filter, e := range t.byFilter {
		subs = append(subs, Subscription{TopicFilter: filter, QoS: e.qos})
	}
	return subs
}

// Clear marks every active subscription unsubscribed, freeing any that
// have no in-flight callback reference outstanding; one still running a
// callback survives until that callback's release call drops it.
func (t *subscriptionTable) Clear() {
	t.mu.Lock()
	entries := make([]*subscriptionEntry, 0, len(t.byFilter))
	for _, e := range t.byFilter {
		entries = append(entries, e)
	}
	t.byFilter = make(map[string]*subscriptionEntry)
	t.byPacketID = make(map[uint16][]*subscriptionEntry)
	t.mu.Unlock()

	for _, e := range entries {
		_ = t.matcher.Unsubscribe(e.filter, e)
		e.markUnsubscribed()
	}
}

// Len returns the number of active subscriptions.
func (t *subscriptionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byFilter)
}
