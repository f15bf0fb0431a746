package status

import "time"

// Publisher is the publish side of the transport.
type Publisher interface {
	Publish(topic string, payload []byte, retain bool) bool
}

// Recorder wraps a Publisher and records every attempt in a Tracker.
type Recorder struct {
	next    Publisher
	tracker *Tracker
	now     func() time.Time
}

// NewRecorder creates a Recorder in front of next.
func NewRecorder(next Publisher, tracker *Tracker) *Recorder {
	return &Recorder{
		next:    next,
		tracker: tracker,
		now:     time.Now,
	}
}

// Publish forwards to the wrapped Publisher and records the outcome.
func (r *Recorder) Publish(topic string, payload []byte, retain bool) bool {
	ok := r.next.Publish(topic, payload, retain)
	r.tracker.RecordPublish(Publication{
		Time:     r.now(),
		Topic:    topic,
		Bytes:    len(payload),
		Retained: retain,
		OK:       ok,
	})
	return ok
}
