// Package observable provides change-tracked values that know whether their
// current reading has reached the broker.
package observable

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of value types an observable can carry.
type Kind interface {
	~float32 | ~float64 | ~uint8 | ~uint16 | ~uint32
}

// Transport is the outbound side of the message bus. Publish reports whether
// the message was handed to the broker.
type Transport interface {
	Publish(topic string, payload []byte, retain bool) bool
}

// Record is the payload published for every value.
type Record[T Kind] struct {
	Caption string `json:"caption"`
	Value   T      `json:"value"`
}

// Encode serializes a record.
func Encode[T Kind](caption string, value T) ([]byte, error) {
	return json.Marshal(Record[T]{Caption: caption, Value: value})
}

// Publishable is the type-independent view of a Value.
type Publishable interface {
	Caption() string
	Topic() string
	Published() bool
	Publish(retain bool) bool
	Float() float64
	String() string
}

// Value is a scalar reading with a caption, a topic and a published flag.
// Not safe for concurrent use.
type Value[T Kind] struct {
	transport Transport
	caption   string
	topic     string
	value     T
	published bool
}

// New creates a value holding initial. It starts unpublished.
func New[T Kind](transport Transport, caption, topic string, initial T) *Value[T] {
	return &Value[T]{
		transport: transport,
		caption:   caption,
		topic:     topic,
		value:     initial,
	}
}

// Set stores x and marks the value unpublished if it differs from the
// current one. Setting an equal value changes nothing.
func (v *Value[T]) Set(x T) {
	if x == v.value {
		return
	}
	v.value = x
	v.published = false
}

// Get returns the current value regardless of its published state.
func (v *Value[T]) Get() T {
	return v.value
}

// Publish makes exactly one transport attempt for the current value and
// marks it published on success. A failure leaves the flag untouched.
func (v *Value[T]) Publish(retain bool) bool {
	payload, err := Encode(v.caption, v.value)
	if err != nil {
		return false
	}
	if !v.transport.Publish(v.topic, payload, retain) {
		return false
	}
	v.published = true
	return true
}

// Published reports whether the current value has been transmitted.
func (v *Value[T]) Published() bool {
	return v.published
}

// Caption returns the human-readable label.
func (v *Value[T]) Caption() string {
	return v.caption
}

// Topic returns the destination topic.
func (v *Value[T]) Topic() string {
	return v.topic
}

// Float returns the value as a float64.
func (v *Value[T]) Float() float64 {
	return float64(v.value)
}

func (v *Value[T]) String() string {
	return fmt.Sprint(v.value)
}
