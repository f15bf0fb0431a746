package mqtt

import (
	"context"
	"strings"
)

// Message is one publish call recorded by FakeClient.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// FakeClient records published messages for test assertions.
type FakeClient struct {
	// Messages contains every successfully published message.
	Messages []Message

	// Attempts counts every Publish call, successful or not.
	Attempts int

	// Fail, if set, makes every Publish return false.
	Fail bool

	// IsConnected controls the return value of Connected.
	IsConnected bool

	// ConnectError, if set, is returned by Connect and leaves the client
	// disconnected. Otherwise Connect marks the client connected.
	ConnectError error

	// ConnectCalls counts Connect calls.
	ConnectCalls int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeClient creates a disconnected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// Connected reports the scripted connection state.
func (f *FakeClient) Connected() bool {
	return f.IsConnected
}

// Connect marks the client connected unless ConnectError is set.
func (f *FakeClient) Connect(ctx context.Context) error {
	f.ConnectCalls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.ConnectError != nil {
		return f.ConnectError
	}
	f.IsConnected = true
	return nil
}

// Publish records the message unless Fail is set.
func (f *FakeClient) Publish(topic string, payload []byte, retain bool) bool {
	f.Attempts++
	if f.Fail {
		return false
	}
	f.Messages = append(f.Messages, Message{Topic: topic, Payload: payload, Retained: retain})
	return true
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.Closed = true
	return nil
}

// MessagesFor returns the recorded messages for one topic.
func (f *FakeClient) MessagesFor(topic string) []Message {
	var out []Message
	for _, m := range f.Messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// MessagesWithPrefix returns the recorded messages whose topic starts with prefix.
func (f *FakeClient) MessagesWithPrefix(prefix string) []Message {
	var out []Message
	for _, m := range f.Messages {
		if strings.HasPrefix(m.Topic, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears recorded messages and scripted behaviour.
func (f *FakeClient) Reset() {
	f.Messages = nil
	f.Attempts = 0
	f.Fail = false
	f.IsConnected = false
	f.ConnectError = nil
	f.ConnectCalls = 0
	f.Closed = false
}
