package gpio

// FakeOutput is a test double that records driven values.
type FakeOutput struct {
	// Values contains every value passed to SetValue, in order.
	Values []int

	// SetError, if set, will be returned by SetValue()
	SetError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeOutput creates a FakeOutput with no history.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// SetValue records value unless SetError is set.
func (f *FakeOutput) SetValue(value int) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, value)
	return nil
}

// Level returns the last driven value, or -1 if the line was never set.
func (f *FakeOutput) Level() int {
	if len(f.Values) == 0 {
		return -1
	}
	return f.Values[len(f.Values)-1]
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}
