package bsec

// Fake is a scripted Engine for tests.
type Fake struct {
	// NewData is returned by Run.
	NewData bool

	// Out is returned by Outputs.
	Out Outputs

	// Algorithm and Sensor are returned by Status.
	Algorithm Status
	Sensor    Status

	// Blob is returned by State.
	Blob []byte

	// Loaded records every SetState call.
	Loaded [][]byte

	// SetStateStatus, if not OK, becomes the algorithm status after
	// SetState.
	SetStateStatus Status

	// Subscribed and Rate record the last UpdateSubscription call.
	Subscribed []VirtualSensor
	Rate       SampleRate

	Begun bool
	Runs  int
}

// NewFake creates a Fake that reports OK and no data.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Begin() {
	f.Begun = true
}

func (f *Fake) UpdateSubscription(sensors []VirtualSensor, rate SampleRate) {
	f.Subscribed = append([]VirtualSensor(nil), sensors...)
	f.Rate = rate
}

func (f *Fake) Run() bool {
	f.Runs++
	return f.NewData
}

func (f *Fake) Outputs() Outputs {
	return f.Out
}

func (f *Fake) Status() (algorithm, sensor Status) {
	return f.Algorithm, f.Sensor
}

func (f *Fake) State() []byte {
	return f.Blob
}

func (f *Fake) SetState(state []byte) {
	f.Loaded = append(f.Loaded, append([]byte(nil), state...))
	if f.SetStateStatus != OK {
		f.Algorithm = f.SetStateStatus
	}
}
