package ccs811

// Environment is one SetEnvironmentalData call recorded by Fake.
type Environment struct {
	Humidity    float32
	Temperature float32
}

// Fake is a scripted Sensor for tests.
type Fake struct {
	// BeginError is returned by Begin.
	BeginError error

	// Ready is returned by DataAvailable.
	Ready bool

	// Faulted is returned by CheckForStatusError.
	Faulted bool

	// ErrorID is returned by ErrorRegister.
	ErrorID uint8

	// ReadResult is returned by ReadAlgorithmResults.
	ReadResult Result

	// Co2 and Tvoc are returned by CO2 and TVOC.
	Co2  uint16
	Tvoc uint16

	// Environments records every SetEnvironmentalData call.
	Environments []Environment

	Begins      int
	ErrorReads  int
	ResultReads int
}

// NewFake creates a Fake with no data ready.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Begin() error {
	f.Begins++
	return f.BeginError
}

func (f *Fake) DataAvailable() bool { return f.Ready }

func (f *Fake) CheckForStatusError() bool { return f.Faulted }

func (f *Fake) ReadAlgorithmResults() Result {
	f.ResultReads++
	return f.ReadResult
}

func (f *Fake) CO2() uint16 { return f.Co2 }

func (f *Fake) TVOC() uint16 { return f.Tvoc }

func (f *Fake) ErrorRegister() uint8 {
	f.ErrorReads++
	return f.ErrorID
}

func (f *Fake) SetEnvironmentalData(humidity, temperature float32) error {
	f.Environments = append(f.Environments, Environment{Humidity: humidity, Temperature: temperature})
	return nil
}

// LastEnvironment returns the most recent compensation input.
func (f *Fake) LastEnvironment() (Environment, bool) {
	if len(f.Environments) == 0 {
		return Environment{}, false
	}
	return f.Environments[len(f.Environments)-1], true
}
