package nvstate

// Memory is an in-memory Store for tests.
type Memory struct {
	// Blob is the stored state; nil means nothing stored.
	Blob []byte

	// SaveError, if set, is returned by Save.
	SaveError error

	Saves  int
	Erases int
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load() ([]byte, error) {
	if m.Blob == nil {
		return nil, ErrNoState
	}
	return append([]byte(nil), m.Blob...), nil
}

func (m *Memory) Save(blob []byte) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.Saves++
	m.Blob = append([]byte(nil), blob...)
	return nil
}

func (m *Memory) Erase() error {
	m.Erases++
	m.Blob = nil
	return nil
}
