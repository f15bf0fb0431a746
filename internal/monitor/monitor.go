// Package monitor drives both sensor orchestrators from a single poll loop.
package monitor

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/airocat/internal/logic"
	"github.com/sweeney/airocat/internal/mqtt"
	"github.com/sweeney/airocat/internal/observable"
	"github.com/sweeney/airocat/internal/sensor"
	"github.com/sweeney/airocat/internal/status"
)

// DefaultSetupRetry is the delay between failed sensor setup attempts.
const DefaultSetupRetry = time.Second

// Climate is the climate orchestrator as seen by the loop.
type Climate interface {
	Setup() error
	Read() (bool, error)
	Publish() int
	HasData() bool
	Stabilized() bool
	Humidity() float32
	Temperature() float32
	Values() []observable.Publishable
	Announce(d sensor.Discoverer) int
}

// Gas is the gas orchestrator as seen by the loop.
type Gas interface {
	Setup() error
	Read() bool
	Publish() int
	SetEnvironment(humidity, temperature float32)
	Fault() logic.Fault
	Values() []observable.Publishable
	Announce(d sensor.Discoverer) int
}

// Options configures a Monitor.
type Options struct {
	Climate Climate
	Gas     Gas
	Client  mqtt.Client

	// Discoverer receives discovery records on every connect. Nil disables
	// discovery.
	Discoverer sensor.Discoverer

	// Tracker, if set, is updated after every cycle.
	Tracker *status.Tracker

	SetupRetry time.Duration
	Log        *log.Entry
}

// Report summarises one cycle.
type Report struct {
	Connected   bool
	Reconnected bool // connected again after a previous connection was lost
	Announced   int
	ClimateRead bool
	GasRead     bool
	Sent        int
}

// Monitor runs the poll cycle. It is not safe for concurrent use.
type Monitor struct {
	climate    Climate
	gas        Gas
	client     mqtt.Client
	discoverer sensor.Discoverer
	tracker    *status.Tracker
	retry      time.Duration
	logger     *log.Entry

	connected     bool
	everConnected bool
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	if opts.SetupRetry <= 0 {
		opts.SetupRetry = DefaultSetupRetry
	}
	if opts.Log == nil {
		opts.Log = log.WithField("component", "monitor")
	}
	return &Monitor{
		climate:    opts.Climate,
		gas:        opts.Gas,
		client:     opts.Client,
		discoverer: opts.Discoverer,
		tracker:    opts.Tracker,
		retry:      opts.SetupRetry,
		logger:     opts.Log,
	}
}

// Setup brings up the climate sensor and then the gas sensor, retrying each
// with a fixed delay until it succeeds or ctx is done.
func (m *Monitor) Setup(ctx context.Context) error {
	if err := m.setupOne(ctx, "bme680", m.climate.Setup); err != nil {
		return err
	}
	return m.setupOne(ctx, "ccs811", m.gas.Setup)
}

func (m *Monitor) setupOne(ctx context.Context, name string, setup func() error) error {
	for attempt := 1; ; attempt++ {
		err := setup()
		if err == nil {
			m.logger.WithField("sensor", name).Info("sensor ready")
			return nil
		}
		m.logger.WithFields(log.Fields{"sensor": name, "attempt": attempt}).WithError(err).
			Warn("sensor setup failed")

		select {
		case <-ctx.Done():
			return fmt.Errorf("setup %s: %w", name, ctx.Err())
		case <-time.After(m.retry):
		}
	}
}

// Cycle runs one pass of the loop: connectivity check, discovery on a new
// connection, climate read and publish, compensation push, gas read and
// publish. It fails only when ctx is done while connecting.
func (m *Monitor) Cycle(ctx context.Context) (Report, error) {
	var r Report

	if !m.client.Connected() {
		m.setConnected(false)
		if err := m.client.Connect(ctx); err != nil {
			return r, fmt.Errorf("connect: %w", err)
		}
	}
	r.Connected = m.client.Connected()
	if r.Connected && !m.connected {
		r.Reconnected = m.everConnected
		m.everConnected = true
		r.Announced = m.announce()
	}
	m.setConnected(r.Connected)

	read, err := m.climate.Read()
	if err != nil {
		m.logger.WithError(err).Warn("climate read failed")
	} else if !read {
		m.logger.Debug("climate: no data")
	}
	r.ClimateRead = read
	r.Sent += m.climate.Publish()

	// Compensation always uses the latest reading, published or not.
	if err == nil && m.climate.HasData() {
		m.gas.SetEnvironment(m.climate.Humidity(), m.climate.Temperature())
	}

	r.GasRead = m.gas.Read()
	if !r.GasRead {
		m.logger.Debug("gas: no data")
	}
	r.Sent += m.gas.Publish()

	m.updateTracker()
	return r, nil
}

func (m *Monitor) announce() int {
	if m.discoverer == nil {
		return 0
	}
	n := m.climate.Announce(m.discoverer) + m.gas.Announce(m.discoverer)
	m.logger.WithField("records", n).Info("discovery announced")
	return n
}

func (m *Monitor) setConnected(connected bool) {
	m.connected = connected
	if m.tracker != nil {
		m.tracker.SetMQTTConnected(connected)
	}
}

func (m *Monitor) updateTracker() {
	if m.tracker == nil {
		return
	}
	m.tracker.Update(
		status.ReadingsFrom(m.climate.Values(), m.gas.Values()),
		m.climate.Stabilized(),
		string(m.gas.Fault()),
	)
}

// Connected reports the connectivity seen by the last cycle.
func (m *Monitor) Connected() bool {
	return m.connected
}
