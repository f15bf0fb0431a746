package sensor

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/airocat/internal/bsec"
	"github.com/sweeney/airocat/internal/logic"
	"github.com/sweeney/airocat/internal/mqtt"
	"github.com/sweeney/airocat/internal/nvstate"
	"github.com/sweeney/airocat/internal/observable"
)

// Default climate timings.
const (
	DefaultClimatePublishInterval = 60 * time.Second
	DefaultStateSaveInterval      = 6 * time.Hour
)

// ClimateOptions configures a Climate.
type ClimateOptions struct {
	Engine    bsec.Engine
	Transport observable.Transport
	Topics    mqtt.Topics

	// Store persists engine state. Nil disables persistence.
	Store nvstate.Store

	// PublishInterval is the minimum time between flushes.
	PublishInterval time.Duration

	// StabilizationTimeout releases the stabilization-gated values after
	// this long without stabilization. Zero waits forever.
	StabilizationTimeout time.Duration

	// StateSaveInterval is the period between state saves after the first.
	StateSaveInterval time.Duration

	Retain bool
	Now    func() time.Time
	Log    *log.Entry
}

// Climate orchestrates the BME680 fusion engine.
type Climate struct {
	engine  bsec.Engine
	store   nvstate.Store
	retain  bool
	now     func() time.Time
	logger  *log.Entry
	timeout time.Duration

	gate     *logic.Gate
	save     *logic.SaveSchedule
	started  time.Time
	hasData  bool
	released bool

	iaq           *observable.Value[float32]
	co2Eq         *observable.Value[float32]
	breathVocEq   *observable.Value[float32]
	temperature   *observable.Value[float32]
	humidity      *observable.Value[float32]
	pressure      *observable.Value[float32]
	gasResistance *observable.Value[float32]
	gasPercentage *observable.Value[float32]
	initialStab   *observable.Value[logic.Phase]
	powerOnStab   *observable.Value[logic.Phase]

	entries []entry
}

// NewClimate creates a climate orchestrator. Call Setup before Read.
func NewClimate(opts ClimateOptions) *Climate {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = log.WithField("sensor", "bme680")
	}
	if opts.Store == nil {
		opts.Store = nvstate.Discard{}
	}
	if opts.StateSaveInterval == 0 {
		opts.StateSaveInterval = DefaultStateSaveInterval
	}

	now := opts.Now()
	c := &Climate{
		engine:  opts.Engine,
		store:   opts.Store,
		retain:  opts.Retain,
		now:     opts.Now,
		logger:  opts.Log,
		timeout: opts.StabilizationTimeout,
		gate:    logic.NewGate(opts.PublishInterval, now),
		save:    logic.NewSaveSchedule(opts.StateSaveInterval),
		started: now,
	}

	t := opts.Topics
	f32 := func(d descriptor, gated bool) *observable.Value[float32] {
		v := observable.New[float32](opts.Transport, d.caption, t.Value(d.id), 0)
		c.entries = append(c.entries, entry{desc: d, value: v, gated: gated})
		return v
	}
	phase := func(d descriptor) *observable.Value[logic.Phase] {
		v := observable.New(opts.Transport, d.caption, t.Value(d.id), logic.PhaseOngoing)
		c.entries = append(c.entries, entry{desc: d, value: v})
		return v
	}

	c.iaq = f32(descriptor{"iaq", "IAQ", "aqi", ""}, true)
	c.co2Eq = f32(descriptor{"co2Eq", "CO2 (equivalent)", "", ""}, true)
	c.breathVocEq = f32(descriptor{"breathVocEq", "BreathVoc (equivalent)", "", ""}, false)
	c.temperature = f32(descriptor{"temperature", "Temperature, °C", "temperature", "°C"}, false)
	c.humidity = f32(descriptor{"humidity", "Humidity, %", "humidity", "%"}, false)
	c.pressure = f32(descriptor{"pressure", "Pressure, hPa", "pressure", "hPa"}, false)
	c.gasResistance = f32(descriptor{"gasResistance", "Gar (resistance), Ohm", "", "Ohm"}, false)
	c.gasPercentage = f32(descriptor{"gasPercentage", "Gar (percentage), %", "", "%"}, false)
	c.initialStab = phase(descriptor{"initialStabStatus", "Initial stabilization", "", ""})
	c.powerOnStab = phase(descriptor{"powerOnStabStatus", "Power-on stabilization", "", ""})
	return c
}

// Setup starts the engine, subscribes to every output at the low-power
// rate and restores persisted state.
func (c *Climate) Setup() error {
	c.engine.Begin()
	if err := c.verify("init"); err != nil {
		return err
	}

	c.engine.UpdateSubscription(bsec.AllSensors, bsec.SampleRateLP)
	if err := c.verify("update subscription"); err != nil {
		return err
	}

	if err := c.loadState(); err != nil {
		return err
	}
	return nil
}

func (c *Climate) loadState() error {
	blob, err := c.store.Load()
	if errors.Is(err, nvstate.ErrNoState) {
		c.logger.Info("no stored engine state, erasing")
		if err := c.store.Erase(); err != nil {
			c.logger.WithError(err).Warn("erase engine state")
		}
		return nil
	}
	if err != nil {
		c.logger.WithError(err).Warn("read engine state")
		return nil
	}

	c.logger.Info("restoring engine state")
	c.engine.SetState(blob)
	if err := c.verify("load state"); err != nil {
		// Drop the blob so the next attempt starts clean.
		if eraseErr := c.store.Erase(); eraseErr != nil {
			c.logger.WithError(eraseErr).Warn("erase engine state")
		}
		return err
	}
	return nil
}

// verify checks the status codes of the last engine call. Warnings are
// logged; errors are returned.
func (c *Climate) verify(op string) error {
	algorithm, sensor := c.engine.Status()
	if algorithm.IsError() {
		return fmt.Errorf("%s: engine error %d (%v)", op, int8(algorithm), algorithm)
	}
	if algorithm.IsWarning() {
		c.logger.WithField("code", int8(algorithm)).Warnf("%s: engine warning: %v", op, algorithm)
	}
	if sensor.IsError() {
		return fmt.Errorf("%s: sensor error %d (%v)", op, int8(sensor), sensor)
	}
	if sensor.IsWarning() {
		c.logger.WithField("code", int8(sensor)).Warnf("%s: sensor warning: %v", op, sensor)
	}
	return nil
}

// Read pulls the engine outputs when new data is available. It returns
// false with a nil error when no sample was due.
func (c *Climate) Read() (bool, error) {
	if !c.engine.Run() {
		return false, c.verify("run")
	}

	out := c.engine.Outputs()
	c.iaq.Set(out.IAQ)
	c.co2Eq.Set(out.CO2Equivalent)
	c.breathVocEq.Set(out.BreathVOCEquivalent)
	c.temperature.Set(out.Temperature)
	c.humidity.Set(out.Humidity)
	c.pressure.Set(out.Pressure)
	c.gasResistance.Set(out.GasResistance)
	c.gasPercentage.Set(out.GasPercentage)
	c.initialStab.Set(logic.Advance(c.initialStab.Get(), out.StabStatus))
	c.powerOnStab.Set(logic.Advance(c.powerOnStab.Get(), out.RunInStatus))
	c.hasData = true

	c.saveState(out.IAQAccuracy)
	return true, nil
}

func (c *Climate) saveState(accuracy uint8) {
	if !c.save.Due(c.now(), accuracy) {
		return
	}
	blob := c.engine.State()
	if err := c.verify("save state"); err != nil {
		c.logger.WithError(err).Warn("unable to save engine state")
		return
	}
	if err := c.store.Save(blob); err != nil {
		c.logger.WithError(err).Warn("unable to save engine state")
		return
	}
	c.logger.WithField("saves", c.save.Saves()).Info("engine state saved")
}

// Publish flushes unpublished values once per publish interval. IAQ and
// the CO2 equivalent are held back until Stabilized. It returns the number
// of values sent.
func (c *Climate) Publish() int {
	if !c.hasData {
		return 0
	}
	now := c.now()
	if !c.gate.Due(now) {
		return 0
	}

	sent, failed := flush(c.entries, c.retain, c.releaseGated(now))
	if failed > 0 {
		c.logger.WithField("failed", failed).Debug("publish incomplete, will retry")
	}
	return sent
}

// releaseGated reports whether the stabilization-gated values may flush.
func (c *Climate) releaseGated(now time.Time) bool {
	if c.Stabilized() {
		return true
	}
	if c.timeout <= 0 || now.Sub(c.started) < c.timeout {
		return false
	}
	if !c.released {
		c.released = true
		c.logger.WithField("timeout", c.timeout).Warn("engine not stabilized, publishing unstabilized values")
	}
	return true
}

// Stabilized reports whether both warm-up phases have finished.
func (c *Climate) Stabilized() bool {
	return c.initialStab.Get() == logic.PhaseFinished && c.powerOnStab.Get() == logic.PhaseFinished
}

// HasData reports whether at least one sample has been read.
func (c *Climate) HasData() bool {
	return c.hasData
}

// Humidity returns the latest humidity, %RH.
func (c *Climate) Humidity() float32 {
	return c.humidity.Get()
}

// Temperature returns the latest temperature, °C.
func (c *Climate) Temperature() float32 {
	return c.temperature.Get()
}

// Values returns every observable value owned by the climate sensor.
func (c *Climate) Values() []observable.Publishable {
	return values(c.entries)
}

// Announce emits a discovery record per value.
func (c *Climate) Announce(d Discoverer) int {
	return announce(d, c.entries)
}
