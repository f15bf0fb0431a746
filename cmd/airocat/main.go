// Command airocat polls a BME680 and a CCS811 and publishes air-quality
// readings to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sweeney/airocat/internal/bme680"
	"github.com/sweeney/airocat/internal/bsec"
	"github.com/sweeney/airocat/internal/ccs811"
	"github.com/sweeney/airocat/internal/config"
	"github.com/sweeney/airocat/internal/gpio"
	"github.com/sweeney/airocat/internal/i2cbus"
	"github.com/sweeney/airocat/internal/logic"
	"github.com/sweeney/airocat/internal/metrics"
	"github.com/sweeney/airocat/internal/monitor"
	"github.com/sweeney/airocat/internal/mqtt"
	"github.com/sweeney/airocat/internal/nvstate"
	"github.com/sweeney/airocat/internal/observable"
	"github.com/sweeney/airocat/internal/sensor"
	"github.com/sweeney/airocat/internal/status"
	"github.com/sweeney/airocat/internal/web"
)

const printTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Config file (default: search ./airocat.yaml, ~/.config/airocat, /etc/airocat)")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" disables)`)
	poll := flag.Duration("poll", 0, "Main loop interval (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (overrides config)")
	printReadings := flag.Bool("print", false, "Print one reading from each sensor and exit")

	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	applyOverrides(cfg, *broker, *httpAddr, *poll, *logLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	log.SetLevel(cfg.Level())

	if err := run(cfg, *printReadings); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the config file, falling back to defaults when no file
// exists on the search path.
func loadConfig(explicit string) (*config.Config, error) {
	path, err := config.FindConfig(explicit)
	if errors.Is(err, config.ErrNotFound) {
		log.Info("no config file found, using defaults")
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	log.WithField("path", path).Info("loading config")
	return config.Load(path)
}

// applyOverrides lets non-empty flags win over the config file.
func applyOverrides(cfg *config.Config, broker, httpAddr string, poll time.Duration, logLevel string) {
	if broker != "" {
		cfg.MQTT.Broker = broker
	}
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTP = ""
	default:
		cfg.HTTP = httpAddr
	}
	if poll > 0 {
		cfg.Poll = poll
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func clientID(cfg *config.Config) string {
	if cfg.MQTT.ClientID != "" {
		return cfg.MQTT.ClientID
	}
	return fmt.Sprintf("airocat-%04x", os.Getpid()&0xffff)
}

func run(cfg *config.Config, printOnly bool) error {
	// Open both sensors on the shared bus
	bmeBus, err := i2cbus.Open(cfg.I2C.Device, cfg.BME680.Address)
	if err != nil {
		return fmt.Errorf("open bme680: %w", err)
	}
	defer bmeBus.Close()

	gasBus, err := i2cbus.Open(cfg.I2C.Device, cfg.CCS811.Address)
	if err != nil {
		return fmt.Errorf("open ccs811: %w", err)
	}

	var wake gpio.Output
	if cfg.CCS811.WakePin >= 0 {
		line, err := gpio.NewRealOutput(cfg.CCS811.WakePin, 1)
		if err != nil {
			gasBus.Close()
			return fmt.Errorf("init wake line: %w", err)
		}
		wake = line
	}
	gasDev := ccs811.New(gasBus, wake)
	defer gasDev.Close()

	engine := bsec.NewPassthrough(bme680.New(bmeBus), time.Now)
	engine.InitialStabilization = cfg.BME680.InitialStabilization
	engine.PowerOnRunIn = cfg.BME680.PowerOnRunIn

	var store nvstate.Store = nvstate.Discard{}
	if cfg.BME680.Persist {
		fs, err := nvstate.NewFileStore(afero.NewOsFs(), cfg.BME680.StateFile, bsec.MaxStateBlobSize)
		if err != nil {
			return fmt.Errorf("init state store: %w", err)
		}
		store = fs
	}

	topics := mqtt.Topics{Base: cfg.MQTT.BaseTopic}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:            cfg.Poll.Milliseconds(),
		HeartbeatMs:       cfg.Heartbeat.Milliseconds(),
		ClimateIntervalMs: cfg.BME680.PublishInterval.Milliseconds(),
		GasIntervalMs:     cfg.CCS811.PublishInterval.Milliseconds(),
		Broker:            cfg.MQTT.Broker,
		BaseTopic:         cfg.MQTT.BaseTopic,
		HTTPPort:          cfg.HTTP,
		Discovery:         cfg.Discovery.Enabled,
		Persist:           cfg.BME680.Persist,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	will, err := mqtt.FormatSystemPayload(mqtt.SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return fmt.Errorf("format will: %w", err)
	}
	client := mqtt.NewRealClient(mqtt.Options{
		Broker:        cfg.MQTT.Broker,
		ClientID:      clientID(cfg),
		Username:      cfg.MQTT.Username,
		Password:      cfg.MQTT.Password,
		RetryInterval: cfg.MQTT.ConnectRetry,
		WillTopic:     topics.System(),
		WillPayload:   will,
	})
	defer client.Close()
	recorder := status.NewRecorder(client, tracker)

	climate := sensor.NewClimate(sensor.ClimateOptions{
		Engine:               engine,
		Transport:            recorder,
		Topics:               topics,
		Store:                store,
		PublishInterval:      cfg.BME680.PublishInterval,
		StabilizationTimeout: cfg.BME680.StabilizationTimeout,
		StateSaveInterval:    cfg.BME680.StateSaveInterval,
		Retain:               cfg.MQTT.Retain,
	})
	gas := sensor.NewGas(sensor.GasOptions{
		Sensor:          gasDev,
		Transport:       recorder,
		Topics:          topics,
		PublishInterval: cfg.CCS811.PublishInterval,
		Retain:          cfg.MQTT.Retain,
	})

	opts := monitor.Options{
		Climate:    climate,
		Gas:        gas,
		Client:     client,
		Tracker:    tracker,
		SetupRetry: cfg.SetupRetry,
	}
	if cfg.Discovery.Enabled {
		opts.Discoverer = mqtt.NewDiscovery(recorder, cfg.Discovery.Prefix, cfg.Discovery.Node)
	}
	mon := monitor.New(opts)

	// Both the context and sigCh observe the signals: the context aborts
	// blocking setup and connects, sigCh drives the orderly shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := mon.Setup(ctx); err != nil {
		if ctx.Err() != nil {
			log.Info("interrupted during sensor setup")
			return nil
		}
		return err
	}

	if printOnly {
		return printReadingsOnce(ctx, os.Stdout, climate, gas, gasDev, cfg.Poll, printTimeout)
	}

	if err := client.Connect(ctx); err != nil {
		log.Info("interrupted while connecting")
		return nil
	}
	tracker.SetMQTTConnected(client.Connected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := mqtt.PublishSystem(recorder, topics.System(), startupEvent); err != nil {
		log.WithError(err).Warn("failed to publish startup event")
	} else {
		log.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, metrics.Handler(metrics.NewCollector(tracker)))
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("http server error")
			}
		}()
		defer srv.Shutdown(context.Background())
		log.WithField("addr", cfg.HTTP).Info("http status server listening")
	}

	log.WithFields(log.Fields{
		"poll":      cfg.Poll,
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.Heartbeat,
		"discovery": cfg.Discovery.Enabled,
	}).Info("started")

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	loop := loopConfig{
		topics:    topics,
		heartbeat: cfg.Heartbeat,
	}
	return runLoop(ctx, mon, recorder, tracker, loop, time.Now, ticker.C, sigCh)
}

// cycler runs one poll pass.
type cycler interface {
	Cycle(ctx context.Context) (monitor.Report, error)
}

type loopConfig struct {
	topics    mqtt.Topics
	heartbeat time.Duration
}

func runLoop(ctx context.Context, mon cycler, publisher mqtt.Publisher, tracker *status.Tracker, cfg loopConfig, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	heartbeat := logic.NewHeartbeat(cfg.heartbeat, startTime)
	system := cfg.topics.System()

	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if tracker != nil {
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := mqtt.PublishSystem(publisher, system, event); err != nil {
				log.WithError(err).Warn("failed to publish shutdown event")
			} else {
				log.Info("published shutdown event")
			}
			return nil

		case <-tick:
			report, err := mon.Cycle(ctx)
			if err != nil {
				// Only a cancelled connect fails a cycle; the signal follows.
				log.WithError(err).Debug("cycle aborted")
				continue
			}
			t := now()

			if report.Reconnected {
				log.Info("broker connection restored")
				event := mqtt.SystemEvent{Timestamp: t, Event: "RECONNECTED"}
				if err := mqtt.PublishSystem(publisher, system, event); err != nil {
					log.WithError(err).Warn("failed to publish reconnect event")
				}
			}

			if hbData := heartbeat.Check(t); hbData != nil {
				log.WithField("uptime", hbData.Uptime).Info("heartbeat")
				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := mqtt.PublishSystem(publisher, system, hbEvent); err != nil {
					log.WithError(err).Warn("heartbeat publish error")
				}
			}
		}
	}
}

// printClimate is the part of the climate orchestrator print mode needs.
type printClimate interface {
	Read() (bool, error)
	HasData() bool
	Values() []observable.Publishable
}

// printGas is the part of the gas orchestrator print mode needs.
type printGas interface {
	Read() bool
}

// gasResults exposes the last result held by the gas driver.
type gasResults interface {
	CO2() uint16
	TVOC() uint16
}

// printReadingsOnce polls until both sensors produced a reading or timeout
// elapses, then writes what it has to w.
func printReadingsOnce(ctx context.Context, w io.Writer, climate printClimate, gas printGas, results gasResults, poll, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	gasReady := false
	for {
		if _, err := climate.Read(); err != nil {
			log.WithError(err).Warn("climate read failed")
		}
		if gas.Read() {
			gasReady = true
		}
		if climate.HasData() && gasReady {
			break
		}

		select {
		case <-ctx.Done():
			return nil
		case <-deadline:
			log.Warn("timed out waiting for readings")
			return writeReadings(w, climate, gasReady, results)
		case <-ticker.C:
		}
	}
	return writeReadings(w, climate, gasReady, results)
}

func writeReadings(w io.Writer, climate printClimate, gasReady bool, results gasResults) error {
	if climate.HasData() {
		for _, v := range climate.Values() {
			if _, err := fmt.Fprintf(w, "%s: %s\n", v.Caption(), v.String()); err != nil {
				return err
			}
		}
	} else {
		fmt.Fprintln(w, "BME680: no data")
	}
	if gasReady {
		_, err := fmt.Fprintf(w, "CO2, ppm: %d\nTVOC, ppb: %d\n", results.CO2(), results.TVOC())
		return err
	}
	_, err := fmt.Fprintln(w, "CCS811: no data")
	return err
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
