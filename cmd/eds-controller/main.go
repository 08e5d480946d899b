// Command eds-controller runs the EDS field-test rig: scheduled and solar-noon
// SCC measurements, environmental gating and the manual override switch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/reef-pi/rpi/i2c"

	"github.com/sweeney/eds-controller/internal/config"
	"github.com/sweeney/eds-controller/internal/controller"
	"github.com/sweeney/eds-controller/internal/gpio"
	"github.com/sweeney/eds-controller/internal/logic"
	"github.com/sweeney/eds-controller/internal/mqtt"
	"github.com/sweeney/eds-controller/internal/record"
	"github.com/sweeney/eds-controller/internal/sensor"
	"github.com/sweeney/eds-controller/internal/sequencer"
	"github.com/sweeney/eds-controller/internal/status"
	"github.com/sweeney/eds-controller/internal/web"
)

type options struct {
	configFile  string
	envFile     string
	httpAddr    string
	broker      string
	dataDir     string
	systemClock bool
	printState  bool
	writeConfig bool
}

func main() {
	var o options
	flag.StringVar(&o.configFile, "config", "/etc/eds-controller/config.yaml", "Rig parameter file (YAML)")
	flag.StringVar(&o.envFile, "env", "/etc/eds-controller/eds.env", "Environment file with site and sink settings")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (overrides MQTT_BROKER)")
	flag.StringVar(&o.dataDir, "data-dir", "", "Directory for CSV data and the event log (overrides EDS_DATA_DIR)")
	flag.BoolVar(&o.systemClock, "system-clock", false, "Use the host clock instead of the PCF8523 RTC")
	flag.BoolVar(&o.printState, "print-state", false, "Print clock, environment and solar offset, then exit")
	flag.BoolVar(&o.writeConfig, "write-config", false, "Write the effective configuration to -config and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	store, err := config.Load(o.configFile, o.envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.writeConfig {
		return store.Save(o.configFile)
	}
	rig, err := config.NewRig(store)
	if err != nil {
		return err
	}
	ep := config.LoadEndpoints()
	if o.broker != "" {
		ep.MQTTBroker = o.broker
	}
	if o.dataDir != "" {
		ep.DataDir = o.dataDir
	}

	// Initialize GPIO
	io, err := gpio.NewRealIO(gpio.RealConfig{
		Chip:      gpio.DefaultChip,
		Outputs:   rig.OutputPins(),
		Inputs:    []int{rig.ManualSwitchPin},
		Debounce:  rig.Debounce,
		ActiveLow: rig.RelayActiveLow,
	})
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer io.Close()

	// Initialize I2C devices
	bus, err := i2c.New()
	if err != nil {
		return fmt.Errorf("init i2c: %w", err)
	}
	defer bus.Close()

	zone := sensor.ZoneFor(rig.GMTOffset)
	var clock sensor.Clock = sensor.NewPCF8523(bus, sensor.AddrPCF8523, zone)
	if o.systemClock {
		clock = sensor.SystemClock{Location: zone}
	}
	env := sensor.NewAM2315(bus, sensor.AddrAM2315)
	meter := sensor.NewSCCMeter(bus, rig.ADCAddress, io, rig.ADCPin, rig.ShuntOhms, rig.SenseSettle)

	if o.printState {
		return printState(clock, env, rig)
	}

	// Initialize sinks
	csvSink, err := record.NewCSVSink(ep.DataDir)
	if err != nil {
		return err
	}
	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs:    rig.Heartbeat.Milliseconds(),
		ProcessDelayMs: rig.ProcessDelay.Milliseconds(),
		Broker:         ep.MQTTBroker,
		HTTPAddr:       o.httpAddr,
		DataDir:        ep.DataDir,
		Longitude:      rig.Longitude,
		GMTOffset:      rig.GMTOffset,
		Devices:        deviceIDs(rig.Devices),
		Controls:       controlIDs(rig.Controls),
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	sinks := record.Multi{csvSink, tracker, record.Logger{}}

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if ep.MQTTBroker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   ep.MQTTBroker,
			ClientID: ep.MQTTClientID,
			Username: ep.MQTTUsername,
			Password: ep.MQTTPassword,
			Buffer:   ep.MQTTBuffer,
		})
		if err != nil {
			log.Printf("mqtt disabled: %v", err)
		} else {
			publisher, mqttStatus = p, p
			sinks = append(sinks, p)
		}
	}
	if ep.ClickHouseAddr != "" {
		ch, err := record.NewClickHouseSink(ep.ClickHouseAddr, ep.ClickHouseDB, ep.ClickHouseUser, ep.ClickHousePass)
		if err != nil {
			log.Printf("clickhouse disabled: %v", err)
		} else {
			sinks = append(sinks, ch)
		}
	}
	defer sinks.Close()

	publishSystem(publisher, tracker, mqttStatus, "STARTUP", "")

	// Start HTTP status server
	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	ctrl := controller.New(sequencer.Hardware{
		IO:    io,
		Meter: meter,
		Env:   env,
		Clock: clock,
		Sink:  sinks,
	}, rig, tracker, time.Now())
	ctrl.OnHeartbeat = func(hb logic.HeartbeatData) {
		log.Printf("heartbeat: uptime=%v scheduled=%d skipped=%d noon=%d manual=%d faults=%d",
			hb.Uptime, hb.Counts.Scheduled, hb.Counts.Skipped, hb.Counts.Noon, hb.Counts.Manual, hb.Counts.Faults)
		if net := readNetworkInfo(); net != nil {
			tracker.SetNetwork(net)
		}
		publishSystem(publisher, tracker, mqttStatus, "HEARTBEAT", "")
	}
	ctrl.OnIteration = func() {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		daemon.SdNotify(false, daemon.SdNotifyWatchdog)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	reason := make(chan string, 1)
	go func() {
		s := <-sigCh
		log.Printf("received %v, shutting down", s)
		reason <- signalName(s)
		cancel()
	}()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Printf("sd_notify: %v", err)
	} else if ok {
		log.Printf("notified systemd")
	}
	log.Printf("started: devices=%v controls=%v solar_offset=%.2fmin data=%s broker=%q",
		deviceIDs(rig.Devices), controlIDs(rig.Controls),
		logic.SolarOffset(rig.GMTOffset, time.Now(), rig.Longitude, rig.Latitude, rig.EquationOfTime),
		ep.DataDir, ep.MQTTBroker)

	err = ctrl.Run(ctx)
	daemon.SdNotify(false, daemon.SdNotifyStopping)
	if !errors.Is(err, context.Canceled) {
		return err
	}

	why := "UNKNOWN"
	select {
	case why = <-reason:
	default:
	}
	publishSystem(publisher, tracker, mqttStatus, "SHUTDOWN", why)
	return nil
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
func publishSystem(p mqtt.Publisher, tracker *status.Tracker, conn mqtt.ConnectionStatus, event, reason string) {
	if p == nil {
		return
	}
	if conn != nil {
		tracker.SetMQTTConnected(conn.IsConnected())
	}
	snap := tracker.Snapshot()
	err := p.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	}
}

func printState(clock sensor.Clock, env sensor.Environment, rig *config.Rig) error {
	now, err := clock.Now()
	if err != nil {
		return fmt.Errorf("read clock: %w", err)
	}
	offset := logic.SolarOffset(rig.GMTOffset, now, rig.Longitude, rig.Latitude, rig.EquationOfTime)
	fmt.Printf("Clock: %s\n", now.Format(time.RFC3339))
	fmt.Printf("Solar offset: %.2f min, solar minute: %.2f\n", offset, logic.SolarMinute(now, offset))

	r, err := env.Sample()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	fmt.Printf("Temp: %.1f C, Humid: %.1f %%\n", r.Temperature, r.Humidity)
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func deviceIDs(devs []logic.Device) []int {
	ids := make([]int, len(devs))
	for i, d := range devs {
		ids[i] = d.ID
	}
	return ids
}

func controlIDs(ctrls []logic.ControlChannel) []int {
	ids := make([]int, len(ctrls))
	for i, c := range ctrls {
		ids[i] = c.ID
	}
	return ids
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
