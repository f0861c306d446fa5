// Command hrm-bridge receives ANT+ heart rate broadcasts from a USB stick
// and publishes decoded samples to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/hrm-bridge/internal/ant"
	"github.com/sweeney/hrm-bridge/internal/ant/usb"
	"github.com/sweeney/hrm-bridge/internal/config"
	"github.com/sweeney/hrm-bridge/internal/hrm"
	"github.com/sweeney/hrm-bridge/internal/led"
	"github.com/sweeney/hrm-bridge/internal/mqtt"
	"github.com/sweeney/hrm-bridge/internal/status"
	"github.com/sweeney/hrm-bridge/internal/web"
)

// options is the merged flag + config-file view the daemon runs with.
type options struct {
	serialDevice string
	broker       string
	wsBroker     string
	httpAddr     string
	heartbeat    time.Duration
	deviceNumber uint16
	transType    uint8
	ledPin       int
	scan         bool
}

func main() {
	configPath := flag.String("config", "", "YAML config file (flags override its values)")
	serialDev := flag.String("serial", "/dev/ttyUSB0", "ANT stick serial device")
	broker := flag.String("broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	device := flag.Uint("device", 0, "Device number to pair with (0 = first monitor found)")
	transType := flag.Uint("trans-type", 0, "Transmission type (0 = wildcard)")
	ledPin := flag.Int("led-pin", led.DefaultPin, "BCM pin for the status LED (0 to disable)")
	httpAddr := flag.String("http", ":80", "HTTP status address (empty to disable)")
	wsBroker := flag.String("ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	scan := flag.Bool("scan", false, "Wait for the first reading, print it, and exit")

	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	opts := options{
		serialDevice: *serialDev,
		broker:       *broker,
		wsBroker:     *wsBroker,
		httpAddr:     *httpAddr,
		heartbeat:    *heartbeat,
		deviceNumber: uint16(*device),
		transType:    uint8(*transType),
		ledPin:       *ledPin,
		scan:         *scan,
	}

	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("fatal: %v", err)
		}
		applyConfig(&opts, cfg, set)
	}

	opts.wsBroker = resolveWSBroker(opts.wsBroker, opts.broker)
	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// applyConfig fills in file values for everything not set explicitly on
// the command line.
func applyConfig(opts *options, cfg *config.Config, set map[string]bool) {
	b := cfg.Bridge
	if !set["serial"] && b.SerialDevice != "" {
		opts.serialDevice = b.SerialDevice
	}
	if !set["broker"] && b.Broker != "" {
		opts.broker = b.Broker
	}
	if !set["ws-broker"] && b.WSBroker != "" {
		opts.wsBroker = b.WSBroker
	}
	if !set["http"] && b.HTTPAddr != "" {
		opts.httpAddr = b.HTTPAddr
	}
	if !set["heartbeat"] && b.HeartbeatMs > 0 {
		opts.heartbeat = time.Duration(b.HeartbeatMs) * time.Millisecond
	}
	if !set["device"] && b.DeviceNumber != 0 {
		opts.deviceNumber = b.DeviceNumber
	}
	if !set["trans-type"] && b.TransmissionType != 0 {
		opts.transType = b.TransmissionType
	}
	if !set["led-pin"] && b.LEDPin != 0 {
		opts.ledPin = b.LEDPin
	}
}

func run(opts options) error {
	// Initialize the ANT stick
	node, err := usb.Open(opts.serialDevice)
	if err != nil {
		return fmt.Errorf("open ant stick: %w", err)
	}
	defer node.Close()

	// Scan mode
	if opts.scan {
		return runScan(node, opts)
	}

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(opts.broker)
	if err != nil {
		return fmt.Errorf("connect mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		HeartbeatMs:      opts.heartbeat.Milliseconds(),
		Broker:           opts.broker,
		HTTPPort:         opts.httpAddr,
		WSBroker:         opts.wsBroker,
		SerialDevice:     opts.serialDevice,
		DeviceNumber:     opts.deviceNumber,
		TransmissionType: opts.transType,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Initialize the status LED
	var ledDriver led.Driver
	if opts.ledPin > 0 {
		d, err := led.NewRealDriver(opts.ledPin)
		if err != nil {
			log.Printf("led disabled: %v", err)
		} else {
			ledDriver = d
			defer d.Close()
		}
	}

	// Open the heart rate session
	session, err := hrm.Open(node, hrm.Config{
		DeviceNumber:     opts.deviceNumber,
		TransmissionType: opts.transType,
		Callbacks: hrm.Callbacks{
			DeviceFound: func(number uint16, transType uint8) {
				log.Printf("found monitor #%d (type %d)", number, transType)
				tracker.SetDevice(number, transType)
			},
			HeartRateData: func(rate uint8, beats uint32, rrMs int) {
				tracker.UpdateSample(rate, true, beats, rrMs)
				sample := mqtt.Sample{
					Timestamp:    time.Now(),
					HeartRate:    rate,
					BeatCount:    beats,
					RRIntervalMs: rrMs,
				}
				if err := publisher.Publish(sample); err != nil {
					log.Printf("publish error: %v", err)
					// Don't crash on publish failure
				}
			},
		},
	})
	if err != nil {
		return fmt.Errorf("open heart rate session: %w", err)
	}
	defer session.Close()

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	} else {
		log.Printf("published startup event")
	}

	// Start HTTP status server
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	log.Printf("started: serial=%s broker=%s device=%d heartbeat=%v",
		opts.serialDevice, opts.broker, opts.deviceNumber, opts.heartbeat)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(session, publisher, publisher, tracker, ledDriver, opts.heartbeat, time.Now, ticker.C, sigCh)
}

func runLoop(session *hrm.HeartRate, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, ledDriver led.Driver, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
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
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
				snap := tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := publisher.PublishSystem(event); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case <-tick:
			t := now()
			state := session.ChannelState()

			if tracker != nil {
				tracker.SetChannelState(state.String())
				if mqttStatus != nil {
					tracker.SetMQTTConnected(mqttStatus.IsConnected())
				}
			}

			if ledDriver != nil {
				if err := ledDriver.Set(ledModeFor(state)); err != nil {
					log.Printf("led error: %v", err)
				}
			}

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						tracker.SetNetwork(net)
					}
					snap := tracker.Snapshot()
					log.Printf("heartbeat: uptime=%v beats=%d channel=%s",
						snap.Uptime().Truncate(time.Second), snap.BeatCount, state)
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					log.Printf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

// runScan opens a session, waits for the first reading, prints it, and
// exits. Useful for checking stick and strap without a broker around.
func runScan(node ant.Node, opts options) error {
	session, err := hrm.Open(node, hrm.Config{
		DeviceNumber:     opts.deviceNumber,
		TransmissionType: opts.transType,
	})
	if err != nil {
		return fmt.Errorf("open heart rate session: %w", err)
	}
	defer session.Close()

	for {
		if rate, ok := session.HeartRate(); ok {
			if dev, found := session.DetectedDevice(); found {
				fmt.Printf("monitor #%d (type %d): %d bpm\n", dev.Number, dev.TransmissionType, rate)
			} else {
				fmt.Printf("%d bpm\n", rate)
			}
			return nil
		}
		if session.ChannelState() == ant.ChannelClosed {
			return fmt.Errorf("search timed out, no monitor found")
		}
		time.Sleep(250 * time.Millisecond)
	}
}

// ledModeFor maps channel state to the LED pattern.
func ledModeFor(state ant.ChannelState) led.Mode {
	switch state {
	case ant.ChannelSearching:
		return led.ModeBlink
	case ant.ChannelTracking:
		return led.ModeSolid
	}
	return led.ModeOff
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

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse --broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
