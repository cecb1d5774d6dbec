package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"

	"github.com/plateforme/homegarden/internal/config"
	"github.com/plateforme/homegarden/internal/engine"
	"github.com/plateforme/homegarden/internal/hw"
	"github.com/plateforme/homegarden/internal/logstore"
	"github.com/plateforme/homegarden/internal/model"
	"github.com/plateforme/homegarden/internal/nodes"
	"github.com/plateforme/homegarden/internal/pump"
	"github.com/plateforme/homegarden/internal/telemetry"
	"github.com/plateforme/homegarden/internal/web"
	"github.com/plateforme/homegarden/pkg/mqttconn"
)

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func main() {
	// === Config ===
	cfg := struct {
		DataFile     string
		LogDir       string
		NodesFile    string
		NodesDataDir string

		HTTPPort int

		FakeHardware bool
		GPIOChip     string
		PumpPin      int
		SoilDevice   string
		SoilChannel  int
		AirDevice    string

		MQTT mqttconn.Config

		InfluxURL    string
		InfluxToken  string
		InfluxOrg    string
		InfluxBucket string
	}{
		DataFile:     envStr("DATA_FILE", "data.json"),
		LogDir:       envStr("LOG_DIR", "."),
		NodesFile:    envStr("NODES_FILE", "nodes.json"),
		NodesDataDir: envStr("NODES_DATA_DIR", "nodes_data"),

		HTTPPort: envInt("HTTP_PORT", 8080),

		FakeHardware: envBool("FAKE_HARDWARE", false),
		GPIOChip:     envStr("GPIO_CHIP", "gpiochip0"),
		PumpPin:      envInt("PUMP_GPIO_PIN", hw.DefaultPumpPin),
		SoilDevice:   envStr("SOIL_IIO_DEVICE", "/sys/bus/iio/devices/iio:device0"),
		SoilChannel:  envInt("SOIL_IIO_CHANNEL", 0),
		AirDevice:    envStr("AIR_IIO_DEVICE", "/sys/bus/iio/devices/iio:device1"),

		MQTT: mqttconn.Config{
			Host:     envStr("MQTT_HOST", ""),
			Port:     envInt("MQTT_PORT", 1883),
			User:     envStr("MQTT_USER", ""),
			Password: envStr("MQTT_PASSWORD", ""),
			ClientID: envStr("HOSTNAME", "homegarden"),
		},

		InfluxURL:    envStr("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    envStr("INFLUX_ORG", "homegarden"),
		InfluxBucket: envStr("INFLUX_BUCKET", "garden"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === Persistence ===
	persistence, err := config.NewFilePersistence(cfg.DataFile)
	if err != nil {
		log.Fatalf("main: config file: %v", err)
	}
	store := config.NewStore(persistence, config.DefaultTTL)

	logs, err := logstore.New(cfg.LogDir)
	if err != nil {
		log.Fatalf("main: log store: %v", err)
	}

	// === Hardware ===
	var (
		soil hw.SoilSensor
		air  hw.AirSensor
		out  hw.PumpOutput
	)
	if cfg.FakeHardware {
		log.Printf("main: FAKE_HARDWARE set, using scripted sensors and a no-op pump")
		soil = hw.NewFakeSoilSensor(model.Float(50))
		air = hw.NewFakeAirSensor(hw.AirSample{Temperature: 22, Humidity: 50})
		out = &hw.FakePump{}
	} else {
		s, err := hw.NewIIOSoilSensor(cfg.SoilDevice, cfg.SoilChannel)
		if err != nil {
			log.Fatalf("main: soil sensor: %v", err)
		}
		a, err := hw.NewIIOAirSensor(cfg.AirDevice)
		if err != nil {
			log.Fatalf("main: air sensor: %v", err)
		}
		p, err := hw.NewGPIOPump(cfg.GPIOChip, cfg.PumpPin)
		if err != nil {
			log.Fatalf("main: pump output: %v", err)
		}
		soil, air, out = s, a, p
	}
	defer out.Close()

	machine := pump.New(out)

	// === Telemetry (every sink optional) ===
	metrics := telemetry.NewMetrics()

	var pub *telemetry.Publisher
	if cfg.MQTT.Host != "" {
		client, err := mqttconn.Connect(ctx, cfg.MQTT)
		if err != nil {
			log.Printf("main: mqtt unavailable, events not published: %v", err)
		} else {
			pub = telemetry.NewPublisher(client)
		}
	}

	var influxSink *telemetry.InfluxSink
	if cfg.InfluxToken != "" {
		influx := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
		defer influx.Close()
		influxSink = telemetry.NewInfluxSink(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket))
	}

	recorder := telemetry.NewRecorder(pub, influxSink, metrics)

	// === Engine ===
	eng := engine.New(store, soil, air, machine, logs, recorder)

	registry, err := nodes.NewRegistry(cfg.NodesFile, cfg.NodesDataDir, store)
	if err != nil {
		log.Fatalf("main: node registry: %v", err)
	}

	// === HTTP ===
	srv := web.New(eng, store, logs, registry, metrics.Handler())
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("main: HTTP listening on :%d", cfg.HTTPPort)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main: http server error: %v", err)
		}
	}()

	engineDone := make(chan struct{})
	go func() {
		eng.Run(ctx)
		close(engineDone)
	}()

	// === Wait for signal ===
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("main: shutting down...")

	// Stop the loop first: it stops a running watering and forces the pump
	// output off before the process exits.
	cancel()
	<-engineDone

	shCtx, shCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shCancel()
	_ = hs.Shutdown(shCtx)
}
