package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tiiuae/quickscan/internal/commands"
	"github.com/tiiuae/quickscan/internal/commsim"
	"github.com/tiiuae/quickscan/internal/config"
	"github.com/tiiuae/quickscan/internal/flymavlink"
	"github.com/tiiuae/quickscan/internal/flysim"
	"github.com/tiiuae/quickscan/internal/logging"
	"github.com/tiiuae/quickscan/internal/mission"
	"github.com/tiiuae/quickscan/internal/observability"
	"github.com/tiiuae/quickscan/internal/radiolink"
	"github.com/tiiuae/quickscan/internal/supervisor"
	"github.com/tiiuae/quickscan/internal/telemetry"
	"github.com/tiiuae/quickscan/internal/types"
	"github.com/tiiuae/quickscan/internal/vehicle"
)

var (
	deafultFlagSet    = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	configPath        = deafultFlagSet.String("config", "", "Path to the YAML configuration file")
	deviceID          = deafultFlagSet.String("device_id", "", "The provisioned device id")
	mqttBrokerAddress = deafultFlagSet.String("mqtt_broker", "", "MQTT broker protocol, address and port")
)

// groundLink delivers ground station commands and carries replies back.
type groundLink interface {
	types.MessageHandler
	Messages() <-chan commands.Inbound
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if err := deafultFlagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}
	if *mqttBrokerAddress != "" {
		cfg.MQTT.Broker = *mqttBrokerAddress
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logFile, err := logging.Setup(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		return err
	}
	defer logFile.Close()

	// attach sigint & sigterm listeners
	terminationSignals := make(chan os.Signal, 1)
	signal.Notify(terminationSignals, syscall.SIGINT, syscall.SIGTERM)

	// quitFunc ends the mission tasks; stopBus ends the plumbing once they are done
	ctx, quitFunc := context.WithCancel(context.Background())
	defer quitFunc()
	busCtx, stopBus := context.WithCancel(context.Background())
	defer stopBus()

	go func() {
		select {
		case <-terminationSignals:
			log.Info("Shutting down..")
			quitFunc()
		case <-ctx.Done():
		}
	}()

	// wait group will make sure all goroutines have time to clean up
	var wg sync.WaitGroup

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "quickscan",
		DeviceID:    cfg.DeviceID,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
	})
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing)

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		return err
	}

	var v vehicle.Vehicle
	if cfg.VehicleSimulated {
		log.Info("Using the simulated vehicle")
		v = flysim.New(vehicle.Position{})
	} else {
		driver, err := flymavlink.New(flymavlink.Config{Connection: cfg.Vehicle.Connection})
		if err != nil {
			return err
		}
		defer driver.Close()
		go driver.Run(busCtx, &wg)
		v = driver
	}

	var link groundLink
	var sim *commsim.Link
	if cfg.CommsSimulated.Enabled {
		feed, err := commsim.Load(cfg.CommsSimulated.CommSimFile)
		if err != nil {
			return err
		}
		sim = commsim.New(feed, cfg.DeviceID)
		link = sim
	} else {
		radio, err := radiolink.Connect(ctx, radiolink.Config{
			DeviceID:   cfg.DeviceID,
			Broker:     cfg.MQTT.Broker,
			PrivateKey: cfg.MQTT.PrivateKey,
			ProjectID:  cfg.MQTT.ProjectID,
			Region:     cfg.MQTT.Region,
			RegistryID: cfg.MQTT.RegistryID,
		})
		if err != nil {
			return err
		}
		link = radio
	}

	bus := types.NewMessageBus(
		make(chan types.Message, 100),
		types.NewLogger(),
		telemetry.New(metrics, cfg.DeviceID),
		link,
	)
	go bus.Run(busCtx, &wg)

	flightMode, hoverMode, err := cfg.FlightModes()
	if err != nil {
		return err
	}

	state := mission.NewState()
	intake := commands.New(state, cfg.DeviceID, bus.Post)
	sup := supervisor.New(supervisor.Config{
		DeviceID:     cfg.DeviceID,
		Altitude:     cfg.Altitude,
		AngularStep:  cfg.DThetaRad,
		FlightMode:   flightMode,
		HoverMode:    hoverMode,
		PollInterval: cfg.PollInterval,
	}, state, v, bus.Post)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return intake.Run(gctx, link.Messages())
	})
	g.Go(func() error {
		// one mission per process
		defer quitFunc()
		return sup.Run(gctx)
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return observability.Serve(gctx, cfg.Metrics.Addr, metrics.Handler())
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	// wait until goroutines have done their cleanup
	log.Info("Waiting for routines to finish...")
	stopBus()
	if sim != nil {
		sim.Wait()
	}
	wg.Wait()
	log.Info("Signing off - BYE")
	return err
}
