package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proglyk/ser2mms-gw/internal/config"
	"github.com/proglyk/ser2mms-gw/internal/gwlog"
	"github.com/proglyk/ser2mms-gw/internal/hal"
	"github.com/proglyk/ser2mms-gw/internal/onepps"
	"github.com/proglyk/ser2mms-gw/internal/proto"
	"github.com/proglyk/ser2mms-gw/internal/serialport"
	"github.com/proglyk/ser2mms-gw/pkg/attrstore"
)

var Version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to ser2mms-gw.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ser2mms-gw: load config: %v\n", err)
		os.Exit(1)
	}

	if err := gwlog.Init(gwlog.Config{
		Level:      cfg.Logger.Level,
		LogDir:     cfg.Logger.LogDir,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
		Compress:   true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "ser2mms-gw: init logger: %v\n", err)
		os.Exit(1)
	}
	defer gwlog.Sync()

	runID := uuid.NewString()
	log := gwlog.WithRun(runID).With(
		zap.String("role", string(cfg.Role)),
		zap.Uint8("id", byte(cfg.ID)),
	)
	log.Info("ser2mms-gw starting", zap.String("version", Version))

	gw, link, err := buildGateway(cfg, log)
	if err != nil {
		log.Fatal("build gateway", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := gw.Run(ctx); err != nil {
		log.Fatal("run gateway", zap.Error(err))
	}

	if cfg.GPIO.Backend == "rpi" && cfg.GPIO.PPSPin != 0 {
		gen, genErr := onepps.New(fmt.Sprintf("GPIO%d", cfg.GPIO.PPSPin), 100*time.Millisecond)
		if genErr != nil {
			log.Warn("1pps generator unavailable", zap.Error(genErr))
		} else {
			go func() {
				if runErr := gen.Run(ctx); runErr != nil {
					log.Warn("1pps generator stopped", zap.Error(runErr))
				}
			}()
		}
	}

	if err := config.WatchReload(*configPath, func(next *config.GatewayConfig) {
		log.Info("config reloaded",
			zap.String("log_level", next.Logger.Level),
			zap.Int("de_wait_ms", next.GPIO.DEWaitMS))
	}); err != nil {
		log.Warn("config hot-reload unavailable", zap.Error(err))
	}

	if !cfg.Threaded {
		go cooperativeLoop(ctx, gw)
	}

	<-sigCh
	log.Info("shutting down")
	cancel()
	gw.Destroy()
	link.Close()
}

// buildGateway wires config, HAL, serial link, attribute store, and
// the protocol engine into a proto.Gateway that is not yet running;
// main calls Run on it. link is returned
// separately because Gateway.Destroy already closes it; main keeps
// the reference only to satisfy the rare double-close-is-safe path
// during early bring-up debugging.
func buildGateway(cfg *config.GatewayConfig, log *zap.Logger) (*proto.Gateway, serialport.Link, error) {
	var gpio hal.GPIOProvider
	var err error
	switch cfg.GPIO.Backend {
	case "rpi":
		gpio, err = hal.NewRaspberryPiGPIO()
	default:
		gpio = hal.NewMockGPIO()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("gpio backend %q: %w", cfg.GPIO.Backend, err)
	}

	link, err := serialport.Open(serialport.HostConfig{
		Path:        cfg.Port.Path,
		BaudRate:    cfg.Port.BaudRate,
		DataBits:    cfg.Port.DataBits,
		StopBits:    cfg.Port.StopBits,
		GPIO:        gpio,
		DEPin:       cfg.GPIO.DEPin,
		DEWait:      time.Duration(cfg.GPIO.DEWaitMS) * time.Millisecond,
		ReadTimeout: time.Millisecond,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open serial port: %w", err)
	}

	api := proto.DefaultPayloadApi()
	if cfg.AttrStore.Addr != "" {
		store := attrstore.New(cfg.AttrStore.Addr, cfg.AttrStore.DB, "")
		api = store.PayloadApi()
	}

	role := proto.RoleSlave
	if cfg.Role == config.RolePoll {
		role = proto.RolePoll
	}
	crc := proto.CRCModbus
	if cfg.CRC == config.CRCReverse {
		crc = proto.CRCReverse
	}

	gcfg := proto.GatewayConfig{
		Role: role,
		ID:   byte(cfg.ID),
		CRC:  crc,
		Ser: proto.SerConfig{
			Reduced:    cfg.Reduced,
			PageSize:   cfg.Schedule.PageSize,
			NumSubs:    cfg.Schedule.NumSubs,
			AnswLenMax: cfg.Schedule.AnswLenMax,
			DSMin:      cfg.Schedule.DSMin,
			DSMax:      cfg.Schedule.DSMax,
			PageMax:    cfg.Schedule.PageMax,
		},
		DEWait:   time.Duration(cfg.GPIO.DEWaitMS) * time.Millisecond,
		Threaded: cfg.Threaded,
	}

	gw, err := proto.New(gcfg, api, link, log)
	if err != nil {
		link.Close()
		return nil, nil, fmt.Errorf("construct gateway: %w", err)
	}
	return gw, link, nil
}

// cooperativeLoop drives Gateway.Poll from the main loop when the
// single-threaded scheduling model is configured (spec §5).
func cooperativeLoop(ctx context.Context, gw *proto.Gateway) {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gw.Poll()
		}
	}
}
