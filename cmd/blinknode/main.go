// Command blinknode runs one node of a blink network: a root collecting
// data from a simulated or real CSS radio, or a relay/leaf forwarding
// toward one.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/mbor/blink/internal/blink"
	"github.com/mbor/blink/internal/config"
	"github.com/mbor/blink/internal/console"
	"github.com/mbor/blink/internal/discovery"
	"github.com/mbor/blink/internal/logging"
	"github.com/mbor/blink/internal/radio"
	"github.com/mbor/blink/internal/sched"
)

func main() {
	var configPath = pflag.StringP("config", "c", "", "path to node config YAML")
	var nodeIDFlag = pflag.Int("node-id", -1, "override node id from config (0 = root)")
	var sim = pflag.Bool("sim", false, "force the simulated radio backend regardless of config")
	var advertise = pflag.Bool("advertise", false, "advertise a root node over mDNS regardless of config")
	var interactive = pflag.Bool("console", false, "open a pseudo-terminal console for TX/RX")
	var serialDevice = pflag.String("console-serial", "", "open a real serial device as the console instead of a pty")
	var serialBaud = pflag.Int("console-baud", 9600, "baud rate for -console-serial")
	var logLevel = pflag.String("log-level", "info", "debug, info, warn or error")
	var showVersion = pflag.Bool("version", false, "print version information and exit")
	pflag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	var log = logging.New(os.Stderr, *logLevel)

	if *configPath == "" {
		log.Fatal("blinknode: -config is required")
	}
	var cfg, err = config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *nodeIDFlag >= 0 {
		cfg.NodeID = uint8(*nodeIDFlag)
	}
	if *sim {
		cfg.Radio.Kind = "sim"
	}
	if *advertise {
		cfg.Advertise = true
	}

	var blinkCfg, cfgErr = cfg.BlinkConfig()
	if cfgErr != nil {
		log.Fatal(cfgErr)
	}

	var ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var r radio.Radio
	switch cfg.Radio.Kind {
	case "sim", "":
		r = radio.NewSimulated()
	case "linux-gpio":
		var gpioRadio, gpioErr = radio.NewLinuxGPIO(ctx, cfg.LinuxGPIOConfig())
		if gpioErr != nil {
			log.Fatal(gpioErr)
		}
		r = gpioRadio
	default:
		log.Fatalf("blinknode: unknown radio kind %q", cfg.Radio.Kind)
	}

	var clock = sched.NewRealClock()
	var scheduler = sched.New(clock)
	var node = blink.New(blinkCfg, cfg.NodeID, r, scheduler, clock)

	var con *console.Console
	switch {
	case *serialDevice != "":
		con, err = console.OpenSerial(*serialDevice, *serialBaud)
		if err != nil {
			log.Fatal(err)
		}
		defer con.Close()
		log.Infof("blinknode: console attached at %s", con.SlaveName())
	case *interactive:
		con, err = console.Open()
		if err != nil {
			log.Fatal(err)
		}
		defer con.Close()
		log.Infof("blinknode: console attached at %s", con.SlaveName())
	}

	node.SetEventHandler(func(e blink.Event) {
		log.Info(log.TraceLine(cfg.NodeID, node.OpMode(), e))
		if e == blink.EventRXComplete && con != nil {
			var buf = make([]byte, blinkCfg.MaxPayloadLen)
			var n = node.RX(buf)
			if err := con.WritePayload(buf[:n]); err != nil {
				log.Errorf("blinknode: writing console payload: %v", err)
			}
		}
	})

	if cfg.Advertise && cfg.NodeID == blink.RootID {
		var stop, advErr = discovery.Advertise(ctx, 0, log)
		if advErr != nil {
			log.Errorf("blinknode: mDNS advertise failed: %v", advErr)
		} else {
			defer stop()
		}
	}

	if err := node.Reset(); err != nil {
		log.Fatal(err)
	}
	node.StartSync()

	go pumpCompletions(ctx, r, scheduler, node)
	if con != nil {
		go pumpConsole(con, scheduler, node, log)
	}

	if err := scheduler.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal(err)
	}
}

// pumpCompletions reads radio completions off their own goroutine and
// hands them to the scheduler's run loop as ordinary callbacks, so
// protocol-state mutation always happens on the scheduler's goroutine.
func pumpCompletions(ctx context.Context, r radio.Radio, s *sched.Scheduler, node *blink.Node) {
	var job = sched.NewJob("radio-completion")
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-r.Completions():
			s.SetCallback(job, func() { node.HandleCompletion(st) })
		}
	}
}

// pumpConsole reads payloads off the console on its own goroutine and
// hands each TX submission to the scheduler's run loop, for the same
// reason pumpCompletions does.
func pumpConsole(con *console.Console, s *sched.Scheduler, node *blink.Node, log *logging.Logger) {
	for {
		var payload, err = con.ReadPayload()
		if err != nil {
			return
		}
		s.SetCallback(sched.NewJob("console-tx"), func() {
			if !node.TX(payload) {
				log.Warnf("blinknode: console payload rejected (length %d)", len(payload))
			}
		})
	}
}

func printVersion() {
	var info, ok = debug.ReadBuildInfo()
	if !ok {
		fmt.Println("blinknode - version unknown")
		return
	}
	var revision, modified, buildTime = "unknown", "", "unknown"
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			if s.Value == "true" {
				modified = "-dirty"
			}
		case "vcs.time":
			buildTime = s.Value
		}
	}
	fmt.Printf("blinknode - version %s (revision %s%s, built at %s)\n",
		info.Main.Version, revision, modified, buildTime)
}
