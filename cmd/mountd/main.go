// mountd drives a NexStar-protocol telescope mount over a serial
// port, supervises its position in the background, and exposes the
// whole thing over HTTP/WebSocket plus an optional rotctld socket.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/obsdeck/nexstar_interface/config"
	"github.com/obsdeck/nexstar_interface/monitor"
	"github.com/obsdeck/nexstar_interface/nexstar"
	"github.com/obsdeck/nexstar_interface/power"
	"github.com/obsdeck/nexstar_interface/telemetry"
	"github.com/obsdeck/nexstar_interface/tracker"
)

var (
	configPath = flag.String("config", "config.json", "path to JSON config file")
	serialPort = flag.String("serial", "", "serial port name (overrides config)")
	simulate   = flag.Bool("simulator", false, "use the built-in protocol simulator instead of a serial port")
	trackBody  = flag.String("track", "", "solar-system body to track (e.g. jupiter)")
)

func main() {
	flag.Parse()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}

	var transport nexstar.Transport
	if *simulate {
		sim, t := nexstar.NewSimulator()
		go func() {
			if err := sim.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("simulator: %v", err)
			}
		}()
		transport = t
		log.Print("using built-in simulator")
	} else {
		transport, err = nexstar.OpenSerial(cfg.Serial.Port)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("opened %q", cfg.Serial.Port)
	}
	exec := nexstar.NewExecutor(transport)
	if cfg.Serial.TimeoutSec > 0 {
		exec.Timeout = time.Duration(cfg.Serial.TimeoutSec * float64(time.Second))
	}
	tel := nexstar.NewTelescope(exec)
	defer tel.Close()

	mon := monitor.New(tel)
	mon.SetInterval(time.Duration(cfg.Monitor.IntervalSec * float64(time.Second)))
	mon.SetAlertThreshold(cfg.Monitor.AlertThreshold)
	mon.SetHistoryEnabled(cfg.Monitor.HistoryEnabled)

	srv := NewServer(tel, mon)

	var pub *telemetry.Publisher
	if cfg.Redis.Enabled {
		pub, err = telemetry.NewPublisher(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			// Telemetry is best-effort; the mount still works without it.
			log.Printf("redis disabled: %v", err)
		} else {
			defer pub.Close()
		}
	}
	mon.SetAlertFunc(func(e monitor.Entry) {
		log.Printf("ALERT %s: unexpected motion at %.3f deg/s", e.AlertID, e.SpeedDegPerSec)
	})
	mon.SetSampleFunc(func(e monitor.Entry, v monitor.Velocity) {
		if pub != nil {
			pctx, cancel := context.WithTimeout(ctx, time.Second)
			if err := pub.PublishSample(pctx, e, v); err != nil {
				log.Printf("telemetry: %v", err)
			}
			cancel()
		}
		srv.refreshStatus()
	})

	if cfg.Power.Enabled {
		pdu, err := power.Connect(ctx, cfg.Power.Port, cfg.Power.Baud, time.Second, srv.powerCallback)
		if err != nil {
			log.Fatal(err)
		}
		srv.pdu = pdu
	}

	if err := mon.Start(); err != nil {
		log.Fatal(err)
	}
	defer mon.Stop()

	g, ctx := errgroup.WithContext(ctx)

	if *trackBody != "" {
		loc, err := tel.Location()
		if err != nil {
			log.Fatalf("reading mount location for tracking: %v", err)
		}
		trk, err := tracker.New(tel, *trackBody, tracker.PlaceFor(loc.LatDegrees, loc.LonDegrees), 0)
		if err != nil {
			log.Fatal(err)
		}
		trk.ExpectSlew = mon.SetExpectedSlew
		g.Go(func() error {
			err := trk.Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		})
		log.Printf("tracking %s", *trackBody)
	}

	if cfg.Server.RotctldAddr != "" {
		if err := srv.ListenRotctld(ctx, cfg.Server.RotctldAddr); err != nil {
			log.Fatal(err)
		}
		log.Printf("rotctld listening on %s", cfg.Server.RotctldAddr)
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", srv.StatusHandler)
	r.HandleFunc("/api/position", srv.PositionHandler)
	r.HandleFunc("/api/history", srv.HistoryHandler)
	r.HandleFunc("/api/history.csv", srv.HistoryCSVHandler)
	r.HandleFunc("/api/history.json", srv.HistoryJSONHandler)
	r.HandleFunc("/api/ws", srv.StatusSocketHandler)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.Server.StaticDir)))

	httpSrv := &http.Server{
		Handler:      r,
		Addr:         cfg.Server.Addr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Printf("listening on %s", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal(err)
	}
}
