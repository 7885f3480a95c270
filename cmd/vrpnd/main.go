package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vrpn-go/vrpn/config"
	"github.com/vrpn-go/vrpn/stats"
	"github.com/vrpn-go/vrpn/vrpnnet"
)

func main() {
	sc := config.StaticConfig{}

	flag.StringVar(&sc.ListenAddr, "listen", "", "host:port to listen on (default :3883)")
	flag.StringVar(&sc.LogLevel, "log-level", "info", "log level: debug, info, warning, error")
	flag.StringVar(&sc.MetricsAddr, "metrics-addr", ":9883", "host:port to serve Prometheus /metrics on")
	flag.StringVar(&sc.PprofAddr, "pprof-addr", "", "host:port for pprof; disabled if empty")
	dynamicConfigPath := flag.String("dynamic-config", "", "path to a YAML dynamic config overlay")
	colorOutput := flag.Bool("color", true, "colorize the periodic status table")
	debugDump := flag.Bool("debug-dump", false, "dump every system command surfaced by a poll tick to stdout")
	flag.Parse()

	switch sc.LogLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("unrecognized log level: %v", sc.LogLevel)
	}

	dc := config.Default()
	if *dynamicConfigPath != "" {
		loaded, err := config.ReadDynamicConfig(*dynamicConfigPath)
		if err != nil {
			log.Fatalf("reading dynamic config: %v", err)
		}
		dc = loaded
	}

	if sc.PprofAddr != "" {
		log.Warningf("starting pprof on %s", sc.PprofAddr)
		go func() {
			log.Println(http.ListenAndServe(sc.PprofAddr, nil))
		}()
	}

	srv, err := vrpnnet.Listen(sc.ListenAddr)
	if err != nil {
		log.Fatalf("binding listener: %v", err)
	}
	srv.SetDynamicConfig(dc)
	log.Infof("vrpnd listening on %s", srv.Addr())

	counters := stats.New()
	srv.SetCounters(counters)
	reg := prometheus.NewRegistry()
	promReg := stats.NewRegistry(counters, reg)

	eg := new(errgroup.Group)

	eg.Go(func() error {
		return srv.Serve()
	})

	eg.Go(func() error {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		return http.ListenAndServe(sc.MetricsAddr, nil)
	})

	eg.Go(func() error {
		ticker := time.NewTicker(dc.PingInterval)
		defer ticker.Stop()
		for range ticker.C {
			if err := srv.PollLobbying(); err != nil {
				log.Warnf("UDP lobbying poll failed: %v", err)
			}
			commands := srv.PollEndpoints()
			if *debugDump {
				for _, cmd := range commands {
					spew.Dump(cmd)
				}
			}
			counters.SetEndpointCount(srv.EndpointCount())
			promReg.Sync()
			counters.Reset()
			printStatus(srv, *colorOutput)
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	eg.Go(func() error {
		<-sigCh
		log.Info("shutting down")
		return srv.Close()
	})

	if err := eg.Wait(); err != nil {
		log.Errorf("vrpnd exited: %v", err)
	}
}

func printStatus(srv *vrpnnet.ServerConnection, useColor bool) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"field", "value"})

	status := srv.Status().String()
	if useColor {
		status = color.GreenString(status)
	}
	table.Append([]string{"status", status})
	table.Append([]string{"endpoints", fmt.Sprintf("%d", srv.EndpointCount())})
	table.Render()
}
