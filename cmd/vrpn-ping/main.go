package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vrpn-go/vrpn/config"
	"github.com/vrpn-go/vrpn/ping"
	"github.com/vrpn-go/vrpn/transport"
	"github.com/vrpn-go/vrpn/vrpnnet"
)

func main() {
	logLevel := flag.String("log-level", "warning", "log level: debug, info, warning, error")
	senderName := flag.String("sender", "vrpn-ping", "sender name to ping under")
	flatline := flag.Duration("flatline", config.Default().PingFlatlineThreshold, "unanswered-ping duration before reporting flatlined")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: vrpn-ping [flags] <vrpn-address>")
		os.Exit(2)
	}

	switch *logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	}

	info, err := transport.ParseServerInfo(flag.Arg(0))
	if err != nil {
		log.Fatalf("parsing address: %v", err)
	}

	conn, err := vrpnnet.Dial(info)
	if err != nil {
		log.Fatalf("connecting: %v", err)
	}

	client := ping.NewClient(conn, *senderName, *flatline)
	defer client.Close()

	ticker := time.NewTicker(client.RepingAfter())
	defer ticker.Stop()

	for range ticker.C {
		conn.PollEndpoints()
		elapsed, unanswered := client.CheckPingCycle()
		switch {
		case !unanswered:
			fmt.Println("alive")
		case client.Flatlined():
			fmt.Printf("flatlined: unanswered for %s\n", elapsed)
		default:
			fmt.Printf("waiting: unanswered for %s\n", elapsed)
		}
	}
}
