// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"log"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/carlmjohnson/versioninfo"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/xtaci/nap-streams/internal/config"
	"github.com/xtaci/nap-streams/internal/supervisor"
	"github.com/xtaci/nap-streams/internal/telemetry"
)

// VERSION is injected by build flags when packaging official binaries.
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "nap-recv"
	myApp.Usage = "receive a striped, multi-connection transfer and write it to stdout"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "neglisten,l",
			Value: ":9000",
			Usage: "negotiation side-channel listen address",
		},
		cli.IntFlag{
			Name:  "queuedepth",
			Value: 256,
			Usage: "block queue depth between stream readers and the reassembler",
		},
		cli.IntFlag{
			Name:  "ratelimit",
			Value: 0,
			Usage: "cap incoming bytes/sec per stream, 0 to disable",
		},
		cli.StringFlag{
			Name:  "snmplog",
			Value: "",
			Usage: "collect transfer counters to file, aware of timeformat in golang, like: ./stats-20060102.log",
		},
		cli.IntFlag{
			Name:  "snmpperiod",
			Value: 5,
			Usage: "counter collection period, in seconds",
		},
		cli.BoolFlag{
			Name:  "pprof",
			Usage: "start profiling server on :6060",
		},
		cli.StringFlag{
			Name:  "log",
			Value: "",
			Usage: "specify a log file to output, default goes to stderr",
		},
		cli.BoolFlag{
			Name:  "quiet",
			Usage: "to suppress the per-stream open/close/progress messages",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "",
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		cfg := config.Recv{
			NegListen:  c.String("neglisten"),
			QueueDepth: c.Int("queuedepth"),
			RateLimit:  c.Int("ratelimit"),
			Log:        c.String("log"),
			SnmpLog:    c.String("snmplog"),
			SnmpPeriod: c.Int("snmpperiod"),
			Pprof:      c.Bool("pprof"),
			Quiet:      c.Bool("quiet"),
		}
		if c.String("c") != "" {
			if err := config.ParseJSON(&cfg, c.String("c")); err != nil {
				return errors.Wrap(err, "loading json config")
			}
		}

		if cfg.Log != "" {
			f, err := os.OpenFile(cfg.Log, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
			if err != nil {
				return errors.Wrap(err, "opening log file")
			}
			defer f.Close()
			log.SetOutput(f)
		}

		if cfg.RateLimit < 0 {
			color.Red("ratelimit %d is negative, falling back to 0", cfg.RateLimit)
			cfg.RateLimit = 0
		}

		log.Println("version:", versioninfo.Version)
		log.Println("negotiation listen:", cfg.NegListen)
		log.Println("queuedepth:", cfg.QueueDepth)
		log.Println("ratelimit:", cfg.RateLimit)
		log.Println("quiet:", cfg.Quiet)

		if cfg.Pprof {
			go http.ListenAndServe(":6060", nil)
		}

		counters := &telemetry.Counters{}
		go telemetry.CSVLogger(cfg.SnmpLog, cfg.SnmpPeriod, counters)

		ln, err := net.Listen("tcp", cfg.NegListen)
		if err != nil {
			return errors.Wrap(err, "listening for negotiation connections")
		}
		defer ln.Close()
		log.Println("listening on", cfg.NegListen)

		// One-shot, point-to-point receiver (original_source/recv.c's
		// ncp_recv): accept a single negotiation connection, run a single
		// transfer, then exit — not a persistent multi-client daemon.
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrap(err, "accepting negotiation connection")
		}
		defer conn.Close()

		err = supervisor.RunReceiver(supervisor.ReceiveConfig{
			NegConn:    conn,
			Output:     os.Stdout,
			QueueDepth: cfg.QueueDepth,
			RateLimit:  cfg.RateLimit,
			Counters:   counters,
			Quiet:      cfg.Quiet,
		})
		if err != nil {
			log.Printf("transfer from %s failed: %+v", conn.RemoteAddr(), err)
		}
		os.Exit(exitCode(err))
		return nil
	}

	if err := myApp.Run(os.Args); err != nil {
		color.Red("%v", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a transfer result to the process exit status: 0 success,
// 2 transfer/stream failure, 3 anything else (config, listen, negotiation).
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var transferErr *supervisor.ErrTransferFailed
	if errors.As(err, &transferErr) {
		return 2
	}
	return 3
}
