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
	"os"
	"strings"

	"github.com/carlmjohnson/versioninfo"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/xtaci/nap-streams/internal/config"
	"github.com/xtaci/nap-streams/internal/negotiate"
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
	myApp.Name = "nap-send"
	myApp.Usage = "stripe standard input across N parallel connections to a receiver"
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "negaddr,r",
			Value: "127.0.0.1:9000",
			Usage: "receiver's negotiation side-channel address",
		},
		cli.IntFlag{
			Name:  "streams,n",
			Value: negotiate.NumPortsDefault,
			Usage: "number of parallel data connections to request",
		},
		cli.IntFlag{
			Name:  "blen,b",
			Value: negotiate.BlenDefault,
			Usage: "requested block payload size in bytes",
		},
		cli.StringFlag{
			Name:  "codec",
			Value: "none",
			Usage: "none, snappy, or zstd block compression",
		},
		cli.IntFlag{
			Name:  "ratelimit",
			Value: 0,
			Usage: "cap outgoing bytes/sec per stream, 0 to disable",
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
		cfg := config.Send{
			NegAddr:    c.String("negaddr"),
			Streams:    c.Int("streams"),
			Blen:       c.Int("blen"),
			Codec:      c.String("codec"),
			RateLimit:  c.Int("ratelimit"),
			Log:        c.String("log"),
			SnmpLog:    c.String("snmplog"),
			SnmpPeriod: c.Int("snmpperiod"),
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

		codecID, err := parseCodec(cfg.Codec)
		if err != nil {
			return err
		}

		log.Println("version:", versioninfo.Version)
		log.Println("negotiation address:", cfg.NegAddr)
		log.Println("streams:", cfg.Streams)
		log.Println("blen:", cfg.Blen)
		log.Println("codec:", cfg.Codec)
		log.Println("ratelimit:", cfg.RateLimit)

		counters := &telemetry.Counters{}
		go telemetry.CSVLogger(cfg.SnmpLog, cfg.SnmpPeriod, counters)

		negConn, err := net.Dial("tcp", cfg.NegAddr)
		if err != nil {
			return errors.Wrap(err, "dialing negotiation address")
		}
		defer negConn.Close()

		addr, _, err := net.SplitHostPort(cfg.NegAddr)
		if err != nil {
			addr = cfg.NegAddr
		}

		err = supervisor.RunSender(supervisor.SendConfig{
			NegConn:   negConn,
			Addr:      addr,
			Input:     os.Stdin,
			Streams:   uint16(cfg.Streams),
			Blen:      uint32(cfg.Blen),
			Codec:     codecID,
			RateLimit: cfg.RateLimit,
			Counters:  counters,
			Quiet:     cfg.Quiet,
		})
		if err != nil {
			return err
		}
		log.Println("transfer complete")
		return nil
	}

	if err := myApp.Run(os.Args); err != nil {
		color.Red("%v", err)
		os.Exit(exitCode(err))
	}
}

func parseCodec(name string) (negotiate.Codec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return negotiate.CodecNone, nil
	case "snappy":
		return negotiate.CodecSnappy, nil
	case "zstd":
		return negotiate.CodecZstd, nil
	default:
		return 0, errors.Errorf("unknown codec %q", name)
	}
}

// exitCode maps a top-level error to the process exit status: 0 success, 1
// negotiation failure, 2 any other error. Configuration errors caught before
// negotiation starts (JSON config, log file, unknown codec) are not told
// apart from dial/dispatch failures and also exit 2.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	for _, negErr := range []error{negotiate.ErrAmended, negotiate.ErrRejected, negotiate.ErrUnexpectedAck, negotiate.ErrPeerClosed} {
		if errors.Is(err, negErr) {
			return 1
		}
	}
	return 2
}
