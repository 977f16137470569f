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

// Package config holds the CLI-overridable settings shared by cmd/send and
// cmd/recv: a plain settings struct per command, optionally overridden by
// a JSON config file decoded with json-iterator/go.
package config

import (
	"os"

	jsoniter "github.com/json-iterator/go"
)

// Send holds cmd/send's settings.
type Send struct {
	NegAddr    string `json:"negaddr"`
	DataAddr   string `json:"dataaddr"`
	Streams    int    `json:"streams"`
	Blen       int    `json:"blen"`
	Codec      string `json:"codec"`
	RateLimit  int    `json:"ratelimit"`
	Log        string `json:"log"`
	SnmpLog    string `json:"snmplog"`
	SnmpPeriod int    `json:"snmpperiod"`
	Quiet      bool   `json:"quiet"`
}

// Recv holds cmd/recv's settings.
type Recv struct {
	NegListen  string `json:"neglisten"`
	QueueDepth int    `json:"queuedepth"`
	RateLimit  int    `json:"ratelimit"`
	Log        string `json:"log"`
	SnmpLog    string `json:"snmplog"`
	SnmpPeriod int    `json:"snmpperiod"`
	Pprof      bool   `json:"pprof"`
	Quiet      bool   `json:"quiet"`
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseJSON decodes a JSON config file into cfg, overriding any flag-parsed
// defaults already set on it.
func ParseJSON(cfg any, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(cfg)
}
