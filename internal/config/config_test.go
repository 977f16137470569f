package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONOverridesSendConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "send.json")
	body := `{"negaddr":"example.com:9000","streams":6,"blen":8192,"codec":"zstd"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg := Send{NegAddr: "127.0.0.1:9000", Streams: 4, Blen: 4096, Codec: "none"}
	if err := ParseJSON(&cfg, path); err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}

	if cfg.NegAddr != "example.com:9000" || cfg.Streams != 6 || cfg.Blen != 8192 || cfg.Codec != "zstd" {
		t.Fatalf("unexpected config after override: %+v", cfg)
	}
}

func TestParseJSONMissingFile(t *testing.T) {
	cfg := Recv{}
	if err := ParseJSON(&cfg, "/nonexistent/path/recv.json"); err == nil {
		t.Fatalf("expected an error for a missing config file")
	}
}
