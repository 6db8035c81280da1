// Command das-verify-cli reads one JSON request on stdin, runs it against the
// verifier and writes one JSON response on stdout.
package main

import (
	"flag"
	"fmt"
	"os"

	"das.dev/verifier/config"
	"das.dev/verifier/logging"
)

func main() {
	configPath := flag.String("config", "", "config file (json/yaml/toml); DAS_* env vars override it")
	dev := flag.Bool("dev", false, "accept every signature")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	c := newCLI(cfg, log, *dev)
	if !c.run(os.Stdin, os.Stdout) {
		_ = log.Sync()
		os.Exit(1)
	}
}
