// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/elementsutil/chaincfg"
	"github.com/btcsuite/elementsutil/eljson"
	"github.com/btcsuite/elementsutil/internal/log"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
)

const (
	defaultLogFilename = "elutil.log"
	defaultLogLevel    = "warn"
)

var (
	// stdout and stdin are replaced in tests.
	stdout io.Writer = os.Stdout
	stdin  io.Reader = os.Stdin

	activeNetParams = &chaincfg.LiquidParams

	// Default global config.
	cfg = &config{
		Network:    chaincfg.LiquidParams.Name,
		DebugLevel: defaultLogLevel,
	}
)

// config defines the global configuration options.
type config struct {
	Network     string `short:"n" long:"network" description:"Network of addresses and asset labels {liquidv1, liquidtestnet, elementsregtest}"`
	YAML        bool   `short:"y" long:"yaml" description:"Print results as YAML instead of JSON"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	LogDir      string `long:"logdir" description:"Directory to log output; no log file is written when empty"`
	DefaultLog  bool   `long:"defaultlog" description:"Log to the logs directory of the application data directory"`
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
}

// setupGlobalConfig examines the global configuration options for any
// conditions which are invalid as well as performs any addition setup
// necessary after the initial parse.
func setupGlobalConfig() error {
	params, err := chaincfg.ParamsForName(cfg.Network)
	if err != nil {
		return fmt.Errorf("unknown network %q", cfg.Network)
	}
	activeNetParams = params

	if err := log.ParseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	if cfg.DefaultLog && cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(btcutil.AppDataDir("elutil", false),
			"logs")
	}
	if cfg.LogDir != "" {
		logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
		if err := log.InitLogRotator(logFile); err != nil {
			return err
		}
	}
	return nil
}

// contextForName returns the script context with the given name.
func contextForName(name string) (*miniscript.Context, error) {
	switch strings.ToLower(name) {
	case "", miniscript.SegwitV0.Name, "wsh":
		return miniscript.SegwitV0, nil
	case miniscript.Legacy.Name, "sh":
		return miniscript.Legacy, nil
	}
	return nil, fmt.Errorf("unknown script context %q", name)
}

// parseHex decodes a hex argument, naming it in the error.
func parseHex(name, s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid %s hex: %w", name, err)
	}
	return b, nil
}

// parsePubKey decodes a hex encoded public key.  An empty string is no key.
func parsePubKey(name, s string) (*btcec.PublicKey, error) {
	if s == "" {
		return nil, nil
	}
	b, err := parseHex(name, s)
	if err != nil {
		return nil, err
	}
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return key, nil
}

// printRecord writes a record to stdout in the configured format.
func printRecord(r eljson.Record) error {
	var (
		out []byte
		err error
	)
	if cfg.YAML {
		out, err = eljson.MarshalYAML(r)
	} else {
		out, err = eljson.MarshalJSON(r)
		out = append(out, '\n')
	}
	if err != nil {
		return err
	}
	_, err = stdout.Write(out)
	return err
}
