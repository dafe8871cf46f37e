// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package log wires the package loggers of the module to a single btclog
// backend writing to standard error and, optionally, a rotated log file.
package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/elementsutil/address"
	"github.com/btcsuite/elementsutil/codec"
	"github.com/btcsuite/elementsutil/eljson"
	"github.com/btcsuite/elementsutil/policy"
	"github.com/btcsuite/elementsutil/pset"
	"github.com/btcsuite/elementsutil/txscript"
	"github.com/btcsuite/elementsutil/txscript/miniscript"
	"github.com/btcsuite/elementsutil/wire"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to standard error and, once
// initialized, the write-end pipe of the log rotator.  Standard output is
// left to command results.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stderr.Write(p)
	if LogRotator != nil {
		LogRotator.Write(p)
	}
	return len(p), nil
}

// Loggers per subsystem.  A single backend logger is created and all subsystem
// loggers created from it will write to the backend.  When adding new
// subsystems, add the subsystem logger variable here and to the
// subsystemLoggers map.
var (
	// backendLog is the logging backend used to create all subsystem loggers.
	backendLog = btclog.NewBackend(logWriter{})

	// LogRotator is the optional file output.  It should be closed on
	// application shutdown.
	LogRotator *rotator.Rotator

	MainLog = backendLog.Logger("MAIN")
	addrLog = backendLog.Logger("ADDR")
	codcLog = backendLog.Logger("CODC")
	jsonLog = backendLog.Logger("JSON")
	mscrLog = backendLog.Logger("MSCR")
	plcyLog = backendLog.Logger("PLCY")
	psetLog = backendLog.Logger("PSET")
	scrpLog = backendLog.Logger("SCRP")
	wireLog = backendLog.Logger("WIRE")
)

// Initialize package-global logger variables.
func init() {
	address.UseLogger(addrLog)
	codec.UseLogger(codcLog)
	eljson.UseLogger(jsonLog)
	miniscript.UseLogger(mscrLog)
	policy.UseLogger(plcyLog)
	pset.UseLogger(psetLog)
	txscript.UseLogger(scrpLog)
	wire.UseLogger(wireLog)
}

// SubsystemLoggers maps each subsystem identifier to its associated logger.
var SubsystemLoggers = map[string]btclog.Logger{
	"MAIN": MainLog,
	"ADDR": addrLog,
	"CODC": codcLog,
	"JSON": jsonLog,
	"MSCR": mscrLog,
	"PLCY": plcyLog,
	"PSET": psetLog,
	"SCRP": scrpLog,
	"WIRE": wireLog,
}

// InitLogRotator initializes the logging rotater to write logs to logFile and
// create roll files in the same directory.
func InitLogRotator(logFile string) error {
	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	LogRotator = r
	return nil
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(SubsystemLoggers))
	for subsysID := range SubsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// SetLogLevel sets the logging level for provided subsystem.  Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := SubsystemLoggers[subsystemID]
	if !ok {
		return
	}

	// Defaults to info if the log level is invalid.
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func SetLogLevels(logLevel string) {
	for subsystemID := range SubsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// ParseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.  The level is either a single level for all subsystems or a comma
// separated list of subsystem=level pairs.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if _, ok := btclog.LevelFromString(debugLevel); !ok {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains "+
				"an invalid subsystem/level pair [%v]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]
		if _, exists := SubsystemLoggers[subsysID]; !exists {
			return fmt.Errorf("the specified subsystem [%v] is "+
				"invalid -- supported subsystems %v", subsysID,
				SupportedSubsystems())
		}
		if _, ok := btclog.LevelFromString(logLevel); !ok {
			return fmt.Errorf("the specified debug level [%v] is "+
				"invalid", logLevel)
		}
		SetLogLevel(subsysID, logLevel)
	}
	return nil
}
