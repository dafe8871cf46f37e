// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"errors"
	"io"
	"os"

	"github.com/btcsuite/elementsutil/codec"
	"github.com/btcsuite/elementsutil/eljson"
)

// txCreateCmd defines the configuration options for the tx-create command.
type txCreateCmd struct {
	RawStdout bool `long:"raw-stdout" description:"Write the raw transaction bytes instead of hex"`
}

var (
	// txCreateCfg defines the configuration options for the command.
	txCreateCfg = txCreateCmd{}
)

// readInput reads the named file, or stdin for "-".
func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *txCreateCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("tx-create requires exactly one record file")
	}

	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	var info eljson.TransactionInfo
	if err := eljson.Unmarshal(data, &info); err != nil {
		return err
	}
	raw, err := codec.Encode(&info, activeNetParams)
	if err != nil {
		return err
	}

	if cmd.RawStdout {
		_, err = stdout.Write(raw)
		return err
	}
	_, err = io.WriteString(stdout, hex.EncodeToString(raw)+"\n")
	return err
}

// Usage overrides the usage display for the command.
func (cmd *txCreateCmd) Usage() string {
	return "<record file | ->"
}
