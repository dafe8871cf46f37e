// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/btcsuite/elementsutil/internal/log"
	"github.com/btcsuite/elementsutil/internal/version"
	flags "github.com/jessevdk/go-flags"
)

var mainLog btclog.Logger = log.MainLog

// newParser returns the parser of the utility with every command registered.
func newParser(appName string) *flags.Parser {
	parserFlags := flags.Options(flags.HelpFlag | flags.PassDoubleDash)
	parser := flags.NewNamedParser(appName, parserFlags)
	parser.AddGroup("Global Options", "", cfg)
	parser.AddCommand("tx-decode",
		"Decode hex encoded transactions",
		"Decode transactions given as arguments, or one per line on "+
			"stdin when no argument is given.", &txDecodeCfg)
	parser.AddCommand("tx-create",
		"Create a transaction from a JSON or YAML record",
		"Create a transaction from the record in the named file, or "+
			"stdin when the file is '-', and print it as hex.",
		&txCreateCfg)
	parser.AddCommand("script-decode",
		"Decode a script and analyze it as miniscript", "",
		&scriptDecodeCfg)
	parser.AddCommand("policy-compile",
		"Compile a spending policy to miniscript",
		"Compile a spending policy.  Keys are hex encoded unless named "+
			"with --key.", &policyCompileCfg)
	parser.AddCommand("address-inspect",
		"Inspect an address", "", &addressInspectCfg)
	parser.AddCommand("address-create",
		"Create the addresses of a public key or script", "",
		&addressCreateCfg)
	parser.AddCommand("descriptor",
		"Derive the output script and address of a descriptor", "",
		&descriptorCfg)
	parser.AddCommand("pset-create",
		"Create a PSET from an unsigned raw transaction",
		"Create a PSET from the hex encoded transaction and print it "+
			"as base64.", &psetCreateCfg)
	parser.AddCommand("pset-decode",
		"Decode PSETs given as hex, base64 or file paths", "",
		&psetDecodeCfg)
	parser.AddCommand("pset-edit",
		"Edit an input or output of a PSET",
		"Edit the input or output selected by --input-idx or "+
			"--output-idx.  A PSET read from a file is written back "+
			"in place unless --output or --raw-stdout is given.",
		&psetEditCfg)
	parser.AddCommand("pset-merge",
		"Merge PSETs of the same transaction", "",
		&psetMergeCfg)
	parser.AddCommand("pset-finalize",
		"Finalize a PSET and print the signed transaction as hex", "",
		&psetFinalizeCfg)
	return parser
}

// realMain is the real main function for the utility.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func realMain() error {
	defer func() {
		if log.LogRotator != nil {
			log.LogRotator.Close()
		}
	}()

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	parser := newParser(appName)

	// Parse command line and invoke the Execute function for the specified
	// command.
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		} else if ok && e.Type == flags.ErrCommandRequired &&
			cfg.ShowVersion {

			os.Stdout.WriteString(appName + " version " +
				version.String() + "\n")
			return nil
		} else {
			mainLog.Error(err)
		}

		return err
	}

	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
