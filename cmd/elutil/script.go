// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/elementsutil/codec"
	"github.com/btcsuite/elementsutil/eljson"
	"github.com/btcsuite/elementsutil/policy"
)

// scriptDecodeCmd defines the configuration options for the script-decode
// command.
type scriptDecodeCmd struct {
	Context string `short:"c" long:"context" description:"Script context of the miniscript analysis {segwitv0, legacy}"`
}

var (
	// scriptDecodeCfg defines the configuration options for the command.
	scriptDecodeCfg = scriptDecodeCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *scriptDecodeCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) != 1 {
		return errors.New("script-decode requires exactly one script")
	}
	ctx, err := contextForName(cmd.Context)
	if err != nil {
		return err
	}

	script, err := parseHex("script", args[0])
	if err != nil {
		return err
	}
	info := eljson.NewScriptInfo(script, activeNetParams)

	// Scripts that are not miniscript are still described.
	ms, err := codec.Analyze(script, ctx)
	if err != nil {
		mainLog.Debugf("Script is not miniscript: %v", err)
	} else {
		info.Miniscript = ms
	}
	return printRecord(info)
}

// Usage overrides the usage display for the command.
func (cmd *scriptDecodeCmd) Usage() string {
	return "<hex>"
}

// policyCompileCmd defines the configuration options for the policy-compile
// command.
type policyCompileCmd struct {
	Context string            `short:"c" long:"context" description:"Script context to compile for {segwitv0, legacy}"`
	Keys    map[string]string `short:"k" long:"key" description:"Name a hex encoded public key as name:hex; may be repeated"`
}

var (
	// policyCompileCfg defines the configuration options for the command.
	policyCompileCfg = policyCompileCmd{}
)

// keyLookup returns a lookup of the named keys, or nil when none are named.
func (cmd *policyCompileCmd) keyLookup() policy.KeyLookup {
	if len(cmd.Keys) == 0 {
		return nil
	}
	return func(name string) ([]byte, error) {
		if keyHex, ok := cmd.Keys[name]; ok {
			return parseHex("key "+name, keyHex)
		}
		// Unnamed keys are read as hex.
		return parseHex("key", name)
	}
}

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *policyCompileCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("policy-compile requires a policy")
	}
	ctx, err := contextForName(cmd.Context)
	if err != nil {
		return err
	}

	// Policies containing spaces may be passed as several arguments.
	text := strings.Join(args, "")
	opts := &policy.CompileOptions{Context: ctx}
	info, err := codec.CompileWithKeys(text, cmd.keyLookup(), opts,
		activeNetParams)
	if err != nil {
		return fmt.Errorf("compile %q: %w", text, err)
	}
	return printRecord(info)
}

// Usage overrides the usage display for the command.
func (cmd *policyCompileCmd) Usage() string {
	return "<policy>"
}
