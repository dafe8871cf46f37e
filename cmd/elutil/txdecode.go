// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"strings"

	"github.com/btcsuite/elementsutil/codec"
	"github.com/btcsuite/elementsutil/eljson"
	"github.com/decred/dcrd/lru"
)

// txDecodeCmd defines the configuration options for the tx-decode command.
type txDecodeCmd struct {
	Dedupe    bool `long:"dedupe" description:"Skip transactions whose txid was already decoded"`
	CacheSize uint `long:"cachesize" description:"Number of txids remembered by --dedupe"`
}

var (
	// txDecodeCfg defines the configuration options for the command.
	txDecodeCfg = txDecodeCmd{
		CacheSize: 1000,
	}
)

// decodeTx decodes a single hex encoded transaction.
func decodeTx(txHex string) (*eljson.TransactionInfo, error) {
	b, err := parseHex("transaction", txHex)
	if err != nil {
		return nil, err
	}
	r, err := codec.Decode(b, codec.KindTransaction, activeNetParams)
	if err != nil {
		return nil, err
	}
	return r.(*eljson.TransactionInfo), nil
}

// Execute is the main entry point for the command.  It's invoked by the parser.
func (cmd *txDecodeCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}

	// Read transactions from stdin when none are passed.
	if len(args) == 0 {
		scanner := bufio.NewScanner(stdin)
		scanner.Buffer(nil, 4*1024*1024)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				args = append(args, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}

	var seen lru.Cache
	if cmd.Dedupe {
		seen = lru.NewCache(cmd.CacheSize)
	}
	for _, txHex := range args {
		info, err := decodeTx(txHex)
		if err != nil {
			return err
		}
		if cmd.Dedupe {
			if seen.Contains(info.Txid) {
				mainLog.Debugf("Skipping duplicate transaction %s",
					info.Txid)
				continue
			}
			seen.Add(info.Txid)
		}
		if err := printRecord(info); err != nil {
			return err
		}
	}
	return nil
}

// Usage overrides the usage display for the command.
func (cmd *txDecodeCmd) Usage() string {
	return "[<hex>...]"
}
