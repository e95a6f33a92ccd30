// SPDX-FileCopyrightText: Copyright (C) 2025 The rubix-sdk-go authors
// SPDX-License-Identifier: AGPL-3.0-only

// rubix-wallet is a command line wallet for a Rubix node.
package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rubixchain/rubix-sdk-go/client"
	"github.com/rubixchain/rubix-sdk-go/common"
	"github.com/rubixchain/rubix-sdk-go/config"
	"github.com/rubixchain/rubix-sdk-go/crypto"
	"github.com/rubixchain/rubix-sdk-go/internal/txlog"
	"github.com/rubixchain/rubix-sdk-go/log"
	"github.com/rubixchain/rubix-sdk-go/querier"
	"github.com/rubixchain/rubix-sdk-go/signer"
)

const historyFile = "history.db"

// cliConfig holds the command line configuration.
type cliConfig struct {
	ConfigFile string
	Alias      string
	Mnemonic   string
	Comment    string
}

// env is everything a wallet command needs, built from the config file.
type env struct {
	cfg        *config.Config
	logBackend *log.Backend
	keyStore   *crypto.KeyStore
	client     *client.Client
}

func newEnv(configFile string) (*env, error) {
	var cfg *config.Config
	var err error
	if configFile == "" {
		cfg, err = config.Default()
	} else {
		cfg, err = config.LoadFile(configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}

	logBackend, err := log.New(cfg.Logging.File, cfg.Logging.Level, cfg.Logging.Disable)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %v", err)
	}
	keyStore, err := crypto.NewKeyStore(cfg.DataDir, cfg.KeyPassphrase, nil, logBackend)
	if err != nil {
		return nil, err
	}
	c, err := client.New(&client.Config{
		NodeURL:    cfg.Node.URL,
		Timeout:    cfg.Node.RequestTimeout(),
		APIKey:     cfg.Node.APIKey,
		LogBackend: logBackend,
	})
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, logBackend: logBackend, keyStore: keyStore, client: c}, nil
}

func (e *env) newSigner(cmd *cobra.Command, cfg *cliConfig, history *txlog.Log) (*signer.Signer, error) {
	s, err := signer.New(cmd.Context(), &signer.Config{
		Alias:      cfg.Alias,
		Mnemonic:   cfg.Mnemonic,
		KeyStore:   e.keyStore,
		Client:     e.client,
		History:    history,
		LogBackend: e.logBackend,
	})
	if err != nil {
		return nil, err
	}
	if m := s.GeneratedMnemonic(); m != "" {
		cmd.Printf("New keypair created for alias '%v'.\n", cfg.Alias)
		cmd.Printf("Write down the recovery mnemonic, it is shown only once:\n\n  %v\n\n", m)
	}
	return s, nil
}

func newRootCommand() *cobra.Command {
	var cfg cliConfig

	cmd := &cobra.Command{
		Use:   "rubix-wallet",
		Short: "Rubix wallet",
		Long: `rubix-wallet manages Rubix identities and transfers through a Rubix node.

Keypairs are derived from BIP-39 mnemonics and stored encrypted under the
configured data directory, one directory per alias. The DID for a keypair is
obtained from the node and registered once; transfers are signed locally and
submitted through the node, which never sees a private key.`,
		Example: `  # Create an identity (prints a recovery mnemonic on first use)
  rubix-wallet did --alias nick

  # Check the RBT balance
  rubix-wallet balance --alias nick

  # Send RBT
  rubix-wallet transfer --alias nick bafy...receiver 0.001 --comment "rent"`,
	}

	cmd.PersistentFlags().StringVarP(&cfg.ConfigFile, "config", "f", "",
		"path to the wallet configuration file (TOML format)")
	cmd.PersistentFlags().StringVarP(&cfg.Alias, "alias", "a", "default",
		"keypair alias")

	cmd.AddCommand(
		newMnemonicCommand(),
		newDIDCommand(&cfg),
		newBalanceCommand(&cfg),
		newTransferCommand(&cfg),
		newHistoryCommand(&cfg),
	)
	return cmd
}

func newMnemonicCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mnemonic",
		Short: "Generate a BIP-39 recovery mnemonic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := crypto.NewMnemonic(nil)
			if err != nil {
				return err
			}
			cmd.Println(m)
			return nil
		},
	}
}

func newDIDCommand(cfg *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "did",
		Short: "Create or show the DID for an alias",
		Long: `Loads the keypair for the alias, creating one if absent, and resolves its
DID against the node. The first resolve registers the DID; later invocations
return the stored DID without network traffic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cfg.ConfigFile)
			if err != nil {
				return err
			}
			s, err := e.newSigner(cmd, cfg, nil)
			if err != nil {
				return err
			}
			cmd.Println(s.DID())
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfg.Mnemonic, "mnemonic", "m", "",
		"recover the keypair from an existing mnemonic (ignored when keys exist)")
	return cmd
}

func newBalanceCommand(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the RBT balance of an alias",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cfg.ConfigFile)
			if err != nil {
				return err
			}
			userDID, err := e.keyStore.DID(cfg.Alias)
			if err != nil {
				return err
			}
			if userDID == "" {
				return fmt.Errorf("alias '%v' has no DID yet, run 'rubix-wallet did' first", cfg.Alias)
			}

			bal, err := querier.New(e.client, e.logBackend).RBTBalance(cmd.Context(), userDID)
			if err != nil {
				return err
			}
			cmd.Printf("%v RBT\n", bal.RBT)
			return nil
		},
	}
}

func newTransferCommand(cfg *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer RECEIVER AMOUNT",
		Short: "Sign and submit an RBT transfer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			receiver := args[0]
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid argument %q: %v", args[1], err)
			}

			e, err := newEnv(cfg.ConfigFile)
			if err != nil {
				return err
			}
			history, err := txlog.New(filepath.Join(e.cfg.DataDir, historyFile))
			if err != nil {
				return err
			}
			defer history.Close()

			s, err := e.newSigner(cmd, cfg, history)
			if err != nil {
				return err
			}
			res, err := s.TransferRBT(cmd.Context(), receiver, amount, cfg.Comment)
			if err != nil {
				return err
			}
			if !res.Status {
				return fmt.Errorf("transfer rejected: %v", res.Message)
			}
			cmd.Printf("Transferred %g RBT to %v\n", amount, receiver)
			if res.Message != "" {
				cmd.Println(res.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&cfg.Comment, "comment", "c", "", "transfer comment")
	cmd.Flags().StringVarP(&cfg.Mnemonic, "mnemonic", "m", "",
		"recover the keypair from an existing mnemonic (ignored when keys exist)")
	return cmd
}

func newHistoryCommand(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show transfers submitted by this wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cfg.ConfigFile)
			if err != nil {
				return err
			}
			history, err := txlog.New(filepath.Join(e.cfg.DataDir, historyFile))
			if err != nil {
				return err
			}
			defer history.Close()

			records, err := history.List()
			if err != nil {
				return err
			}
			for _, r := range records {
				verdict := "ok"
				if !r.Status {
					verdict = "rejected: " + r.Message
				}
				cmd.Printf("%v  %-8s %g -> %v  %v\n",
					r.Timestamp.Format("2006-01-02 15:04:05"), r.Kind, r.Amount, r.Receiver, verdict)
			}
			return nil
		},
	}
}

func main() {
	common.ExecuteWithFang(newRootCommand())
}
