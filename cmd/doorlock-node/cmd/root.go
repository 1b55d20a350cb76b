// Package cmd implements the doorlock-node CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net"

	"github.com/backkem/doorlock/pkg/config"
	"github.com/backkem/doorlock/pkg/node"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	// Global flags
	configPath   string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "doorlock-node",
	Short: "Door lock user and credential node",
	Long: `doorlock-node runs a door lock node that stores users, PIN codes,
RFID tags and biometric templates, and serves them to controllers over the
User Credential command class.

Configuration is read from --config (YAML) and DOORLOCK_* environment variables.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json, yaml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the configuration and builds the logger factory.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.LoggerFactory, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	lf, err := cfg.Logging.LoggerFactory(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, lf, nil
}

// nodeConfig translates the file configuration into a node configuration.
// The caller sets Store and the optional collaborators.
func nodeConfig(cfg *config.Config, lf logging.LoggerFactory) (node.Config, error) {
	caps, err := cfg.Capabilities.Build()
	if err != nil {
		return node.Config{}, err
	}

	peers := make(map[uint16]net.Addr, len(cfg.Node.Peers))
	for id, addr := range cfg.Node.Peers {
		ua, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return node.Config{}, fmt.Errorf("peer %d: %w", id, err)
		}
		peers[id] = ua
	}

	var ifaces []net.Interface
	for _, name := range cfg.Discovery.Interfaces {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			return node.Config{}, fmt.Errorf("discovery interface %q: %w", name, err)
		}
		ifaces = append(ifaces, *iface)
	}

	return node.Config{
		NodeID:             cfg.Node.ID,
		Capabilities:       caps,
		ListenAddr:         cfg.Node.Listen,
		Peers:              peers,
		Lifeline:           cfg.Lifeline.Members,
		MaxLifelineMembers: cfg.Lifeline.MaxMembers,
		LearnTimeout:       cfg.Learn.DefaultTimeout,
		Advertise:          cfg.Discovery.Enabled,
		Interfaces:         ifaces,
		LoggerFactory:      lf,
	}, nil
}

// openNode opens the configured store and creates an unstarted node on it.
// The returned function closes the store.
func openNode(cmd *cobra.Command) (*node.Node, func() error, error) {
	cfg, lf, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	ncfg, err := nodeConfig(cfg, lf)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := cfg.Storage.OpenStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	ncfg.Store = store

	n, err := node.New(ncfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return n, closeStore, nil
}

// formatOutput writes data in the --output format. It returns false for
// the table format, which each command renders itself.
func formatOutput(w io.Writer, data interface{}) (bool, error) {
	switch outputFormat {
	case "json":
		return true, outputJSON(w, data)
	case "yaml":
		return true, outputYAML(w, data)
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", outputFormat)
	}
}

func outputJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputYAML(w io.Writer, data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
