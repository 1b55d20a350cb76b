package cmd

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/backkem/doorlock/pkg/config"
	"github.com/backkem/doorlock/pkg/lifeline"
	"github.com/backkem/doorlock/pkg/node"
	"github.com/backkem/doorlock/pkg/nvm"
	"github.com/pion/logging"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node until interrupted",
	Long: `Run the node: bind the transport, advertise over mDNS and answer
User Credential frames until SIGINT or SIGTERM.

When lifeline.mqtt is enabled every lifeline notification is also
published to the broker.

Examples:
  doorlock-node serve --config /etc/doorlock.yaml
  DOORLOCK_MQTT_BROKER=tcp://broker:1883 doorlock-node serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, lf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ncfg, err := nodeConfig(cfg, lf)
		if err != nil {
			return err
		}

		store, closeStore, err := cfg.Storage.OpenStore()
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer closeStore()
		ncfg.Store = store

		if cfg.Lifeline.MQTT.Enabled {
			mirror, err := dialMirror(cfg, lf)
			if err != nil {
				return err
			}
			defer mirror.Close()
			ncfg.Mirror = mirror
		}

		n, err := node.New(ncfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := n.Start(ctx); err != nil {
			return fmt.Errorf("start node: %w", err)
		}
		printReady(cmd, cfg, n, store)

		<-ctx.Done()
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		if err := n.Stop(); err != nil && !errors.Is(err, node.ErrAlreadyStopped) {
			return fmt.Errorf("stop node: %w", err)
		}
		return nil
	},
}

func dialMirror(cfg *config.Config, lf logging.LoggerFactory) (*lifeline.Mirror, error) {
	mc := cfg.Lifeline.MQTT
	return lifeline.DialMirror(cfg.Node.ID, lifeline.MQTTConfig{
		Broker:      mc.Broker,
		ClientID:    mc.ClientID,
		Username:    mc.Username,
		Password:    mc.Password,
		TopicPrefix: mc.TopicPrefix,
		QoS:         byte(mc.QoS),
	}, lf)
}

func printReady(cmd *cobra.Command, cfg *config.Config, n *node.Node, store nvm.Store) {
	w := cmd.OutOrStdout()
	caps := n.Capabilities()
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "          Door Lock Node Ready")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Node ID:        %d\n", n.NodeID())
	fmt.Fprintf(w, "Listening:      %s\n", n.LocalAddr())
	fmt.Fprintf(w, "Storage:        %s\n", storageName(cfg, store))
	fmt.Fprintf(w, "Users:          %d\n", caps.MaxUsers)
	fmt.Fprintf(w, "Credentials:    %d\n", caps.CredentialCapacity())
	fmt.Fprintf(w, "Lifeline:       %v\n", n.Lifeline())
	fmt.Fprintln(w, "========================================")
}

func storageName(cfg *config.Config, store nvm.Store) string {
	if s, ok := store.(*nvm.SQLiteStore); ok {
		return "sqlite " + s.Path()
	}
	return cfg.Storage.Driver
}
