package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/backkem/doorlock/pkg/discovery"
	"github.com/spf13/cobra"
)

var (
	discoverTimeout time.Duration
	discoverNode    uint16
)

func init() {
	discoverCmd.Flags().DurationVarP(&discoverTimeout, "timeout", "t", discovery.DefaultBrowseTimeout, "How long to browse")
	discoverCmd.Flags().Uint16Var(&discoverNode, "node", 0, "Look up a single node ID")
	rootCmd.AddCommand(discoverCmd)
}

type discoveredNode struct {
	Instance string   `json:"instance" yaml:"instance"`
	NodeID   uint16   `json:"node_id" yaml:"node_id"`
	Address  string   `json:"address" yaml:"address"`
	Host     string   `json:"host" yaml:"host"`
	MaxUsers uint16   `json:"max_users" yaml:"max_users"`
	Classes  []string `json:"command_classes" yaml:"command_classes"`
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Browse the network for door lock nodes",
	Long: `Browse mDNS for nodes advertising the _z-wave._udp service and print
their node ID, address and advertised capacity.

Examples:
  doorlock-node discover
  doorlock-node discover --node 12
  doorlock-node discover -t 10s -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, lf, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		resolver, err := discovery.NewResolver(discovery.ResolverConfig{
			BrowseTimeout: discoverTimeout,
			LookupTimeout: discoverTimeout,
			LoggerFactory: lf,
		})
		if err != nil {
			return fmt.Errorf("failed to create resolver: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), discoverTimeout)
		defer cancel()

		var found []discoveredNode
		if discoverNode != 0 {
			rn, err := resolver.Lookup(ctx, discoverNode)
			if err != nil {
				return err
			}
			found = append(found, toDiscovered(rn))
		} else {
			for rn := range resolver.Browse(ctx) {
				found = append(found, toDiscovered(&rn))
			}
		}

		w := cmd.OutOrStdout()
		if handled, err := formatOutput(w, found); handled {
			return err
		}
		if len(found) == 0 {
			fmt.Fprintln(w, "No nodes found.")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NODE\tINSTANCE\tADDRESS\tUSERS\tCLASSES")
		for _, d := range found {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%v\n", d.NodeID, d.Instance, d.Address, d.MaxUsers, d.Classes)
		}
		return tw.Flush()
	},
}

func toDiscovered(rn *discovery.ResolvedNode) discoveredNode {
	d := discoveredNode{
		Instance: rn.InstanceName,
		NodeID:   rn.TXT.NodeID,
		Host:     rn.HostName,
		MaxUsers: rn.TXT.MaxUsers,
	}
	if addr := rn.Addr(); addr != nil {
		d.Address = addr.String()
	}
	for _, cc := range rn.TXT.CommandClasses {
		d.Classes = append(d.Classes, fmt.Sprintf("0x%02X", cc))
	}
	return d
}
