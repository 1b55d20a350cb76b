package cmd

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/backkem/doorlock/pkg/credential"
	"github.com/backkem/doorlock/pkg/node"
	"github.com/spf13/cobra"
)

var dumpShowData bool

func init() {
	dumpCmd.Flags().BoolVar(&dumpShowData, "show-data", false, "Print credential data in hex")
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print stored users, credentials and checksums",
	Long: `Print every stored user and credential together with the all-users,
per-user and per-credential-type checksums a controller would read.

Credential data is hidden unless --show-data is given.

Examples:
  doorlock-node dump --config /etc/doorlock.yaml
  doorlock-node dump -o json --show-data`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		n, closeStore, err := openNode(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		d, err := collectDump(n, dumpShowData)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if handled, err := formatOutput(w, d); handled {
			return err
		}

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Node %d\n\n", d.Node)
		fmt.Fprintln(tw, "UUID\tTYPE\tACTIVE\tRULE\tNAME\tMODIFIED BY")
		for _, u := range d.Users {
			fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%s\t%s\n", u.UUID, u.Type, u.Active, u.Rule, u.Name, u.Modifier)
		}
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "UUID\tTYPE\tSLOT\tLENGTH\tDATA\tMODIFIED BY")
		for _, c := range d.Credentials {
			data := c.Data
			if data == "" {
				data = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\n", c.UUID, c.Type, c.Slot, c.Length, data, c.Modifier)
		}
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "CHECKSUM\tVALUE")
		if d.Checksums.AllUsers != "" {
			fmt.Fprintf(tw, "all users\t%s\n", d.Checksums.AllUsers)
		}
		for _, uuid := range sortedKeys(d.Checksums.Users) {
			fmt.Fprintf(tw, "user %d\t%s\n", uuid, d.Checksums.Users[uuid])
		}
		for _, t := range sortedKeys(d.Checksums.Credentials) {
			fmt.Fprintf(tw, "%s\t%s\n", t, d.Checksums.Credentials[t])
		}
		return tw.Flush()
	},
}

type dumpUser struct {
	UUID     uint16 `json:"uuid" yaml:"uuid"`
	Type     string `json:"type" yaml:"type"`
	Active   bool   `json:"active" yaml:"active"`
	Rule     string `json:"credential_rule" yaml:"credential_rule"`
	Name     string `json:"name" yaml:"name"`
	Modifier string `json:"modifier" yaml:"modifier"`
}

type dumpCredential struct {
	UUID     uint16 `json:"uuid" yaml:"uuid"`
	Type     string `json:"type" yaml:"type"`
	Slot     uint16 `json:"slot" yaml:"slot"`
	Length   int    `json:"length" yaml:"length"`
	Data     string `json:"data,omitempty" yaml:"data,omitempty"`
	Modifier string `json:"modifier" yaml:"modifier"`
}

type dumpChecksums struct {
	AllUsers    string            `json:"all_users,omitempty" yaml:"all_users,omitempty"`
	Users       map[uint16]string `json:"users,omitempty" yaml:"users,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty" yaml:"credentials,omitempty"`
}

type dump struct {
	Node        uint16           `json:"node" yaml:"node"`
	Users       []dumpUser       `json:"users" yaml:"users"`
	Credentials []dumpCredential `json:"credentials" yaml:"credentials"`
	Checksums   dumpChecksums    `json:"checksums" yaml:"checksums"`
}

func collectDump(n *node.Node, showData bool) (dump, error) {
	d := dump{Node: n.NodeID()}

	users, err := n.Users()
	if err != nil {
		return d, err
	}
	for _, u := range users {
		d.Users = append(d.Users, dumpUser{
			UUID:     uint16(u.UUID),
			Type:     u.Type.String(),
			Active:   u.Active,
			Rule:     u.CredentialRule.String(),
			Name:     string(u.Name),
			Modifier: modifierString(u.Modifier),
		})
	}

	creds, err := n.Credentials()
	if err != nil {
		return d, err
	}
	for _, c := range creds {
		dc := dumpCredential{
			UUID:     uint16(c.UUID),
			Type:     c.Type.String(),
			Slot:     c.Slot,
			Length:   len(c.Data),
			Modifier: modifierString(c.Modifier),
		}
		if showData {
			dc.Data = hex.EncodeToString(c.Data)
		}
		d.Credentials = append(d.Credentials, dc)
	}

	sums, err := n.Checksums()
	if err != nil {
		return d, err
	}
	if sums.AllUsers != nil {
		d.Checksums.AllUsers = fmt.Sprintf("%04X", *sums.AllUsers)
	}
	if sums.Users != nil {
		d.Checksums.Users = make(map[uint16]string, len(sums.Users))
		for uuid, v := range sums.Users {
			d.Checksums.Users[uint16(uuid)] = fmt.Sprintf("%04X", v)
		}
	}
	if sums.Credentials != nil {
		d.Checksums.Credentials = make(map[string]string, len(sums.Credentials))
		for t, v := range sums.Credentials {
			d.Checksums.Credentials[t.String()] = fmt.Sprintf("%04X", v)
		}
	}
	return d, nil
}

func modifierString(m credential.Modifier) string {
	if m.Type == credential.ModifierZWave {
		return fmt.Sprintf("%s node %d", m.Type, m.Node)
	}
	return m.Type.String()
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
