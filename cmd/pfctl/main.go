package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "pfctl",
	Short: "Physical function supervisor CLI",
	Long: `A command line interface for the pfd supervisor daemon: VF capacity,
per-VF administrative overrides and supervisor status.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "http://127.0.0.1:8475", "pfd API address")

	rootCmd.AddCommand(
		statusCmd,
		vfsCmd,
		numvfsCmd,
		macCmd,
		vlanCmd,
		trustCmd,
		spoofCheckCmd,
		rateCmd,
		linkCmd,
		rssQueryCmd,
		quarantineCmd,
		pingAllCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// vfArg parses the VF index argument common to the per-VF commands.
func vfArg(args []string) (int, error) {
	vf, err := strconv.Atoi(args[0])
	if err != nil || vf < 0 {
		return 0, fmt.Errorf("invalid vf index %q", args[0])
	}
	return vf, nil
}

// parseBool accepts the on/off vocabulary used by the CLI.
func parseBool(s string) (bool, error) {
	switch s {
	case "on", "true", "enable", "1":
		return true, nil
	case "off", "false", "disable", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q (use on/off)", s)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show supervisor status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getJSON("/api/v1/status")
	},
}

var vfsCmd = &cobra.Command{
	Use:   "vfs [vf]",
	Short: "Show VF configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return getJSON("/api/v1/vfs")
		}
		vf, err := vfArg(args)
		if err != nil {
			return err
		}
		return getJSON(fmt.Sprintf("/api/v1/vfs/%d", vf))
	},
}

var numvfsCmd = &cobra.Command{
	Use:   "numvfs <count>",
	Short: "Set the VF count (0 disables capacity)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		return postJSON("/api/v1/numvfs", map[string]int{"num_vfs": n})
	},
}

var macCmd = &cobra.Command{
	Use:   "mac <vf> <address>",
	Short: "Assign a VF's address administratively (00:00:00:00:00:00 clears)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vf, err := vfArg(args)
		if err != nil {
			return err
		}
		mac := args[1]
		if mac == "00:00:00:00:00:00" {
			mac = ""
		}
		return postJSON(fmt.Sprintf("/api/v1/vfs/%d/mac", vf), map[string]string{"mac": mac})
	},
}

var vlanQoS uint8

var vlanCmd = &cobra.Command{
	Use:   "vlan <vf> <vid>",
	Short: "Set a VF's administrative VLAN (0 clears)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vf, err := vfArg(args)
		if err != nil {
			return err
		}
		vid, err := strconv.Atoi(args[1])
		if err != nil || vid < 0 || vid > 4094 {
			return fmt.Errorf("invalid vlan %q", args[1])
		}
		return postJSON(fmt.Sprintf("/api/v1/vfs/%d/vlan", vf), map[string]any{
			"vlan": vid,
			"qos":  vlanQoS,
		})
	},
}

func init() {
	vlanCmd.Flags().Uint8Var(&vlanQoS, "qos", 0, "Priority for the administrative VLAN")
}

var trustCmd = &cobra.Command{
	Use:   "trust <vf> <on|off>",
	Short: "Grant or revoke a VF's trusted status",
	Args:  cobra.ExactArgs(2),
	RunE:  boolSetter("trust"),
}

var spoofCheckCmd = &cobra.Command{
	Use:   "spoofcheck <vf> <on|off>",
	Short: "Enable or disable source-address enforcement",
	Args:  cobra.ExactArgs(2),
	RunE:  boolSetter("spoofcheck"),
}

var rssQueryCmd = &cobra.Command{
	Use:   "rss-query <vf> <on|off>",
	Short: "Allow or deny RSS configuration queries",
	Args:  cobra.ExactArgs(2),
	RunE:  boolSetter("rss-query"),
}

// boolSetter builds the RunE for the on/off per-VF endpoints.
func boolSetter(endpoint string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		vf, err := vfArg(args)
		if err != nil {
			return err
		}
		enabled, err := parseBool(args[1])
		if err != nil {
			return err
		}
		return postJSON(fmt.Sprintf("/api/v1/vfs/%d/%s", vf, endpoint), map[string]bool{"enabled": enabled})
	}
}

var rateCmd = &cobra.Command{
	Use:   "rate <vf> <mbps>",
	Short: "Cap a VF's transmit rate in Mbps (0 removes the cap)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vf, err := vfArg(args)
		if err != nil {
			return err
		}
		rate, err := strconv.Atoi(args[1])
		if err != nil || rate < 0 {
			return fmt.Errorf("invalid rate %q", args[1])
		}
		return postJSON(fmt.Sprintf("/api/v1/vfs/%d/rate", vf), map[string]int{"rate_mbps": rate})
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <vf> <auto|enable|disable>",
	Short: "Set a VF's administrative link mode",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		vf, err := vfArg(args)
		if err != nil {
			return err
		}
		switch args[1] {
		case "auto", "enable", "disable":
		default:
			return fmt.Errorf("invalid link state %q", args[1])
		}
		return postJSON(fmt.Sprintf("/api/v1/vfs/%d/link", vf), map[string]string{"state": args[1]})
	},
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine <vf>",
	Short: "Disable a VF's datapath until it completes a reset handshake",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vf, err := vfArg(args)
		if err != nil {
			return err
		}
		return postJSON(fmt.Sprintf("/api/v1/vfs/%d/quarantine", vf), struct{}{})
	},
}

var pingAllCmd = &cobra.Command{
	Use:   "ping-all",
	Short: "Nudge every VF to renegotiate with the supervisor",
	RunE: func(cmd *cobra.Command, args []string) error {
		return postJSON("/api/v1/ping-all", struct{}{})
	},
}
