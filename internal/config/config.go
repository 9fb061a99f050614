package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	// Listen is the HTTP API address.
	Listen string `yaml:"listen"`
	// LogLevel is a logrus level name; empty means info.
	LogLevel string `yaml:"log_level"`
	// Backend selects the device backend: "sim" or "host".
	Backend string `yaml:"backend"`

	Device   Device   `yaml:"device"`
	Policies []Policy `yaml:"policies"`
}

// Device describes the physical function under management.
type Device struct {
	// PFPCI is the PF's PCI address, required for the host backend.
	PFPCI string `yaml:"pf_pci"`
	// Interface is the PF's netdev name, used for link probing on the
	// host backend.
	Interface string `yaml:"interface"`
	// NumVFs is the VF count to provision at startup; zero leaves
	// capacity disabled until set through the API.
	NumVFs int `yaml:"num_vfs"`

	TrafficClasses      int      `yaml:"traffic_classes"`
	DefaultUserPriority uint8    `yaml:"default_user_priority"`
	MACEntries          int      `yaml:"mac_entries"`
	VLANEntries         int      `yaml:"vlan_entries"`
	PFVLANs             []uint16 `yaml:"pf_vlans"`
}

// Policy is a block of administrative overrides applied to a range of VFs
// at startup.
type Policy struct {
	// VFs is a range expression like "0-3,5".
	VFs string `yaml:"vfs"`

	// MAC may only be set when the range names a single VF.
	MAC string `yaml:"mac"`

	VLAN uint16 `yaml:"vlan"`
	QoS  uint8  `yaml:"qos"`

	Trusted    *bool `yaml:"trusted"`
	SpoofCheck *bool `yaml:"spoof_check"`
	RSSQuery   *bool `yaml:"rss_query"`

	RateMbps int `yaml:"rate_mbps"`

	// LinkState is "auto", "enable" or "disable"; empty means auto.
	LinkState string `yaml:"link_state"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks the parts of the configuration that cannot be verified
// against the device.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", "sim", "host":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Backend == "host" && c.Device.PFPCI == "" {
		return fmt.Errorf("host backend requires device.pf_pci")
	}
	for i := range c.Policies {
		p := &c.Policies[i]
		vfs, err := ParseVFRange(p.VFs)
		if err != nil {
			return fmt.Errorf("policy %d: %v", i, err)
		}
		if p.MAC != "" && len(vfs) != 1 {
			return fmt.Errorf("policy %d: mac requires a single-VF range, got %q", i, p.VFs)
		}
		switch p.LinkState {
		case "", "auto", "enable", "disable":
		default:
			return fmt.Errorf("policy %d: unknown link state %q", i, p.LinkState)
		}
		if p.VLAN > 4094 {
			return fmt.Errorf("policy %d: vlan %d out of range", i, p.VLAN)
		}
		if p.QoS > 7 {
			return fmt.Errorf("policy %d: qos %d out of range", i, p.QoS)
		}
	}
	return nil
}

// ParseVFRange parses a VF range string like "0-3,5,7-9".
func ParseVFRange(rangeStr string) ([]int, error) {
	var indices []int
	parts := strings.Split(rangeStr, ",")

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if strings.Contains(part, "-") {
			// Range like "0-3"
			rangeParts := strings.Split(part, "-")
			if len(rangeParts) != 2 {
				return nil, fmt.Errorf("invalid range format: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start index: %s", rangeParts[0])
			}
			end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end index: %s", rangeParts[1])
			}
			for i := start; i <= end; i++ {
				indices = append(indices, i)
			}
		} else {
			// Single index
			index, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid index: %s", part)
			}
			indices = append(indices, index)
		}
	}

	return indices, nil
}
