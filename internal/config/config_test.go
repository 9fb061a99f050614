package config

import (
	"os"
	"testing"
)

func TestParseVFRange(t *testing.T) {
	tests := []struct {
		name     string
		rangeStr string
		expected []int
		wantErr  bool
	}{
		{
			name:     "single index",
			rangeStr: "5",
			expected: []int{5},
			wantErr:  false,
		},
		{
			name:     "range",
			rangeStr: "0-3",
			expected: []int{0, 1, 2, 3},
			wantErr:  false,
		},
		{
			name:     "mixed range and single",
			rangeStr: "0-2,5,7-9",
			expected: []int{0, 1, 2, 5, 7, 8, 9},
			wantErr:  false,
		},
		{
			name:     "invalid range format",
			rangeStr: "0-1-2",
			expected: nil,
			wantErr:  true,
		},
		{
			name:     "invalid start index",
			rangeStr: "abc-5",
			expected: nil,
			wantErr:  true,
		},
		{
			name:     "invalid end index",
			rangeStr: "0-abc",
			expected: nil,
			wantErr:  true,
		},
		{
			name:     "empty string",
			rangeStr: "",
			expected: nil,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVFRange(tt.rangeStr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseVFRange() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && len(got) != len(tt.expected) {
				t.Errorf("ParseVFRange() length = %v, want %v", len(got), len(tt.expected))
				return
			}
			if !tt.wantErr {
				for i, v := range got {
					if v != tt.expected[i] {
						t.Errorf("ParseVFRange()[%d] = %v, want %v", i, v, tt.expected[i])
					}
				}
			}
		})
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpfile, err := os.CreateTemp(t.TempDir(), "test-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmpfile.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := tmpfile.Close(); err != nil {
		t.Fatal(err)
	}
	return tmpfile.Name()
}

func TestLoadConfig(t *testing.T) {
	configContent := `
listen: "127.0.0.1:8475"
log_level: debug
backend: host

device:
  pf_pci: "0000:3b:00.0"
  interface: "eth2"
  num_vfs: 8
  traffic_classes: 4
  mac_entries: 128
  vlan_entries: 64
  pf_vlans: [100, 200]

policies:
  - vfs: "0"
    mac: "02:11:22:33:44:55"
    vlan: 100
    qos: 3
    trusted: true
  - vfs: "1-3,5"
    spoof_check: false
    rate_mbps: 500
    link_state: disable
`
	path := writeTempConfig(t, configContent)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Listen != "127.0.0.1:8475" {
		t.Errorf("Expected listen '127.0.0.1:8475', got '%s'", config.Listen)
	}
	if config.LogLevel != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", config.LogLevel)
	}
	if config.Backend != "host" {
		t.Errorf("Expected backend 'host', got '%s'", config.Backend)
	}

	if config.Device.PFPCI != "0000:3b:00.0" {
		t.Errorf("Expected PF PCI '0000:3b:00.0', got '%s'", config.Device.PFPCI)
	}
	if config.Device.NumVFs != 8 {
		t.Errorf("Expected 8 VFs, got %d", config.Device.NumVFs)
	}
	if config.Device.TrafficClasses != 4 {
		t.Errorf("Expected 4 traffic classes, got %d", config.Device.TrafficClasses)
	}
	if len(config.Device.PFVLANs) != 2 {
		t.Errorf("Expected 2 supervisor VLANs, got %d", len(config.Device.PFVLANs))
	}

	if len(config.Policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(config.Policies))
	}
	if config.Policies[0].MAC != "02:11:22:33:44:55" {
		t.Errorf("Expected policy MAC '02:11:22:33:44:55', got '%s'", config.Policies[0].MAC)
	}
	if config.Policies[0].Trusted == nil || !*config.Policies[0].Trusted {
		t.Error("Expected first policy to set trusted")
	}
	if config.Policies[0].SpoofCheck != nil {
		t.Error("Expected first policy to leave spoof_check unset")
	}
	if config.Policies[1].SpoofCheck == nil || *config.Policies[1].SpoofCheck {
		t.Error("Expected second policy to clear spoof_check")
	}
	if config.Policies[1].RateMbps != 500 {
		t.Errorf("Expected rate 500, got %d", config.Policies[1].RateMbps)
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("nonexistent-file.yaml")
	if err == nil {
		t.Error("Expected error when loading nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := writeTempConfig(t, `
device:
  pf_pci: "0000:3b:00.0"
  pf_vlans: [100
`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error when loading invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			config:  Config{},
			wantErr: false,
		},
		{
			name:    "unknown backend",
			config:  Config{Backend: "fpga"},
			wantErr: true,
		},
		{
			name:    "host backend without pci address",
			config:  Config{Backend: "host"},
			wantErr: true,
		},
		{
			name: "mac on multi-vf range",
			config: Config{Policies: []Policy{
				{VFs: "0-3", MAC: "02:11:22:33:44:55"},
			}},
			wantErr: true,
		},
		{
			name: "bad link state",
			config: Config{Policies: []Policy{
				{VFs: "0", LinkState: "sideways"},
			}},
			wantErr: true,
		},
		{
			name: "vlan out of range",
			config: Config{Policies: []Policy{
				{VFs: "0", VLAN: 4095},
			}},
			wantErr: true,
		},
		{
			name: "qos out of range",
			config: Config{Policies: []Policy{
				{VFs: "0", QoS: 9},
			}},
			wantErr: true,
		},
		{
			name: "valid policy",
			config: Config{Policies: []Policy{
				{VFs: "0-3", VLAN: 100, QoS: 3, LinkState: "auto"},
			}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
