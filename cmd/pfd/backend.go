package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"sriov-pf/internal/config"
	"sriov-pf/pkg/hw"
)

// backend bundles the collaborators the supervisor is wired to.
type backend struct {
	dev    hw.Device
	inst   hw.Instances
	faults hw.FaultMonitor
	close  func()
}

// hostDevice is the host backend's device: register-level state is modeled
// in memory while the observable pieces come from the running system. Link
// state and speed are probed through ethtool so rate-limit validation sees
// the real link.
type hostDevice struct {
	*hw.SimDevice
	probe *hw.LinkProbe
}

func (d *hostDevice) LinkUp() bool { return d.probe.LinkUp() }

func (d *hostDevice) LinkMbps() int { return d.probe.LinkMbps() }

// buildBackend assembles the device backend named by the configuration.
func buildBackend(cfg *config.Config) (*backend, error) {
	name := cfg.Backend
	if name == "" {
		name = "sim"
	}

	switch name {
	case "sim":
		dev := hw.NewSimDevice()
		logrus.Info("using in-memory simulator backend")
		return &backend{dev: dev, inst: dev, faults: dev, close: func() {}}, nil

	case "host":
		sim := hw.NewSimDevice()
		inst := hw.NewSysfsInstances(cfg.Device.PFPCI)
		dev := hw.Device(sim)
		closeFn := func() {}
		if cfg.Device.Interface != "" {
			probe, err := hw.NewLinkProbe(cfg.Device.Interface)
			if err != nil {
				return nil, fmt.Errorf("link probe for %s: %v", cfg.Device.Interface, err)
			}
			dev = &hostDevice{SimDevice: sim, probe: probe}
			closeFn = probe.Close
		}
		logrus.WithFields(logrus.Fields{
			"pci":       cfg.Device.PFPCI,
			"interface": cfg.Device.Interface,
		}).Info("using host backend")
		return &backend{dev: dev, inst: inst, faults: sim, close: closeFn}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}
