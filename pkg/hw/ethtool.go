package hw

import (
	"fmt"

	"github.com/safchain/ethtool"
	"github.com/sirupsen/logrus"
)

// LinkProbe reports the PF netdev's link state and speed through the
// ethtool ioctl interface. It feeds the rate-limit speed checks when the
// daemon runs against a real device.
type LinkProbe struct {
	handle *ethtool.Ethtool
	iface  string
}

// NewLinkProbe opens an ethtool handle for the given interface.
func NewLinkProbe(iface string) (*LinkProbe, error) {
	handle, err := ethtool.NewEthtool()
	if err != nil {
		return nil, fmt.Errorf("failed to create ethtool handle: %v", err)
	}
	return &LinkProbe{handle: handle, iface: iface}, nil
}

// LinkUp reports whether the interface has link.
func (p *LinkProbe) LinkUp() bool {
	state, err := p.handle.LinkState(p.iface)
	if err != nil {
		logrus.WithError(err).WithField("interface", p.iface).Debug("link state query failed")
		return false
	}
	return state != 0
}

// LinkMbps reports the negotiated link speed in Mbps, or 0 when unknown.
func (p *LinkProbe) LinkMbps() int {
	var cmd ethtool.EthtoolCmd
	speed, err := p.handle.CmdGet(&cmd, p.iface)
	if err != nil {
		logrus.WithError(err).WithField("interface", p.iface).Debug("speed query failed")
		return 0
	}
	// 0xffffffff means the driver does not know.
	if speed == ^uint32(0) {
		return 0
	}
	return int(speed)
}

// Close releases the ethtool handle.
func (p *LinkProbe) Close() {
	p.handle.Close()
}
