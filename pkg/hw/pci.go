package hw

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// sysfsRoot is a variable so tests can point the provider at a fixture
// tree.
var sysfsRoot = "/sys/bus/pci/devices"

// assignedDrivers are the drivers whose binding means a VF is handed to a
// guest and must not be torn down.
var assignedDrivers = map[string]bool{
	"vfio-pci":    true,
	"pci-stub":    true,
	"xen-pciback": true,
}

// SysfsInstances drives VF instantiation through the PCI sysfs interface
// of the physical function.
type SysfsInstances struct {
	pciAddr string
}

// NewSysfsInstances creates a provider for the PF at the given PCI address
// (e.g. "0000:3b:00.0").
func NewSysfsInstances(pciAddr string) *SysfsInstances {
	return &SysfsInstances{pciAddr: pciAddr}
}

func (s *SysfsInstances) devPath(parts ...string) string {
	return filepath.Join(append([]string{sysfsRoot, s.pciAddr}, parts...)...)
}

// Create implements Instances by writing sriov_numvfs.
func (s *SysfsInstances) Create(n int) error {
	numvfs := s.devPath("sriov_numvfs")
	if data, err := os.ReadFile(numvfs); err == nil {
		if current := strings.TrimSpace(string(data)); current == strconv.Itoa(n) {
			logrus.WithFields(logrus.Fields{
				"device": s.pciAddr,
				"vfs":    current,
			}).Info("VF instances already present")
			return nil
		}
	}
	if err := os.WriteFile(numvfs, []byte(strconv.Itoa(n)), 0644); err != nil {
		return fmt.Errorf("failed to create %d VF instances on %s: %v", n, s.pciAddr, err)
	}
	return nil
}

// Release implements Instances.
func (s *SysfsInstances) Release() error {
	numvfs := s.devPath("sriov_numvfs")
	if err := os.WriteFile(numvfs, []byte("0"), 0644); err != nil {
		return fmt.Errorf("failed to release VF instances on %s: %v", s.pciAddr, err)
	}
	return nil
}

// Count implements Instances.
func (s *SysfsInstances) Count() int {
	data, err := os.ReadFile(s.devPath("sriov_numvfs"))
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return n
}

// AnyAssigned implements Instances by checking each virtfn's bound driver.
func (s *SysfsInstances) AnyAssigned() bool {
	links, err := filepath.Glob(s.devPath("virtfn*"))
	if err != nil {
		return false
	}
	for _, link := range links {
		driver, err := os.Readlink(filepath.Join(link, "driver"))
		if err != nil {
			continue
		}
		if assignedDrivers[filepath.Base(driver)] {
			return true
		}
	}
	return false
}

// VirtfnAddresses enumerates the PCI addresses of the PF's VFs in index
// order.
func (s *SysfsInstances) VirtfnAddresses() ([]string, error) {
	count := s.Count()
	addrs := make([]string, 0, count)
	for i := 0; i < count; i++ {
		target, err := os.Readlink(s.devPath(fmt.Sprintf("virtfn%d", i)))
		if err != nil {
			return addrs, fmt.Errorf("failed to resolve virtfn%d: %v", i, err)
		}
		addrs = append(addrs, filepath.Base(target))
	}
	return addrs, nil
}
