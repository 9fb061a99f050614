package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"sriov-pf/internal/config"
	"sriov-pf/pkg/api"
	"sriov-pf/pkg/hw"
	"sriov-pf/pkg/logging"
	"sriov-pf/pkg/mbx"
	"sriov-pf/pkg/pf"
)

const (
	// pollInterval paces the mailbox event loop. Each pass handles at
	// most one event per VF, so the interval bounds per-VF latency.
	pollInterval = 20 * time.Millisecond

	// linkCheckInterval paces rate-limit revalidation against the link.
	linkCheckInterval = 2 * time.Second

	defaultListen = ":8475"
)

func runDaemon() error {
	cfg := &config.Config{}
	if _, err := os.Stat(flagConfig); err == nil {
		loaded, err := config.LoadConfig(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
		logrus.WithField("config_file", flagConfig).Info("loaded configuration from file")
	} else {
		logrus.Info("using default configuration")
	}
	applyFlagOverrides(cfg)

	if cfg.LogLevel != "" {
		if err := logging.SetLevel(cfg.LogLevel); err != nil {
			return err
		}
	}

	be, err := buildBackend(cfg)
	if err != nil {
		return err
	}
	defer be.close()

	tr := mbx.NewSimTransport(pf.MaxVFsOneTC)
	sup := pf.New(be.dev, be.inst, be.faults, tr, pf.Config{
		MACEntries:          cfg.Device.MACEntries,
		VLANEntries:         cfg.Device.VLANEntries,
		TrafficClasses:      cfg.Device.TrafficClasses,
		DefaultUserPriority: cfg.Device.DefaultUserPriority,
		PFVLANs:             cfg.Device.PFVLANs,
	})

	if cfg.Device.NumVFs > 0 {
		if _, err := sup.SetVFCount(cfg.Device.NumVFs); err != nil {
			return fmt.Errorf("provisioning %d VFs: %w", cfg.Device.NumVFs, err)
		}
		logVirtfns(be.inst)
	}
	applyPolicies(sup, cfg.Policies)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listen := cfg.Listen
	if listen == "" {
		listen = defaultListen
	}
	srv := api.NewServer(listen, sup)
	apiErr := make(chan error, 1)
	go func() { apiErr <- srv.Run(ctx) }()

	var watcher *configWatcher
	if _, err := os.Stat(flagConfig); err == nil {
		watcher, err = newConfigWatcher(flagConfig, func(next *config.Config) {
			applyReload(sup, cfg, next)
			cfg = next
		})
		if err != nil {
			logrus.WithError(err).Warn("configuration reload disabled")
		} else {
			defer watcher.stop()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	poll := time.NewTicker(pollInterval)
	defer poll.Stop()
	linkCheck := time.NewTicker(linkCheckInterval)
	defer linkCheck.Stop()

	logrus.Info("supervisor running")
	for {
		select {
		case <-poll.C:
			sup.PollOnce()
		case <-linkCheck.C:
			sup.CheckRateLimit()
			sup.RefreshLinkStates()
		case sig := <-sigCh:
			logrus.WithField("signal", sig.String()).Info("shutting down")
			cancel()
			return <-apiErr
		case err := <-apiErr:
			cancel()
			return err
		}
	}
}

// logVirtfns records the PCI addresses the host gave the new instances.
func logVirtfns(inst hw.Instances) {
	si, ok := inst.(*hw.SysfsInstances)
	if !ok {
		return
	}
	addrs, err := si.VirtfnAddresses()
	if err != nil {
		logrus.WithError(err).Warn("VF address enumeration incomplete")
	}
	if len(addrs) > 0 {
		logrus.WithField("virtfns", addrs).Info("VF instances enumerated")
	}
}

// applyFlagOverrides lets command-line flags win over the file.
func applyFlagOverrides(cfg *config.Config) {
	if flagListen != "" {
		cfg.Listen = flagListen
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagBackend != "" {
		cfg.Backend = flagBackend
	}
}

// applyPolicies pushes the configured administrative overrides into the
// supervisor. Individual failures are logged and skipped so one bad policy
// does not block the rest.
func applyPolicies(sup *pf.Supervisor, policies []config.Policy) {
	for i, p := range policies {
		vfs, err := config.ParseVFRange(p.VFs)
		if err != nil {
			logrus.WithError(err).WithField("policy", i).Error("skipping policy with bad range")
			continue
		}
		for _, vf := range vfs {
			applyPolicy(sup, vf, p)
		}
	}
}

func applyPolicy(sup *pf.Supervisor, vf int, p config.Policy) {
	log := logrus.WithField("vf", vf)
	if p.MAC != "" {
		addr, err := net.ParseMAC(p.MAC)
		if err != nil {
			log.WithError(err).Error("bad policy mac")
		} else if err := sup.SetMAC(vf, addr); err != nil {
			log.WithError(err).Error("policy mac not applied")
		}
	}
	if p.VLAN != 0 || p.QoS != 0 {
		if err := sup.SetVLAN(vf, p.VLAN, p.QoS); err != nil {
			log.WithError(err).Error("policy vlan not applied")
		}
	}
	if p.Trusted != nil {
		if err := sup.SetTrust(vf, *p.Trusted); err != nil {
			log.WithError(err).Error("policy trust not applied")
		}
	}
	if p.SpoofCheck != nil {
		if err := sup.SetSpoofCheck(vf, *p.SpoofCheck); err != nil {
			log.WithError(err).Error("policy spoof check not applied")
		}
	}
	if p.RSSQuery != nil {
		if err := sup.SetRSSQuery(vf, *p.RSSQuery); err != nil {
			log.WithError(err).Error("policy rss query not applied")
		}
	}
	if p.RateMbps != 0 {
		if err := sup.SetRateLimit(vf, p.RateMbps); err != nil {
			log.WithError(err).Error("policy rate limit not applied")
		}
	}
	if p.LinkState != "" {
		state := pf.LinkAuto
		switch p.LinkState {
		case "enable":
			state = pf.LinkEnabled
		case "disable":
			state = pf.LinkDisabled
		}
		if err := sup.SetLinkState(vf, state); err != nil {
			log.WithError(err).Error("policy link state not applied")
		}
	}
}

// applyReload applies the parts of a new configuration that can change at
// runtime: log level, VF count and policies. Backend and listen address
// need a restart.
func applyReload(sup *pf.Supervisor, old, next *config.Config) {
	if next.LogLevel != old.LogLevel && next.LogLevel != "" {
		if err := logging.SetLevel(next.LogLevel); err != nil {
			logrus.WithError(err).Error("bad log level in reloaded configuration")
		}
	}
	if next.Device.NumVFs != old.Device.NumVFs {
		if _, err := sup.SetVFCount(next.Device.NumVFs); err != nil {
			logrus.WithError(err).Error("reloaded VF count not applied")
		}
	}
	applyPolicies(sup, next.Policies)
	logrus.Info("configuration reloaded")
}
