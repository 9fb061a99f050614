package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// pfCollector implements prometheus.Collector, snapshotting the supervisor
// on each scrape.
type pfCollector struct {
	srv *Server

	vfsConfigured *prometheus.Desc
	linkUp        *prometheus.Desc
	linkMbps      *prometheus.Desc

	requestsTotal *prometheus.Desc
	failuresTotal *prometheus.Desc
	resetsTotal   *prometheus.Desc
	pingsTotal    *prometheus.Desc
	faultsTotal   *prometheus.Desc
	droppedTotal  *prometheus.Desc
	notReadyTotal *prometheus.Desc

	macSlotsUsed  *prometheus.Desc
	macSlotsTotal *prometheus.Desc
	vlanFree      *prometheus.Desc
	macvlanFree   *prometheus.Desc
}

func newCollector(srv *Server) *pfCollector {
	return &pfCollector{
		srv: srv,

		vfsConfigured: prometheus.NewDesc(
			"sriovpf_vfs_configured",
			"Number of virtual functions currently provisioned.",
			nil, nil,
		),
		linkUp: prometheus.NewDesc(
			"sriovpf_link_up",
			"Whether the physical link is up.",
			nil, nil,
		),
		linkMbps: prometheus.NewDesc(
			"sriovpf_link_mbps",
			"Negotiated link speed in Mbps.",
			nil, nil,
		),
		requestsTotal: prometheus.NewDesc(
			"sriovpf_mailbox_requests_total",
			"Total mailbox requests received, by opcode.",
			[]string{"op"}, nil,
		),
		failuresTotal: prometheus.NewDesc(
			"sriovpf_mailbox_failures_total",
			"Total mailbox requests answered with a failure, by opcode.",
			[]string{"op"}, nil,
		),
		resetsTotal: prometheus.NewDesc(
			"sriovpf_reset_handshakes_total",
			"Total completed reset handshakes.",
			nil, nil,
		),
		pingsTotal: prometheus.NewDesc(
			"sriovpf_pings_total",
			"Total control pings sent to VFs.",
			nil, nil,
		),
		faultsTotal: prometheus.NewDesc(
			"sriovpf_driver_faults_total",
			"Total anomalous-driver events leading to quarantine.",
			nil, nil,
		),
		droppedTotal: prometheus.NewDesc(
			"sriovpf_reply_echoes_dropped_total",
			"Total reply echoes dropped by the dispatcher.",
			nil, nil,
		),
		notReadyTotal: prometheus.NewDesc(
			"sriovpf_gated_requests_total",
			"Total requests refused because the VF had not completed a handshake.",
			nil, nil,
		),
		macSlotsUsed: prometheus.NewDesc(
			"sriovpf_mac_slots_used",
			"Occupied receive-address filter slots.",
			nil, nil,
		),
		macSlotsTotal: prometheus.NewDesc(
			"sriovpf_mac_slots_total",
			"Total receive-address filter slots.",
			nil, nil,
		),
		vlanFree: prometheus.NewDesc(
			"sriovpf_vlan_entries_free",
			"Free VLAN filter table entries.",
			nil, nil,
		),
		macvlanFree: prometheus.NewDesc(
			"sriovpf_macvlan_slots_free",
			"Free secondary-address slots in the VF pool.",
			nil, nil,
		),
	}
}

func (c *pfCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.vfsConfigured
	ch <- c.linkUp
	ch <- c.linkMbps
	ch <- c.requestsTotal
	ch <- c.failuresTotal
	ch <- c.resetsTotal
	ch <- c.pingsTotal
	ch <- c.faultsTotal
	ch <- c.droppedTotal
	ch <- c.notReadyTotal
	ch <- c.macSlotsUsed
	ch <- c.macSlotsTotal
	ch <- c.vlanFree
	ch <- c.macvlanFree
}

func (c *pfCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.srv.sup.GetStatus()
	m := c.srv.sup.Metrics()

	ch <- prometheus.MustNewConstMetric(c.vfsConfigured, prometheus.GaugeValue,
		float64(st.NumVFs))
	up := 0.0
	if st.LinkUp {
		up = 1.0
	}
	ch <- prometheus.MustNewConstMetric(c.linkUp, prometheus.GaugeValue, up)
	ch <- prometheus.MustNewConstMetric(c.linkMbps, prometheus.GaugeValue,
		float64(st.LinkMbps))

	for op, n := range m.Requests {
		ch <- prometheus.MustNewConstMetric(c.requestsTotal, prometheus.CounterValue,
			float64(n), op)
	}
	for op, n := range m.Failures {
		ch <- prometheus.MustNewConstMetric(c.failuresTotal, prometheus.CounterValue,
			float64(n), op)
	}
	ch <- prometheus.MustNewConstMetric(c.resetsTotal, prometheus.CounterValue,
		float64(m.Resets))
	ch <- prometheus.MustNewConstMetric(c.pingsTotal, prometheus.CounterValue,
		float64(m.Pings))
	ch <- prometheus.MustNewConstMetric(c.faultsTotal, prometheus.CounterValue,
		float64(m.Faults))
	ch <- prometheus.MustNewConstMetric(c.droppedTotal, prometheus.CounterValue,
		float64(m.Dropped))
	ch <- prometheus.MustNewConstMetric(c.notReadyTotal, prometheus.CounterValue,
		float64(m.NotReady))

	if st.Enabled {
		ch <- prometheus.MustNewConstMetric(c.macSlotsUsed, prometheus.GaugeValue,
			float64(st.MACSlotsUsed))
		ch <- prometheus.MustNewConstMetric(c.macSlotsTotal, prometheus.GaugeValue,
			float64(st.MACSlotsTotal))
		ch <- prometheus.MustNewConstMetric(c.vlanFree, prometheus.GaugeValue,
			float64(st.VLANFree))
		ch <- prometheus.MustNewConstMetric(c.macvlanFree, prometheus.GaugeValue,
			float64(st.MacvlanFree))
	}
}
