package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"sriov-pf/pkg/pf"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

// writeSupervisorError maps the supervisor's error taxonomy onto HTTP
// statuses.
func writeSupervisorError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, pf.ErrInvalidVF):
		status = http.StatusNotFound
	case errors.Is(err, pf.ErrOutOfRange), errors.Is(err, pf.ErrInvalidCount):
		status = http.StatusBadRequest
	case errors.Is(err, pf.ErrDenied), errors.Is(err, pf.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, pf.ErrBusy), errors.Is(err, pf.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, pf.ErrNoSpace), errors.Is(err, pf.ErrResourceExhausted):
		status = http.StatusInsufficientStorage
	}
	writeError(w, status, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// vfIndex parses the {vf} path segment.
func vfIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	vf, err := strconv.Atoi(r.PathValue("vf"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid vf index")
		return 0, false
	}
	return vf, true
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	st := s.sup.GetStatus()
	writeOK(w, StatusResponse{
		Uptime:         time.Since(s.startTime).Truncate(time.Second).String(),
		Enabled:        st.Enabled,
		NumVFs:         st.NumVFs,
		TrafficClasses: st.TrafficClasses,
		MaxVFs:         st.MaxVFs,
		LinkUp:         st.LinkUp,
		LinkMbps:       st.LinkMbps,
		MACSlotsUsed:   st.MACSlotsUsed,
		MACSlotsTotal:  st.MACSlotsTotal,
		VLANFree:       st.VLANFree,
		VLANTotal:      st.VLANTotal,
		MacvlanFree:    st.MacvlanFree,
		MacvlanTotal:   st.MacvlanTotal,
	})
}

func (s *Server) vfsHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.sup.GetConfigs())
}

func (s *Server) vfHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	cfg, err := s.sup.GetConfig(vf)
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, cfg)
}

func (s *Server) countHandler(w http.ResponseWriter, r *http.Request) {
	var req CountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := s.sup.SetVFCount(req.NumVFs)
	if err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, map[string]int{"num_vfs": n})
}

func (s *Server) macHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	var req MACRequest
	if !decodeBody(w, r, &req) {
		return
	}
	addr := make(net.HardwareAddr, 6)
	if req.MAC != "" {
		var err error
		addr, err = net.ParseMAC(req.MAC)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid mac address: "+req.MAC)
			return
		}
	}
	if err := s.sup.SetMAC(vf, addr); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) vlanHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	var req VLANRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.sup.SetVLAN(vf, req.VLAN, req.QoS); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) trustHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	var req BoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.sup.SetTrust(vf, req.Enabled); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) spoofCheckHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	var req BoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.sup.SetSpoofCheck(vf, req.Enabled); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) rateHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	var req RateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.sup.SetRateLimit(vf, req.RateMbps); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) linkHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	var req LinkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var state pf.LinkState
	switch req.State {
	case "auto":
		state = pf.LinkAuto
	case "enable":
		state = pf.LinkEnabled
	case "disable":
		state = pf.LinkDisabled
	default:
		writeError(w, http.StatusBadRequest, "invalid link state: "+req.State)
		return
	}
	if err := s.sup.SetLinkState(vf, state); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) rssQueryHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	var req BoolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.sup.SetRSSQuery(vf, req.Enabled); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) quarantineHandler(w http.ResponseWriter, r *http.Request) {
	vf, ok := vfIndex(w, r)
	if !ok {
		return
	}
	if err := s.sup.QuarantineVF(vf); err != nil {
		writeSupervisorError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) pingAllHandler(w http.ResponseWriter, _ *http.Request) {
	s.sup.PingAll()
	writeOK(w, nil)
}
