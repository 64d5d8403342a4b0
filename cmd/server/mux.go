package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/umfhero/pixel-agents/internal/office"
	"github.com/umfhero/pixel-agents/internal/persistence/indexdb"
	"github.com/umfhero/pixel-agents/internal/transport/ws"
)

type metricsSource interface {
	Metrics() office.Metrics
}

func newMux(o metricsSource, wsSrv *ws.Server, idx *indexdb.SQLiteIndex) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, o.Metrics(), idx)
	})
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !ws.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(o.Metrics())
	})
	mux.HandleFunc("/admin/v1/audits", func(rw http.ResponseWriter, r *http.Request) {
		if !ws.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusNotFound)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := idx.Audits(r.Context(), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(rows)
	})
	if wsSrv != nil {
		mux.HandleFunc("/v1/surface", wsSrv.SurfaceHandler())
		mux.HandleFunc("/v1/host", wsSrv.HostHandler())
	}
	return mux
}

func writeMetrics(rw http.ResponseWriter, m office.Metrics, idx *indexdb.SQLiteIndex) {
	fmt.Fprintf(rw, "# HELP pixel_office_surfaces Connected rendering surfaces.\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_surfaces gauge\n")
	fmt.Fprintf(rw, "pixel_office_surfaces %d\n", m.Surfaces)

	fmt.Fprintf(rw, "# HELP pixel_office_agents Agents in the roster.\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_agents gauge\n")
	fmt.Fprintf(rw, "pixel_office_agents %d\n", m.Agents)

	fmt.Fprintf(rw, "# HELP pixel_office_presence Current shared presence state (1 for the active state).\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_presence gauge\n")
	for _, s := range []string{"idle", "typing", "thinking", "terminal"} {
		v := 0
		if m.Presence == s {
			v = 1
		}
		fmt.Fprintf(rw, "pixel_office_presence{state=%q} %d\n", s, v)
	}

	fmt.Fprintf(rw, "# HELP pixel_office_furniture Placed furniture pieces.\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_furniture gauge\n")
	fmt.Fprintf(rw, "pixel_office_furniture %d\n", m.Furniture)

	fmt.Fprintf(rw, "# HELP pixel_office_rejected_total Rejected surface requests.\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_rejected_total counter\n")
	fmt.Fprintf(rw, "pixel_office_rejected_total %d\n", m.RejectedTotal)

	fmt.Fprintf(rw, "# HELP pixel_office_external_changes_total Layout changes picked up from other instances.\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_external_changes_total counter\n")
	fmt.Fprintf(rw, "pixel_office_external_changes_total %d\n", m.ExternalChangesTotal)

	fmt.Fprintf(rw, "# HELP pixel_office_dropped_frames_total Frames dropped on full surface queues.\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_dropped_frames_total counter\n")
	fmt.Fprintf(rw, "pixel_office_dropped_frames_total %d\n", m.DroppedFramesTotal)

	fmt.Fprintf(rw, "# HELP pixel_office_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_queue_depth gauge\n")
	fmt.Fprintf(rw, "pixel_office_queue_depth{queue=%q} %d\n", "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(rw, "pixel_office_queue_depth{queue=%q} %d\n", "activity", m.QueueDepths.Activity)
	fmt.Fprintf(rw, "pixel_office_queue_depth{queue=%q} %d\n", "join", m.QueueDepths.Join)
	fmt.Fprintf(rw, "pixel_office_queue_depth{queue=%q} %d\n", "leave", m.QueueDepths.Leave)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP pixel_office_index_dropped_audits_total Audit rows the index writer dropped or failed to commit.\n")
	fmt.Fprintf(rw, "# TYPE pixel_office_index_dropped_audits_total counter\n")
	fmt.Fprintf(rw, "pixel_office_index_dropped_audits_total %d\n", s.DropAuditTotal)
	fmt.Fprintf(rw, "pixel_office_queue_depth{queue=%q} %d\n", "index", s.QueueDepth)
}
