package api

import (
	"fmt"
	"net/http"

	"tailscale.com/tsweb"

	"github.com/banshee-data/speedtrap/internal/httputil"
)

// tailDepth is the number of display lines buffered per tail viewer.
const tailDepth = 32

// AttachAdminRoutes mounts the live display tail and the pending capture
// list under /debug/ on mux.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("pending", "sample ids awaiting a capture result (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, map[string]any{"pending": s.p.Pending()})
	})

	// Server-Sent Events, one event per rendered display line.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			httputil.InternalServerError(w, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		feed := s.p.Feed()
		sub := feed.Subscribe(tailDepth)
		defer feed.Unsubscribe(sub.ID())

		// Send initial ping to establish connection
		if _, err := w.Write([]byte(": ping\n\n")); err != nil {
			return
		}
		flusher.Flush()

		for {
			select {
			case line, ok := <-sub.C():
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
