package hub

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes a Session over the WebSocket subscriber protocol
// (spec.md §6) and a Prometheus /stats endpoint, via
// github.com/coder/websocket — the same library the teacher already
// depends on for its outbound Lokutor TTS stream
// (pkg/providers/tts/lokutor.go), adapted here to the server side via
// websocket.Accept.
type Server struct {
	session *Session
	reg     *prometheus.Registry
}

// NewServer wires session behind an http.Handler. reg may be nil, in
// which case /stats serves an empty registry.
func NewServer(session *Session, reg *prometheus.Registry) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return &Server{session: session, reg: reg}
}

func (srv *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWS)
	mux.Handle("/stats", promhttp.HandlerFor(srv.reg, promhttp.HandlerOpts{}))
	return mux
}

func (srv *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	sub := srv.session.AddSubscriber(conn)
	defer srv.session.RemoveSubscriber(sub)

	writerDone := make(chan struct{})
	go func() {
		sub.run(ctx)
		close(writerDone)
	}()

	for {
		_, payload, err := conn.Read(ctx)
		if err != nil {
			break
		}
		srv.session.Dispatch(sub, payload)
	}

	conn.Close(websocket.StatusNormalClosure, "")
	<-writerDone
}

// ListenAndServe is a thin convenience wrapper; cmd/live-transcripts
// typically builds its own *http.Server to control timeouts and
// graceful shutdown instead.
func ListenAndServe(ctx context.Context, addr string, srv *Server) error {
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return httpSrv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
