package server

import (
	"net/http"

	"github.com/leapstack-labs/querycomposer/internal/notifier"
	"github.com/starfederation/datastar-go/datastar"
)

// noticeSignals is the signal patch sent for each notice.
type noticeSignals struct {
	Notice notifier.Notice `json:"notice"`
	Query  string          `json:"query"`
	ExecID string          `json:"executionId"`
}

// updates is the long-lived SSE endpoint. Every session notice is pushed to
// the client as a signal patch together with the current query and
// execution.
func (s *Server) updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	n := s.session.Notifier()
	notices := n.Subscribe()
	defer n.Unsubscribe(notices)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case notice, ok := <-notices:
			if !ok {
				return
			}
			patch := noticeSignals{
				Notice: notice,
				Query:  s.session.Buffer(),
				ExecID: s.session.ExecutionID(),
			}
			if err := sse.MarshalAndPatchSignals(patch); err != nil {
				_ = sse.ConsoleError(err)
				// Don't return - keep trying on next notice
			}
		}
	}
}
