package github

import (
	"fmt"
	"net/http"

	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"
)

// NewRecorder records API traffic to cassette and replays it on later runs.
// Authorization headers never reach the cassette. A nil transport uses
// http.DefaultTransport.
func NewRecorder(cassetteName string, mode recorder.Mode, transport http.RoundTripper) (*recorder.Recorder, error) {
	if transport == nil {
		transport = http.DefaultTransport
	}
	r, err := recorder.NewWithOptions(&recorder.Options{
		CassetteName:       cassetteName,
		Mode:               mode,
		SkipRequestLatency: true,
		RealTransport:      transport,
	})
	if err != nil {
		return nil, fmt.Errorf("github: couldn't set up go-vcr recording: %w", err)
	}

	r.AddHook(func(i *cassette.Interaction) error {
		delete(i.Request.Headers, "Authorization")
		return nil
	}, recorder.AfterCaptureHook)
	r.SetReplayableInteractions(true)
	return r, nil
}

// WithRecorder routes requests through r.
func WithRecorder(r *recorder.Recorder) Option {
	return func(c *Client) error {
		if r != nil {
			c.HTTP = r.GetDefaultClient()
		}
		return nil
	}
}
