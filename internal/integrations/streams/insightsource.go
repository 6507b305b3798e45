package streams

import (
	"github.com/admetric/stacksync/internal/integrations/stackadapt"
	"github.com/reugn/go-streams"
	"github.com/reugn/go-streams/flow"
)

var _ streams.Source = (*InsightSource)(nil)

// InsightSource feeds the fetched GraphQL result envelopes into a pipeline.
type InsightSource struct {
	out chan any
}

func NewInsightSource(envelopes []*stackadapt.InsightsEnvelope) *InsightSource {
	out := make(chan any)
	go func() {
		defer close(out)
		for _, envelope := range envelopes {
			out <- envelope
		}
	}()
	return &InsightSource{out: out}
}

// Out returns the output channel of the InsightSource connector.
func (is *InsightSource) Out() <-chan any {
	return is.out
}

// Via asynchronously streams data to the given Flow and returns it.
func (is *InsightSource) Via(operator streams.Flow) streams.Flow {
	flow.DoStream(is, operator)
	return operator
}
