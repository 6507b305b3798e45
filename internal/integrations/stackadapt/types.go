package stackadapt

import "fmt"

// request envelope
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// GraphQLError is one entry of the "errors" array in a GraphQL response.
type GraphQLError struct {
	Message string `json:"message"`
}

func (e GraphQLError) Error() string {
	return fmt.Sprintf("graphql: %s", e.Message)
}

// Advertiser as returned by the advertisers connection.
type Advertiser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AdvertisersEnvelope is the response of the GetAllAdvertiserIds query.
type AdvertisersEnvelope struct {
	Data struct {
		Advertisers struct {
			Edges []struct {
				Node Advertiser `json:"node"`
			} `json:"edges"`
		} `json:"advertisers"`
	} `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// InsightsEnvelope is the response of the GetAdInsightsByDay query.
type InsightsEnvelope struct {
	Data struct {
		CampaignGroupInsight struct {
			Records struct {
				Edges []InsightEdge `json:"edges"`
			} `json:"records"`
		} `json:"campaignGroupInsight"`
	} `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// Records returns the insight nodes of the envelope.
func (e *InsightsEnvelope) Records() []InsightNode {
	nodes := make([]InsightNode, 0, len(e.Data.CampaignGroupInsight.Records.Edges))
	for _, edge := range e.Data.CampaignGroupInsight.Records.Edges {
		nodes = append(nodes, edge.Node)
	}
	return nodes
}

type InsightEdge struct {
	Node InsightNode `json:"node"`
}

type InsightNode struct {
	Attributes InsightAttributes `json:"attributes"`
	Metrics    InsightMetrics    `json:"metrics"`
}

type InsightAttributes struct {
	Ad   InsightAd `json:"ad"`
	Date string    `json:"date"`
}

type InsightAd struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Campaign InsightCampaign `json:"campaign"`
}

type InsightCampaign struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	GoalType      string               `json:"goalType"`
	CampaignGroup InsightCampaignGroup `json:"campaignGroup"`
}

type InsightCampaignGroup struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Advertiser Advertiser `json:"advertiser"`
}

// InsightMetrics keeps nil for metrics the API did not report, so they end
// up as NULL in the warehouse. Cost stays in cents as delivered.
type InsightMetrics struct {
	Clicks           *int64   `json:"clicks"`
	ClickConversions *int64   `json:"clickConversions"`
	Engagements      *int64   `json:"engagements"`
	VideoStarts      *int64   `json:"videoStarts"`
	VideoQ1Playbacks *int64   `json:"videoQ1Playbacks"`
	VideoQ2Playbacks *int64   `json:"videoQ2Playbacks"`
	VideoQ3Playbacks *int64   `json:"videoQ3Playbacks"`
	VideoCompletions *int64   `json:"videoCompletions"`
	Impressions      *int64   `json:"impressions"`
	Frequency        *float64 `json:"frequency"`
	Cost             *float64 `json:"cost"`
}
