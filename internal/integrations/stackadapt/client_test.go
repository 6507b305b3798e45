package stackadapt

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/admetric/stacksync/internal/logging"
	"github.com/admetric/stacksync/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = logging.NewLogger("info", "component", "test")

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(&model.StackAdaptConfig{
		Endpoint:     endpoint,
		ApiKey:       "test-key",
		Timeout:      "5s",
		RequestDelay: "1ms",
		MaxRetries:   2,
	}, logger)
	require.NoError(t, err)
	return client
}

// graphQLServer answers according to the query text of the request.
func graphQLServer(t *testing.T, handler func(query string, variables map[string]any) (int, string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		status, body := handler(req.Query, req.Variables)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func insightBody(adID, date string, clicks int) string {
	return `{
		"attributes": {
			"ad": {
				"id": "` + adID + `",
				"name": "Ad ` + adID + `",
				"campaign": {
					"id": "c1", "name": "Campaign", "goalType": "CPC",
					"campaignGroup": {
						"id": "g1", "name": "Group",
						"advertiser": {"id": "a1", "name": "Advertiser"}
					}
				}
			},
			"date": "` + date + `"
		},
		"metrics": {"clicks": ` + jsonInt(clicks) + `, "impressions": 100, "cost": 250.0}
	}`
}

func jsonInt(n int) string {
	data, _ := json.Marshal(n)
	return string(data)
}

func TestClientRequiresApiKey(t *testing.T) {
	t.Setenv("STACKADAPT_API_KEY", "")
	_, err := NewClient(&model.StackAdaptConfig{}, logger)
	assert.ErrorContains(t, err, "STACKADAPT_API_KEY")

	t.Setenv("STACKADAPT_API_KEY", "from-env")
	client, err := NewClient(&model.StackAdaptConfig{}, logger)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoint, client.Endpoint)
}

func TestConnect(t *testing.T) {
	srv := graphQLServer(t, func(query string, _ map[string]any) (int, string) {
		assert.Contains(t, query, "__schema")
		return 200, `{"data": {"__schema": {"queryType": {"name": "Query"}}}}`
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	assert.Equal(t, "stackadapt", client.ServiceName())
	assert.NoError(t, client.Connect(context.Background()))
}

func TestAdvertiserIDs(t *testing.T) {
	srv := graphQLServer(t, func(query string, _ map[string]any) (int, string) {
		assert.Contains(t, query, "advertisers")
		return 200, `{"data": {"advertisers": {"edges": [
			{"node": {"id": "a1", "name": "One"}},
			{"node": {"id": "a2", "name": "Two"}}
		]}}}`
	})
	defer srv.Close()

	ids, err := newTestClient(t, srv.URL).AdvertiserIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestAdInsightsByDay(t *testing.T) {
	srv := graphQLServer(t, func(query string, variables map[string]any) (int, string) {
		assert.Contains(t, query, "campaignGroupInsight")
		assert.Equal(t, "2025-06-01", variables["dateFrom"])
		assert.Equal(t, "2025-06-15", variables["dateTo"])
		return 200, `{"data": {"campaignGroupInsight": {"records": {"edges": [
			{"node": ` + insightBody("ad-1", "2025-06-01", 10) + `},
			{"node": ` + insightBody("ad-2", "2025-06-02", 20) + `}
		]}}}}`
	})
	defer srv.Close()

	envelope, err := newTestClient(t, srv.URL).AdInsightsByDay(context.Background(), []string{"a1"}, "2025-06-01", "2025-06-15")
	require.NoError(t, err)

	records := envelope.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "ad-1", records[0].Attributes.Ad.ID)
	assert.Equal(t, "2025-06-01", records[0].Attributes.Date)
	assert.Equal(t, "CPC", records[0].Attributes.Ad.Campaign.GoalType)
	assert.Equal(t, "g1", records[0].Attributes.Ad.Campaign.CampaignGroup.ID)
	require.NotNil(t, records[1].Metrics.Clicks)
	assert.Equal(t, int64(20), *records[1].Metrics.Clicks)
	assert.Nil(t, records[0].Metrics.Engagements)
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := graphQLServer(t, func(string, map[string]any) (int, string) {
		if calls.Add(1) < 3 {
			return 503, `{"error": "unavailable"}`
		}
		return 200, `{"data": {"advertisers": {"edges": []}}}`
	})
	defer srv.Close()

	ids, err := newTestClient(t, srv.URL).AdvertiserIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOnAuthError(t *testing.T) {
	var calls atomic.Int32
	srv := graphQLServer(t, func(string, map[string]any) (int, string) {
		calls.Add(1)
		return 401, `{"error": "unauthorized"}`
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).AdvertiserIDs(context.Background())
	assert.ErrorContains(t, err, "status 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGraphQLErrorSurfaced(t *testing.T) {
	srv := graphQLServer(t, func(string, map[string]any) (int, string) {
		return 200, `{"data": null, "errors": [{"message": "rate limited"}]}`
	})
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).AdvertiserIDs(context.Background())
	assert.ErrorContains(t, err, "rate limited")
}

func TestFetchAllInsightsPerAdvertiser(t *testing.T) {
	var queried []string
	srv := graphQLServer(t, func(_ string, variables map[string]any) (int, string) {
		ids := variables["ids"].([]any)
		require.Len(t, ids, 1)
		id := ids[0].(string)
		queried = append(queried, id)
		if id == "a2" {
			// empty result sets are dropped
			return 200, `{"data": {"campaignGroupInsight": {"records": {"edges": []}}}}`
		}
		return 200, `{"data": {"campaignGroupInsight": {"records": {"edges": [
			{"node": ` + insightBody("ad-"+id, "2025-06-01", 1) + `}
		]}}}}`
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	envelopes, err := client.FetchAllInsights(context.Background(), []string{"a1", "a2", "a3"}, false, "2025-06-01", "2025-06-15")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3"}, queried)
	require.Len(t, envelopes, 2)
	assert.Equal(t, "ad-a1", envelopes[0].Records()[0].Attributes.Ad.ID)
	assert.Equal(t, "ad-a3", envelopes[1].Records()[0].Attributes.Ad.ID)
}

func TestFetchAllInsightsBulk(t *testing.T) {
	srv := graphQLServer(t, func(_ string, variables map[string]any) (int, string) {
		assert.Len(t, variables["ids"], 2)
		return 200, `{"data": {"campaignGroupInsight": {"records": {"edges": [
			{"node": ` + insightBody("ad-1", "2025-06-01", 1) + `}
		]}}}}`
	})
	defer srv.Close()

	envelopes, err := newTestClient(t, srv.URL).FetchAllInsights(context.Background(), []string{"a1", "a2"}, true, "2025-06-01", "2025-06-15")
	require.NoError(t, err)
	require.Len(t, envelopes, 1)

	// no advertisers means nothing to fetch
	envelopes, err = newTestClient(t, srv.URL).FetchAllInsights(context.Background(), nil, true, "2025-06-01", "2025-06-15")
	require.NoError(t, err)
	assert.Nil(t, envelopes)
}
