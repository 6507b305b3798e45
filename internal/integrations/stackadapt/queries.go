package stackadapt

// GraphQL documents sent to the StackAdapt API.

const queryTestConnection = `
query TestConnection {
  __schema {
    types {
      name
    }
  }
}`

const queryAllAdvertiserIds = `
query GetAllAdvertiserIds {
  advertisers(first: 100) {
    edges {
      node {
        id
        name
      }
    }
  }
}`

const queryAdInsightsByDay = `
query GetAdInsightsByDay($ids: [ID!]!, $dateFrom: ISO8601Date!, $dateTo: ISO8601Date!) {
  campaignGroupInsight(
    attributes: [AD, DATE]
    date: {
      from: $dateFrom
      to: $dateTo
    }
    filterBy: {
      advertiserIds: $ids
    }
  ) {
    ... on CampaignGroupInsightOutcome {
      records {
        edges {
          node {
            attributes {
              ad {
                id
                name
                campaign {
                  id
                  name
                  campaignGoal {
                    goalsConnection(first:1) {
                      edges {
                        node {
                          goalType
                        }
                      }
                    }
                  }
                  goalType
                  campaignGroup {
                    id
                    name
                    advertiser {
                      id
                      name
                    }
                  }
                }
              }
              date
            }
            metrics {
              clicks
              clickConversions
              engagements
              videoStarts
              videoQ1Playbacks
              videoQ2Playbacks
              videoQ3Playbacks
              videoCompletions
              impressions
              frequency
              cost
            }
          }
        }
      }
    }
  }
}`
