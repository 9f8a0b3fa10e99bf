package gaps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pain(topic, evidence string, engagement int) PainPoint {
	return PainPoint{Topic: topic, Struggle: "struggles with " + topic, Sentiment: "confused", Evidence: evidence, Engagement: engagement}
}

func clusterPoints() []PainPoint {
	return []PainPoint{
		pain("docker networking", "bridge vs host?", 10),       // 1
		pain("Docker Networking", "containers can't talk", 5),  // 2
		pain("docker networks", "overlay across hosts", 20),    // 3
		pain("volumes", "where is my data", 3),                 // 4
		pain("volumes", "bind mount permissions", 2),           // 5
		pain("your hoodie", "where did you buy the hoodie", 1), // 6
		pain("your hoodie", "link to hoodie", 1),               // 7
		pain("your hoodie", "hoodie brand?", 1),                // 8
	}
}

func TestCluster_RecomputesAndGates(t *testing.T) {
	resp := `{"gaps": [
		{"topic": "Docker networking", "struggle": "connecting containers", "source_ids": [1, 2, 3, 3, 42],
		 "total_engagement": 9999, "mention_count": 12, "actionable": true,
		 "sample_evidence": ["made up quote"], "video_angles": ["bridge vs overlay", "debugging with tcpdump", "third"]},
		{"topic": "volumes", "source_ids": [4, 5], "mention_count": 3, "actionable": true},
		{"topic": "your hoodie", "source_ids": [6, 7, 8], "mention_count": 3, "actionable": false,
		 "actionability_reason": "merch question"}
	]}`
	b := &fakeBackend{respond: func(string) (string, error) { return resp, nil }}

	gaps := NewClusterer(b, 3).Cluster(context.Background(), clusterPoints())
	require.Len(t, gaps, 1)
	g := gaps[0]
	assert.Equal(t, "docker networking", g.Topic, "topic is taken from the inputs")
	assert.Equal(t, "connecting containers", g.Struggle)
	assert.Equal(t, 3, g.MentionCount)
	assert.Equal(t, 35, g.TotalEngagement)
	assert.Equal(t, []string{"bridge vs host?", "containers can't talk", "overlay across hosts"}, g.SampleEvidence)
	assert.Equal(t, []string{"bridge vs overlay", "debugging with tcpdump"}, g.VideoAngles)
	assert.Contains(t, b.prompts[0], "fewer than 3 times")
}

func TestCluster_MentionInvariant(t *testing.T) {
	resp := `{"gaps": [
		{"topic": "docker networking", "source_ids": [1, 2, 3], "actionable": true},
		{"topic": "volumes", "source_ids": [4, 5], "actionable": true},
		{"topic": "your hoodie", "source_ids": [6, 7, 8], "actionable": true}
	]}`
	b := &fakeBackend{respond: func(string) (string, error) { return resp, nil }}

	for _, threshold := range []int{1, 3} {
		gaps := NewClusterer(b, threshold).Cluster(context.Background(), clusterPoints())
		for _, g := range gaps {
			assert.GreaterOrEqual(t, g.MentionCount, threshold)
			assert.True(t, g.Actionable)
		}
	}
	assert.Len(t, NewClusterer(b, 3).Cluster(context.Background(), clusterPoints()), 2)
	assert.Len(t, NewClusterer(b, 0).Cluster(context.Background(), clusterPoints()), 3)
}

func TestCluster_InventedTopicAndClaimedIDs(t *testing.T) {
	resp := `{"gaps": [
		{"topic": "Container Connectivity Masterclass", "source_ids": [1, 2, 3], "actionable": true},
		{"topic": "docker networking", "source_ids": [1, 2, 3], "actionable": true},
		{"topic": "volumes", "source_ids": [], "actionable": true}
	]}`
	b := &fakeBackend{respond: func(string) (string, error) { return resp, nil }}

	gaps := NewClusterer(b, 1).Cluster(context.Background(), clusterPoints())
	require.Len(t, gaps, 2)
	assert.Equal(t, "docker networking", gaps[0].Topic)
	assert.Equal(t, 3, gaps[0].MentionCount, "ids are not counted twice")
	assert.Equal(t, "volumes", gaps[1].Topic)
	assert.Equal(t, 2, gaps[1].MentionCount, "empty source_ids fall back to topic match")
	assert.Equal(t, 5, gaps[1].TotalEngagement)
}

func TestCluster_FallbackMergeOnBackendFailure(t *testing.T) {
	gaps := NewClusterer(failingBackend(), 2).Cluster(context.Background(), clusterPoints())
	require.Len(t, gaps, 3)

	assert.Equal(t, "docker networking", gaps[0].Topic)
	assert.Equal(t, 2, gaps[0].MentionCount)
	assert.Equal(t, 15, gaps[0].TotalEngagement)
	assert.Equal(t, "volumes", gaps[1].Topic)
	assert.Equal(t, "your hoodie", gaps[2].Topic)
	for _, g := range gaps {
		assert.True(t, g.Actionable)
	}
}

func TestCluster_Empty(t *testing.T) {
	b := failingBackend()
	assert.Empty(t, NewClusterer(b, 3).Cluster(context.Background(), nil))
	assert.Zero(t, b.calls())
}
