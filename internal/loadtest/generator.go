package loadtest

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/eventrank/internal/domain/types"
)

var (
	categories = []string{"workshop", "seminar", "competition", "expo", "bootcamp", "talk"}

	topics = []string{
		"machine learning", "robotics", "web development", "data science", "cloud computing",
		"entrepreneurship", "graphic design", "public speaking", "renewable energy", "cyber security",
		"mobile apps", "music production", "photography", "accounting", "game development",
	}

	formats = []string{
		"hands-on session on %s for beginners",
		"panel discussion about the future of %s",
		"weekend hackathon focused on %s",
		"career talk with practitioners in %s",
		"intensive study group covering %s fundamentals",
	}
)

// randIndex returns a uniform index in [0,n) using crypto/rand.
func randIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// generateEvents builds n embedding requests with unique event ids.
func generateEvents(n int) []types.EmbeddingRequest {
	events := make([]types.EmbeddingRequest, n)
	for i := range events {
		events[i] = generateSingleEvent()
	}
	return events
}

func generateSingleEvent() types.EmbeddingRequest {
	topic := topics[randIndex(len(topics))]
	format := formats[randIndex(len(formats))]
	category := categories[randIndex(len(categories))]

	return types.EmbeddingRequest{
		EventID:     "load-" + uuid.NewString(),
		Title:       strings.ToUpper(topic[:1]) + topic[1:] + " " + category,
		Description: strings.Replace(format, "%s", topic, 1),
		Category:    category,
	}
}
