package chat

import "strings"

type Topic string

const (
	TopicOrder     Topic = "order"
	TopicProduct   Topic = "product"
	TopicInventory Topic = "inventory"
)

type Topics map[Topic]struct{}

func (t Topics) Has(topic Topic) bool {
	_, ok := t[topic]
	return ok
}

// Classifier decides which context blocks a message needs. Topics are independent, so one
// message may map to several.
type Classifier interface {
	Classify(text string) Topics
}

// KeywordClassifier matches case-insensitive substrings.
type KeywordClassifier struct {
	keywords map[Topic][]string
}

var _ Classifier = (*KeywordClassifier)(nil)

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{keywords: map[Topic][]string{
		TopicOrder:     {"order", "track", "status", "shipped", "delivery"},
		TopicProduct:   {"product", "buy", "search", "find", "show", "price", "stock", "available"},
		TopicInventory: {"stock", "available", "inventory", "restock"},
	}}
}

func (c *KeywordClassifier) Classify(text string) Topics {
	lower := strings.ToLower(text)

	topics := Topics{}
	for topic, words := range c.keywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				topics[topic] = struct{}{}
				break
			}
		}
	}
	return topics
}
