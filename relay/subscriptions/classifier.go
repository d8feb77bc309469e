package subscriptions

import (
	"strings"

	"github.com/google/uuid"
)

// The driver error-constants catalog names the message emitted by a
// source driver when a subscription for the same (matcher, query)
// already exists. Matching that message is load-bearing: it is how a
// relay learns the canonical subscription's request id.
const subscriptionExistsKey = "event_subscription_exists"

// Classification is the outcome of classifying a subscription ack.
type Classification int

// Classification outcomes.
const (
	ClassOK Classification = iota
	ClassDuplicateSubscription
	ClassOther
)

// Classifier recognizes well-known driver error messages. Rules are
// injected from the configured catalog so driver wording can change
// without a relay release.
type Classifier struct {
	existsPattern string
}

// NewClassifier builds a classifier from the error-constants catalog.
// An absent pattern disables duplicate detection; every error then
// classifies as Other.
func NewClassifier(constants map[string]string) *Classifier {
	return &Classifier{existsPattern: constants[subscriptionExistsKey]}
}

// Classify inspects a driver-originated error message. For duplicate
// subscriptions it extracts the canonical request id, which drivers
// embed in the message as a uuid token.
func (c *Classifier) Classify(message string) (Classification, string) {
	if c.existsPattern == "" || !strings.Contains(message, c.existsPattern) {
		return ClassOther, ""
	}
	for _, tok := range strings.Fields(message) {
		tok = strings.Trim(tok, ".,;:")
		if id, err := uuid.Parse(tok); err == nil {
			return ClassDuplicateSubscription, id.String()
		}
	}
	return ClassOther, ""
}
