package domain

import (
	"hash/fnv"
	"math/rand"
	"strings"
)

// Outcome is a policy verdict for one order. Reason is empty on success.
type Outcome struct {
	Success bool
	Reason  string
}

// Policy decides whether an order passes processing.
type Policy interface {
	Evaluate(orderID string, skus []string) Outcome
}

// RandomPolicy rejects embargoed SKUs outright and otherwise approves with
// a fixed probability. The coin flip is seeded from the order id so that
// redeliveries of the same event reach the same verdict.
type RandomPolicy struct {
	successProb float64
	embargoed   map[string]struct{}
}

func NewRandomPolicy(successProb float64, embargoSKUs []string) *RandomPolicy {
	embargoed := make(map[string]struct{}, len(embargoSKUs))
	for _, sku := range embargoSKUs {
		sku = strings.TrimSpace(sku)
		if sku != "" {
			embargoed[sku] = struct{}{}
		}
	}
	return &RandomPolicy{successProb: successProb, embargoed: embargoed}
}

func (p *RandomPolicy) Evaluate(orderID string, skus []string) Outcome {
	for _, sku := range skus {
		if _, ok := p.embargoed[sku]; ok {
			return Outcome{Success: false, Reason: "embargo:" + sku}
		}
	}

	h := fnv.New64a()
	h.Write([]byte(orderID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	if rng.Float64() < p.successProb {
		return Outcome{Success: true}
	}
	return Outcome{Success: false, Reason: "processing_error"}
}
