// Package classify provides the upstream classifier backends the provider
// selector chooses between: a local rule-based classifier plus OpenAI and
// Anthropic adapters.
package classify

import (
	"context"
	"fmt"

	"github.com/tributary-ai/triage-router/internal/types"
)

// Classifier analyzes request text and produces the category, confidence,
// sentiment and complexity signals the routing scorer consumes.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) (*types.ClassifierOutput, error)
}

// Registry maps provider ids to classifier backends.
type Registry struct {
	classifiers map[string]Classifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{classifiers: make(map[string]Classifier)}
}

// Register adds a classifier under a provider id.
func (r *Registry) Register(providerID string, c Classifier) {
	r.classifiers[providerID] = c
}

// Get returns the classifier registered for a provider id.
func (r *Registry) Get(providerID string) (Classifier, error) {
	c, ok := r.classifiers[providerID]
	if !ok {
		return nil, fmt.Errorf("no classifier registered for provider %s", providerID)
	}
	return c, nil
}

// clampUnit constrains a value to [0,1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
