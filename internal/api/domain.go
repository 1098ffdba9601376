package api

import (
	"fmt"

	"github.com/wardenhq/warden/internal/classifications"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/documents"
	"github.com/wardenhq/warden/internal/features"
	"github.com/wardenhq/warden/internal/learning"
	"github.com/wardenhq/warden/internal/progress"
	"github.com/wardenhq/warden/internal/workflow"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Documents       documents.System
	Classifications classifications.System
	Learning        learning.System
	Progress        *progress.Broker
}

// NewDomain creates all domain systems from the API runtime. The learning
// system is bound to the classification results system so reviewer feedback
// flows back into stored results.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	rules, err := features.Load(cfg.RulesPath)
	if err != nil {
		return nil, fmt.Errorf("load feature rules: %w", err)
	}

	detector, err := features.NewDetector(rules)
	if err != nil {
		return nil, fmt.Errorf("build feature detector: %w", err)
	}

	learner := learning.New(
		learning.NewStore(runtime.Database.Connection(), runtime.Logger),
		runtime.Logger,
	)

	docsSystem := documents.New(
		runtime.Database.Connection(),
		runtime.Storage,
		nil,
		runtime.Logger,
		runtime.Pagination,
	)

	broker := progress.NewBroker()

	classificationsSystem := classifications.New(
		runtime.Database.Connection(),
		&workflow.Runtime{
			Primary:  runtime.Primary,
			Verifier: runtime.Verifier,
			Detector: detector,
			Learner:  learner,
			Logger:   runtime.Logger,
		},
		docsSystem,
		broker,
		runtime.Logger,
		runtime.Pagination,
		cfg.API.BatchWorkers,
	)

	learner.Bind(classificationsSystem)

	return &Domain{
		Documents:       docsSystem,
		Classifications: classificationsSystem,
		Learning:        learner,
		Progress:        broker,
	}, nil
}
