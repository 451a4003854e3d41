// Package core provides the ports between the service layer and its
// collaborators (hexagonal architecture): the job store, the stats cache,
// and the handler catalog.
package core

import (
	"github.com/openscale/jobforge/internal/domain/model"
)

// SubmitJobRequest is re-exported here for use in HTTP handlers to avoid
// direct coupling to the model package.
type SubmitJobRequest = model.SubmitJobRequest
