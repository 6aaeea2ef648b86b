package api

import (
	"github.com/JaimeStill/sdgindex/internal/classifier"
	"github.com/JaimeStill/sdgindex/internal/records"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Records    records.System
	Classifier classifier.Client
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	return &Domain{
		Records: records.New(
			runtime.Database.Connection(),
			runtime.Logger,
			runtime.Pagination,
		),
		Classifier: runtime.Classifier,
	}
}
