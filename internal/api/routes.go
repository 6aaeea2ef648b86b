package api

import (
	"net/http"

	"github.com/JaimeStill/sdgindex/internal/batch"
	"github.com/JaimeStill/sdgindex/internal/classifier"
	"github.com/JaimeStill/sdgindex/internal/export"
	"github.com/JaimeStill/sdgindex/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	routes.Register(
		mux,
		domain.Records.Handler().Routes(),
		classifier.NewHandler(domain.Classifier, runtime.Logger).Routes(),
		batch.NewHandler(runtime.Logger, runtime.MaxUploadSize).Routes(),
		export.NewHandler(domain.Records, runtime.Storage, runtime.Export, runtime.Logger).Routes(),
	)

	if runtime.Storage != nil {
		routes.Register(
			mux,
			newArchiveHandler(runtime.Storage, runtime.Logger, runtime.MaxListSize).routes(),
		)
	}
}
