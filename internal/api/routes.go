package api

import (
	"net/http"

	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) {
	routes.Register(
		mux,
		domain.Documents.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
		domain.Classifications.Handler().Routes(),
		domain.Learning.Handler().Routes(),
	)
}
