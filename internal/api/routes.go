package api

import (
	"net/http"

	"github.com/JaimeStill/pathways/internal/config"
	"github.com/JaimeStill/pathways/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	groups := []routes.Group{
		domain.Processing.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
	}

	if runtime.Stages.Local {
		stages := newStageHandler(runtime.Stages, runtime.Logger, cfg.API.MaxUploadSizeBytes())
		groups = append(groups, stages.routes())
	}

	spec, err := openAPIGroup(cfg, runtime.Stages.Local)
	if err != nil {
		return err
	}
	groups = append(groups, spec)

	routes.Register(mux, groups...)

	for _, pattern := range routes.Patterns(groups...) {
		runtime.Logger.Debug("route registered", "pattern", cfg.API.BasePath+" "+pattern)
	}
	return nil
}
