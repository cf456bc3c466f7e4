package controllers

import (
	"net/http"

	"github.com/rzbill/datalog/internal/auth"
	"github.com/rzbill/datalog/internal/runtime"
	datalogsvc "github.com/rzbill/datalog/internal/services/datalog"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general *GeneralController
	datalog *DatalogController
}

// NewControllerRegistry creates a new controller registry.
func NewControllerRegistry(rt *runtime.Runtime, svc *datalogsvc.Service, authn auth.Authenticator, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general: NewGeneralController(rt),
		datalog: NewDatalogController(svc, authn, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.datalog.RegisterRoutes(mux)
}
