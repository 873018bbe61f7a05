package export

import (
	"go-availability/core/config"
	"go-availability/core/middleware"
	"go-availability/core/queue"
	"go-availability/core/storage"
	"go-availability/modules/export/controller"
	"go-availability/modules/export/router"
	"go-availability/modules/export/service"

	"github.com/labstack/echo/v4"
)

// NewService wires the export service from configuration. q and store may be
// nil when exports are not configured.
func NewService(source service.SnapshotSource, q queue.Enqueuer, store storage.ObjectStore) *service.ExportService {
	cfg := config.Get()
	return service.NewExportService(source, q, store, service.Options{
		TopN:        cfg.Calendar.TopN,
		SlotMinutes: cfg.Calendar.SlotMinutes,
		PresignTTL:  cfg.S3.PresignTTL,
	})
}

// Init initializes the export module and registers routes
func Init(e *echo.Echo, source service.SnapshotSource, q queue.Enqueuer, store storage.ObjectStore, mw *middleware.Middleware) {
	svc := NewService(source, q, store)
	ctrl := controller.NewExportController(svc)
	rtr := router.NewExportRouter(ctrl)

	rtr.Setup(e, mw)
}
