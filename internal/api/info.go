package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-walkmap/internal/service"
)

// InfoHandler reports what the server is serving.
type InfoHandler struct {
	dataDir     string
	dbOK        bool
	travelTimes *service.TravelTimeService
	schemes     *service.SchemeService
}

func NewInfoHandler(dataDir string, dbOK bool, travelTimes *service.TravelTimeService, schemes *service.SchemeService) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, travelTimes: travelTimes, schemes: schemes}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name         string   `json:"name" doc:"Service name"`
	Version      string   `json:"version" doc:"Service version"`
	DataDir      string   `json:"data_dir" doc:"Data directory path"`
	DB           bool     `json:"db" doc:"Whether database is available"`
	Payload      string   `json:"payload" doc:"Installed travel-time payload"`
	Features     int      `json:"features" doc:"Number of features in the payload"`
	Destinations []string `json:"destinations" doc:"Destination categories in payload order"`
	Schemes      []string `json:"schemes" doc:"Configured color schemes"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:         "plat-walkmap",
		Version:      "0.1.0",
		DataDir:      h.dataDir,
		DB:           h.dbOK,
		Payload:      h.travelTimes.Current(),
		Features:     len(h.travelTimes.Records()),
		Destinations: h.travelTimes.DestinationNames(),
		Schemes:      h.schemes.IDs(),
	}}, nil
}
