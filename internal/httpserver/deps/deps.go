package deps

import (
	"net/http"
	"time"

	"github.com/axondata/go-supervise"
	"github.com/axondata/go-supervise/internal/logger"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Manager   *supervise.Manager // resolves names and runs bulk reads
	Services  []string           // services listed by GET /api/services
	Metrics   http.Handler       // nil disables /metrics
}
