package observability

import (
	"github.com/rs/zerolog"

	logs "github.com/danmuck/packlink/internal/logging"
)

// InitLogger derives a component logger tagged with the node name from the
// process logger.
func InitLogger(node string) zerolog.Logger {
	return logs.Logger().With().Str("node", node).Logger()
}
