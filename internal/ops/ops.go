package ops

import (
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/ale2ccc/internal/config"
	"github.com/hpungsan/ale2ccc/internal/logger"
	"github.com/hpungsan/ale2ccc/internal/metrics"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Deps carries the collaborators shared by operations.
// DB and Metrics are optional; a nil value turns the feature off.
type Deps struct {
	DB      *sql.DB
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Manager
}

func (d Deps) log() logger.Logger {
	if d.Logger == nil {
		return logger.Nop()
	}
	return d.Logger
}

func (d Deps) cfg() *config.Config {
	if d.Config == nil {
		return config.DefaultConfig()
	}
	return d.Config
}

// generateULID generates a new ULID.
func generateULID(now time.Time) (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
