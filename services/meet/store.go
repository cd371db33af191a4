package meet

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"meetpoint/pkg/cache"
	"meetpoint/pkg/realtime"
)

// Store holds external dependencies required by the meet service. Cache
// and Hub are mandatory; DB and ORM may be nil, in which case the
// service runs cache-only. The cross-process broker is bound to the Hub
// directly, not carried here.
type Store struct {
	Cache *cache.Client
	DB    *pgxpool.Pool
	ORM   *gorm.DB
	Hub   *realtime.Hub
}
