package tactical

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"arena-bots/server/internal/aas"
	"arena-bots/server/logging"
	loggingtactical "arena-bots/server/logging/tactical"
)

// ErrNoCachedSpots is returned when no spots are stored for a checksum.
var ErrNoCachedSpots = errors.New("tactical: no cached spots")

// spotsFormatVersion changes whenever the stored blob layout changes.
const spotsFormatVersion = 1

// SpotCache persists picked spots keyed by the area file checksum so a
// level load can skip picking them again.
type SpotCache struct {
	conn      *sqlx.DB
	publisher logging.Publisher
}

type spotsRow struct {
	Checksum string `db:"checksum"`
	Version  int    `db:"version"`
	NumSpots int    `db:"num_spots"`
	Data     []byte `db:"data"`
}

// OpenSpotCache opens or creates the SQLite database at path. Use
// ":memory:" for a throwaway cache.
func OpenSpotCache(path string, pub logging.Publisher) (*SpotCache, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open spot cache: %w", err)
	}
	// A memory database lives only as long as its single connection.
	conn.SetMaxOpenConns(1)

	c := &SpotCache{conn: conn, publisher: pub}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate spot cache: %w", err)
	}
	return c, nil
}

func (c *SpotCache) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *SpotCache) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tactical_spots (
		checksum TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		num_spots INTEGER NOT NULL,
		data BLOB NOT NULL
	);`
	_, err := c.conn.Exec(schema)
	return err
}

// Save stores the spots of registry, replacing any previous entry.
func (c *SpotCache) Save(ctx context.Context, registry *Registry) error {
	if registry == nil {
		return nil
	}
	data, err := msgpack.Marshal(registry.Spots())
	if err != nil {
		return fmt.Errorf("encode spots: %w", err)
	}
	_, err = c.conn.NamedExecContext(ctx, `INSERT OR REPLACE INTO tactical_spots
		(checksum, version, num_spots, data) VALUES (:checksum, :version, :num_spots, :data)`,
		spotsRow{
			Checksum: registry.Checksum(),
			Version:  spotsFormatVersion,
			NumSpots: registry.NumSpots(),
			Data:     data,
		})
	if err != nil {
		return fmt.Errorf("save spots: %w", err)
	}
	return nil
}

// Load restores the registry stored for the checksum of world.
func (c *SpotCache) Load(ctx context.Context, world *aas.World) (*Registry, error) {
	var row spotsRow
	err := c.conn.GetContext(ctx, &row,
		`SELECT checksum, version, num_spots, data FROM tactical_spots WHERE checksum = ?`, world.Checksum())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoCachedSpots
	}
	if err != nil {
		return nil, fmt.Errorf("load spots: %w", err)
	}
	if row.Version != spotsFormatVersion {
		return nil, ErrNoCachedSpots
	}
	var spots []Spot
	if err := msgpack.Unmarshal(row.Data, &spots); err != nil {
		return nil, fmt.Errorf("decode spots: %w", err)
	}
	if len(spots) != row.NumSpots {
		return nil, fmt.Errorf("decode spots: expected %d spots, got %d", row.NumSpots, len(spots))
	}
	registry := NewRegistry(world, spots)
	loggingtactical.SpotRegistryLoaded(ctx, c.publisher, 0, loggingtactical.SpotRegistryPayload{
		Checksum: registry.Checksum(),
		Spots:    registry.NumSpots(),
		Source:   "cache",
	}, nil)
	return registry, nil
}

// LoadOrBuild returns cached spots for world, picking and storing them when
// none are cached.
func (c *SpotCache) LoadOrBuild(ctx context.Context, builder *RegistryBuilder) (*Registry, error) {
	registry, err := c.Load(ctx, builder.world)
	if err == nil {
		return registry, nil
	}
	if !errors.Is(err, ErrNoCachedSpots) {
		return nil, err
	}
	registry = builder.Build()
	if registry == nil {
		return nil, aas.ErrNotLoaded
	}
	if err := c.Save(ctx, registry); err != nil {
		return registry, err
	}
	return registry, nil
}
