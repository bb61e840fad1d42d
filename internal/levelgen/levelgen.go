// Package levelgen builds procedural test levels: a square grid of box
// areas whose floor heights follow layered simplex noise, linked by walk,
// jump and ledge reachabilities depending on the height difference.
package levelgen

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
)

var ErrInvalidConfig = errors.New("levelgen: invalid config")

// Config holds generation parameters.
type Config struct {
	Size       int     `toml:"size" json:"size" yaml:"size"`
	CellSide   float64 `toml:"cell_side" json:"cell_side" yaml:"cellSide"`
	CellHeight float64 `toml:"cell_height" json:"cell_height" yaml:"cellHeight"`
	// StepHeight is the floor height difference between noise levels.
	StepHeight float64 `toml:"step_height" json:"step_height" yaml:"stepHeight"`
	Levels     int     `toml:"levels" json:"levels" yaml:"levels"`
	// HoleRatio is the noise value under which a cell is left solid.
	HoleRatio float64 `toml:"hole_ratio" json:"hole_ratio" yaml:"holeRatio"`
	Frequency float64 `toml:"frequency" json:"frequency" yaml:"frequency"`
	Seed      int64   `toml:"seed" json:"seed" yaml:"seed"`
	Items     int     `toml:"items" json:"items" yaml:"items"`
}

func DefaultConfig() Config {
	return Config{
		Size:       8,
		CellSide:   192,
		CellHeight: 160,
		StepHeight: 16,
		Levels:     4,
		Frequency:  0.25,
		Seed:       1,
		Items:      6,
	}
}

// Movement limits, in world units.
const (
	maxWalkStep    = 18.0
	maxJumpHeight  = 40.0
	maxLedgeFall   = 128.0
	walkSpeed      = 320.0
	jumpExtraTime  = 20
	ledgeExtraTime = 10
	itemFloorShift = 16.0
)

// ItemKinds are cycled through when placing items.
var ItemKinds = []string{"health_mega", "armor_red", "quad", "armor_yellow", "weapon", "ammo", "health"}

// Item is a nav entity placement suggested by the generator.
type Item struct {
	Kind   string
	Origin geom.Vec3
}

// Level is a generated level.
type Level struct {
	World *aas.World
	// Cells holds the area number of every cell, row major, 0 for holes.
	Cells []int
	// Floors holds the floor height of every cell.
	Floors []float64
	Items  []Item
	Config Config
}

func (c Config) validate() error {
	switch {
	case c.Size <= 0:
		return fmt.Errorf("%w: size %d", ErrInvalidConfig, c.Size)
	case c.CellSide <= 0 || c.CellHeight <= 0:
		return fmt.Errorf("%w: cell %gx%g", ErrInvalidConfig, c.CellSide, c.CellHeight)
	case c.Levels <= 0:
		return fmt.Errorf("%w: levels %d", ErrInvalidConfig, c.Levels)
	case c.HoleRatio < 0 || c.HoleRatio >= 1:
		return fmt.Errorf("%w: hole ratio %g", ErrInvalidConfig, c.HoleRatio)
	}
	return nil
}

// Generate builds a level. The same config always yields the same level.
func Generate(cfg Config, opts ...aas.Option) (*Level, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Frequency <= 0 {
		cfg.Frequency = DefaultConfig().Frequency
	}
	noise := opensimplex.NewNormalized(cfg.Seed)
	n := cfg.Size

	cells := make([]int, n*n)
	floors := make([]float64, n*n)
	b := aas.NewBuilder()
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			value := octaveNoise(noise, float64(col), float64(row), 3, cfg.Frequency, 0.5)
			if value < cfg.HoleRatio {
				continue
			}
			level := int(value * float64(cfg.Levels))
			if level >= cfg.Levels {
				level = cfg.Levels - 1
			}
			floor := float64(level) * cfg.StepHeight
			x, y := float64(col)*cfg.CellSide, float64(row)*cfg.CellSide
			i := row*n + col
			cells[i] = b.AddArea(geom.V(x, y, floor), geom.V(x+cfg.CellSide, y+cfg.CellSide, floor+cfg.CellHeight))
			floors[i] = floor
		}
	}

	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			i := row*n + col
			if col+1 < n {
				link(b, cfg, cells[i], cells[i+1], floors[i], floors[i+1])
			}
			if row+1 < n {
				link(b, cfg, cells[i], cells[i+n], floors[i], floors[i+n])
			}
		}
	}

	world, err := b.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("levelgen: build: %w", err)
	}
	lvl := &Level{World: world, Cells: cells, Floors: floors, Config: cfg}
	lvl.Items = placeItems(cfg, cells, floors)
	return lvl, nil
}

func link(b *aas.Builder, cfg Config, a, c int, floorA, floorC float64) {
	if a == 0 || c == 0 {
		return
	}
	dz := floorC - floorA
	if math.Abs(dz) <= maxWalkStep {
		b.LinkWalk(a, c)
		return
	}
	low, high, rise := a, c, dz
	if dz < 0 {
		low, high, rise = c, a, -dz
	}
	walkTime := int(math.Round(cfg.CellSide / walkSpeed * 100))
	if rise <= maxLedgeFall {
		b.AddReach(high, low, aas.TravelWalkOffLedge, walkTime+ledgeExtraTime)
	}
	if rise <= maxJumpHeight {
		b.AddReach(low, high, aas.TravelJump, walkTime+jumpExtraTime)
	}
}

// octaveNoise layers octaves of noise with doubling frequency.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

func placeItems(cfg Config, cells []int, floors []float64) []Item {
	if cfg.Items <= 0 {
		return nil
	}
	var open []int
	for i, areaNum := range cells {
		if areaNum != 0 {
			open = append(open, i)
		}
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	rng.Shuffle(len(open), func(i, j int) { open[i], open[j] = open[j], open[i] })
	count := cfg.Items
	if count > len(open) {
		count = len(open)
	}
	items := make([]Item, 0, count)
	for k := 0; k < count; k++ {
		i := open[k]
		row, col := i/cfg.Size, i%cfg.Size
		items = append(items, Item{
			Kind: ItemKinds[k%len(ItemKinds)],
			Origin: geom.V(
				(float64(col)+0.5)*cfg.CellSide,
				(float64(row)+0.5)*cfg.CellSide,
				floors[i]+itemFloorShift,
			),
		})
	}
	return items
}
