// Package loadgen writes synthetic student record files and submits them to
// a running server. It backs the generate command and is handy for load runs.
package loadgen

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/okian/gradecast/internal/domain/records"
	"github.com/okian/gradecast/pkg/logger"
)

// Profile is a performance tier used to draw a row's inputs.
type Profile int

// Performance tiers, weighted by how often they are drawn.
const (
	ProfileAverage Profile = iota
	ProfileHigh
	ProfileLow
	ProfileElite
	ProfileVeryLow
	ProfileWide
)

// band is a closed range [lo, hi] as a fraction of each input's domain.
type band struct{ lo, hi float64 }

var profileBands = map[Profile]band{
	ProfileAverage: {0.45, 0.75},
	ProfileHigh:    {0.70, 0.90},
	ProfileLow:     {0.10, 0.45},
	ProfileElite:   {0.90, 1.00},
	ProfileVeryLow: {0.00, 0.15},
	ProfileWide:    {0.00, 1.00},
}

// profileWeights sum to 100.
var profileWeights = []struct {
	p      Profile
	weight int
}{
	{ProfileAverage, 35},
	{ProfileHigh, 20},
	{ProfileLow, 20},
	{ProfileElite, 5},
	{ProfileVeryLow, 5},
	{ProfileWide, 15},
}

// Input domains used to scale a band.
const (
	maxAttendance    = 100.0
	maxStudyHours    = 40.0
	maxInternalMarks = 100.0
	maxAssignments   = 10
	maxActivities    = 5
)

// Stats summarizes one generated file.
type Stats struct {
	Rows      int
	Malformed int
	ByProfile map[Profile]int
}

// Generator draws synthetic rows.
type Generator struct {
	rows           int
	malformedEvery int
	idPrefix       string
	rng            *rand.Rand
	logger         logger.Logger
}

// NewGenerator creates a generator for rows data rows.
func NewGenerator(rows int, opts ...Option) *Generator {
	g := &Generator{
		rows:     rows,
		idPrefix: "STU",
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // synthetic data
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Write emits the header and every row to w. Every malformedEvery-th row is
// cut short so the parser's skip path is exercised.
func (g *Generator) Write(ctx context.Context, w io.Writer) (Stats, error) {
	stats := Stats{ByProfile: make(map[Profile]int)}
	cw := csv.NewWriter(w)
	if err := cw.Write(records.Header); err != nil {
		return stats, fmt.Errorf("write header: %w", err)
	}

	for i := 1; i <= g.rows; i++ {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("generation cancelled at row %d: %w", i, err)
		}

		p := g.pickProfile()
		row := g.row(i, p)
		if g.malformedEvery > 0 && i%g.malformedEvery == 0 {
			row = row[:records.FieldCount/2]
			stats.Malformed++
		} else {
			stats.ByProfile[p]++
		}
		if err := cw.Write(row); err != nil {
			return stats, fmt.Errorf("write row %d: %w", i, err)
		}
		stats.Rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return stats, fmt.Errorf("flush rows: %w", err)
	}
	g.logger.Info(ctx, "generated synthetic batch",
		logger.Int("rows", stats.Rows), logger.Int("malformed", stats.Malformed))
	return stats, nil
}

func (g *Generator) pickProfile() Profile {
	n := g.rng.IntN(100)
	for _, pw := range profileWeights {
		if n < pw.weight {
			return pw.p
		}
		n -= pw.weight
	}
	return ProfileWide
}

func (g *Generator) draw(b band, limit float64) float64 {
	v := (b.lo + g.rng.Float64()*(b.hi-b.lo)) * limit
	return math.Round(v*10) / 10
}

func (g *Generator) row(i int, p Profile) []string {
	b := profileBands[p]
	return []string{
		fmt.Sprintf("%s%05d", g.idPrefix, i),
		strconv.FormatFloat(g.draw(b, maxAttendance), 'f', -1, 64),
		strconv.FormatFloat(g.draw(b, maxStudyHours), 'f', -1, 64),
		strconv.FormatFloat(g.draw(b, maxInternalMarks), 'f', -1, 64),
		strconv.Itoa(int(g.draw(b, maxAssignments))),
		strconv.Itoa(int(g.draw(b, maxActivities))),
	}
}
