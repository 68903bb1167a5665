package simfeed

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"

	"github.com/google/uuid"
	"github.com/okian/tally/pkg/logger"
)

// Constants for random number generation.
const (
	randomIntDivisor = 1000000
	archetypeDivisor = 5
)

// Baseline vector ranges per roster archetype.
const (
	casualPowerBase    = 100_000
	casualPowerRange   = 400_000
	grinderPowerBase   = 500_000
	grinderPowerRange  = 1_500_000
	whalePowerBase     = 2_000_000
	whalePowerRange    = 8_000_000
	baseKillsT4Range   = 5_000
	baseKillsT5Range   = 1_000
	baseLossesRange    = 50_000
	whaleKillsMultiple = 10
)

// Per-step growth ranges.
const (
	idleChance        = 2 // 2 in archetypeDivisor steps produce no growth
	stepPowerRange    = 50_000
	stepKillsT4Range  = 120
	stepKillsT5Range  = 25
	stepLossesRange   = 2_000
	powerDipChance    = 20 // 1 in powerDipChance steps loses power
	powerDipRange     = 30_000
	anomalyDipChance  = 400 // 1 in anomalyDipChance steps dips a kill counter
	anomalyKillsRange = 10
)

// Roster archetype cases.
const (
	caseCasual = iota
	caseGrinder
	caseWhale
	caseDormant
	caseMixed
)

// member is one synthetic roster entry with its current running vector.
type member struct {
	ID        string
	Name      string
	archetype int64
	current   metricVector
}

// randInt64 returns a uniform random value in [0, n) using crypto/rand.
func randInt64(n int64) int64 {
	if n <= 0 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// buildRoster creates the synthetic roster concurrently, one unique id per
// member, with baseline vectors drawn per archetype.
func buildRoster(ctx context.Context, config *Config, stats *Stats) ([]*member, error) {
	logger.Get().Info(ctx, "building synthetic roster", logger.Int("entities", config.Entities))

	roster := make([]*member, config.Entities)

	type result struct {
		index int
		m     *member
		err   error
	}

	resultChan := make(chan result, config.Entities)

	workerCount := minInt(config.Workers, config.Entities)
	perWorker := config.Entities / workerCount

	for worker := 0; worker < workerCount; worker++ {
		start := worker * perWorker
		end := start + perWorker
		if worker == workerCount-1 {
			end = config.Entities
		}

		go func(start, end int) {
			for i := start; i < end; i++ {
				select {
				case <-ctx.Done():
					resultChan <- result{index: i, err: ctx.Err()}
					return
				default:
					resultChan <- result{index: i, m: newMember(i)}
				}
			}
		}(start, end)
	}

	for i := 0; i < config.Entities; i++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled during roster generation: %w", ctx.Err())
		case res := <-resultChan:
			if res.err != nil {
				return nil, fmt.Errorf("failed to generate roster member %d: %w", res.index, res.err)
			}
			roster[res.index] = res.m
		}
	}

	stats.RosterSize = len(roster)
	logger.Get().Info(ctx, "roster built", logger.Int("count", len(roster)))

	return roster, nil
}

// newMember creates one roster member with an archetype-shaped baseline.
func newMember(index int) *member {
	archetype := randInt64(archetypeDivisor)

	var vec metricVector
	switch archetype {
	case caseCasual, caseDormant:
		vec.Power = casualPowerBase + randInt64(casualPowerRange)
		vec.KillsTier4 = randInt64(baseKillsT4Range)
		vec.KillsTier5 = randInt64(baseKillsT5Range)
	case caseGrinder, caseMixed:
		vec.Power = grinderPowerBase + randInt64(grinderPowerRange)
		vec.KillsTier4 = randInt64(baseKillsT4Range * 2)
		vec.KillsTier5 = randInt64(baseKillsT5Range * 2)
	case caseWhale:
		vec.Power = whalePowerBase + randInt64(whalePowerRange)
		vec.KillsTier4 = randInt64(baseKillsT4Range * whaleKillsMultiple)
		vec.KillsTier5 = randInt64(baseKillsT5Range * whaleKillsMultiple)
	}
	vec.Losses = randInt64(baseLossesRange)

	return &member{
		ID:        uuid.New().String(),
		Name:      "player_" + strconv.Itoa(index),
		archetype: archetype,
		current:   vec,
	}
}

// advance mutates the member's running vector by one simulated step. Kill and
// loss counters only grow; power may dip, and very rarely a kill counter dips
// too so downstream anomaly flagging has something to catch.
func (m *member) advance() {
	// Dormant members sit out most steps.
	if m.archetype == caseDormant && randInt64(archetypeDivisor) < idleChance {
		return
	}

	growth := int64(1)
	if m.archetype == caseWhale || m.archetype == caseGrinder {
		growth = 3
	}

	m.current.Power += randInt64(stepPowerRange) * growth
	m.current.KillsTier4 += randInt64(stepKillsT4Range) * growth
	m.current.KillsTier5 += randInt64(stepKillsT5Range) * growth
	m.current.Losses += randInt64(stepLossesRange)

	// Power is not monotonic; troops die, gear gets dismantled.
	if randInt64(powerDipChance) == 0 {
		m.current.Power -= randInt64(powerDipRange)
		if m.current.Power < 0 {
			m.current.Power = 0
		}
	}

	// Simulate a rare upstream correction on a monotonic counter.
	if randInt64(anomalyDipChance) == 0 && m.current.KillsTier4 > anomalyKillsRange {
		m.current.KillsTier4 -= randInt64(anomalyKillsRange)
	}
}

// row renders the member as one wire entity row.
func (m *member) row() entityMetrics {
	return entityMetrics{
		EntityID: m.ID,
		Name:     m.Name,
		Metrics:  m.current,
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
