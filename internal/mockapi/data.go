// Package mockapi implements the local mock usage API used for development
// and integration testing: deterministic generated usage logs behind the same
// pagination contract the real provider exposes.
package mockapi

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/acuworks/finops-cli/internal/model"
)

var businessUnits = []string{"Finance", "Engineering", "Operations", "Marketing", "Sales", "HR"}

var taskTypes = []model.TaskType{
	model.TaskBugFix,
	model.TaskRefactor,
	model.TaskFeature,
	model.TaskTesting,
	model.TaskDocumentation,
}

var outcomes = []model.SessionOutcome{
	model.OutcomeSuccess,
	model.OutcomeFailure,
	model.OutcomeIdle,
}

// GenerateLogs produces count synthetic usage logs from a seeded source, so
// the same seed always serves the same dataset. Logs come back newest first,
// matching the provider ordering.
func GenerateLogs(count int, seed int64) []model.UsageLog {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	logs := make([]model.UsageLog, 0, count)
	for i := 0; i < count; i++ {
		hasPR := rng.Float64() > 0.3
		prID := ""
		if hasPR {
			prID = fmt.Sprintf("pr_%d", rng.Intn(9999)+1)
		}

		ts := base.Add(
			time.Duration(rng.Intn(291))*24*time.Hour +
				time.Duration(rng.Intn(24))*time.Hour +
				time.Duration(rng.Intn(60))*time.Minute +
				time.Duration(rng.Intn(60))*time.Second,
		)

		acus := math.Round((10+rng.Float64()*490)*100) / 100
		outcome := outcomes[rng.Intn(len(outcomes))]
		hour := ts.Hour()

		logs = append(logs, model.UsageLog{
			SessionID:      fmt.Sprintf("sess_%06d", i),
			UserID:         fmt.Sprintf("user_%04d", rng.Intn(100)+1),
			OrganizationID: fmt.Sprintf("org_%03d", rng.Intn(10)+1),
			ProjectID:      fmt.Sprintf("proj_%03d", rng.Intn(50)+1),
			PullRequestID:  prID,
			Timestamp:      ts,
			ACUConsumed:    acus,
			BusinessUnit:   businessUnits[rng.Intn(len(businessUnits))],
			TaskType:       taskTypes[rng.Intn(len(taskTypes))],
			IsOutOfHours:   hour < 8 || hour >= 18 || ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday,
			IsMerged:       outcome == model.OutcomeSuccess && hasPR && rng.Float64() > 0.2,
			SessionOutcome: outcome,
		})
	}

	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
	return logs
}
