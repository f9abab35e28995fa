// Package transform normalizes raw usage records into the dataset shape the
// metrics calculator consumes.
package transform

import (
	"sort"

	"go.uber.org/zap"

	"github.com/acuworks/finops-cli/internal/model"
)

const (
	defaultOrganization = "Deloitte"
	defaultEmailDomain  = "deloitte.com"

	// acusPerMinute approximates session duration from compute spend when the
	// provider reports no wall-clock time.
	acusPerMinute = 5
)

// Options tunes the normalization. Zero values fall back to defaults.
type Options struct {
	Organization string
	EmailDomain  string
}

// Normalize converts raw usage logs into sessions and distinct users for the
// given reporting window. Session order follows the input; users come out
// sorted by email so output is stable.
func Normalize(logs []model.UsageLog, startDate, endDate string, opts Options) model.Dataset {
	if opts.Organization == "" {
		opts.Organization = defaultOrganization
	}
	if opts.EmailDomain == "" {
		opts.EmailDomain = defaultEmailDomain
	}

	sessions := make([]model.Session, 0, len(logs))
	departments := make(map[string]string)

	for _, lg := range logs {
		userID := lg.UserID
		if userID == "" {
			userID = "unknown"
		}
		email := userID + "@" + opts.EmailDomain

		unit := lg.BusinessUnit
		if unit == "" {
			unit = "Unknown"
		}
		departments[email] = unit

		sessions = append(sessions, model.Session{
			SessionID:       orUnknown(lg.SessionID),
			UserEmail:       email,
			DurationMinutes: durationFromACUs(lg.ACUConsumed),
			ACUsConsumed:    int(lg.ACUConsumed),
			TaskType:        orUnknown(string(lg.TaskType)),
			Status:          orUnknown(string(lg.SessionOutcome)),
		})
	}

	users := make([]model.User, 0, len(departments))
	for email, dept := range departments {
		users = append(users, model.User{Email: email, Department: dept, Role: "User"})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })

	zap.L().Info("normalized usage data",
		zap.Int("sessions", len(sessions)),
		zap.Int("users", len(users)),
	)

	return model.Dataset{
		Organization: opts.Organization,
		ReportingPeriod: model.ReportingPeriod{
			StartDate: startDate,
			EndDate:   endDate,
			Month:     startDate + " to " + endDate,
		},
		Sessions: sessions,
		Users:    users,
	}
}

// durationFromACUs estimates minutes of work from compute units, never less
// than one minute per session.
func durationFromACUs(acus float64) int {
	mins := int(acus / acusPerMinute)
	if mins < 1 {
		return 1
	}
	return mins
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
