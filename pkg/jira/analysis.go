package jira

import (
	"regexp"
	"time"
)

var keyPattern = regexp.MustCompile(`[A-Z][A-Z0-9]+-\d+`)

// ExtractKeys returns every Jira issue key (e.g. PROJ-123) found in the text.
func ExtractKeys(text string) []string {
	if text == "" {
		return nil
	}
	return keyPattern.FindAllString(text, -1)
}

// ExtractKeysFromTexts collects the distinct keys found across several text
// fragments (PR title, body, branch name), preserving first-seen order.
func ExtractKeysFromTexts(texts ...string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, text := range texts {
		for _, key := range ExtractKeys(text) {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

// CycleTime computes hours between the first transition to startStatus and
// the first transition to endStatus. Returns false when either transition is
// missing or out of order.
func CycleTime(changelog []ChangelogEntry, startStatus, endStatus string) (float64, bool) {
	var startTime, endTime *time.Time

	for _, entry := range changelog {
		for _, item := range entry.Items {
			if item.Field != "status" {
				continue
			}
			if item.ToString == startStatus && startTime == nil {
				if t, ok := ParseTime(entry.Created); ok {
					startTime = &t
				}
			}
			if item.ToString == endStatus && endTime == nil {
				if t, ok := ParseTime(entry.Created); ok {
					endTime = &t
				}
			}
		}
	}

	if startTime == nil || endTime == nil || !endTime.After(*startTime) {
		return 0, false
	}
	return endTime.Sub(*startTime).Hours(), true
}

// WasReopened reports whether the issue transitioned to reopenStatus within
// daysThreshold days after a transition to doneStatus.
func WasReopened(changelog []ChangelogEntry, doneStatus, reopenStatus string, daysThreshold int) bool {
	var doneTime *time.Time

	for _, entry := range changelog {
		for _, item := range entry.Items {
			if item.Field != "status" {
				continue
			}
			if item.ToString == doneStatus {
				if t, ok := ParseTime(entry.Created); ok {
					doneTime = &t
				}
			}
			if item.ToString == reopenStatus && doneTime != nil {
				if t, ok := ParseTime(entry.Created); ok {
					days := t.Sub(*doneTime).Hours() / 24
					if days <= float64(daysThreshold) {
						return true
					}
				}
			}
		}
	}
	return false
}
