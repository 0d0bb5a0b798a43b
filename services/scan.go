package services

import (
	"context"

	"github.com/Reutertu3/lolisafe/config"
	"github.com/Reutertu3/lolisafe/models"
)

type ScanResult struct {
	Infected bool
	Threat   string
}

// Scanner is the virus-scan collaborator. Engine internals (clamd and
// friends) live outside this module.
type Scanner interface {
	Scan(ctx context.Context, path string) (ScanResult, error)
}

// TagStripper removes embedded metadata tags from a file in place.
type TagStripper interface {
	Strip(ctx context.Context, path string) error
}

// scanBypassAllowed reports whether the owner's group is on the configured
// scan-bypass list.
func scanBypassAllowed(user *models.User) bool {
	if user == nil {
		return false
	}
	for _, group := range config.AppConfig.Scan.BypassGroups {
		if group == user.Group {
			return true
		}
	}
	return false
}
