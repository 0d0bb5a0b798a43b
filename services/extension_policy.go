package services

import (
	"strings"

	"github.com/Reutertu3/lolisafe/config"
)

// isExtensionFiltered reports whether a file with the given extension (no
// leading dot) must be rejected under the configured filter list. Blacklist
// mode filters listed extensions, whitelist mode filters everything else.
func isExtensionFiltered(ext string) bool {
	cfg := config.AppConfig.Uploads
	return extensionFiltered(ext, cfg.FilterMode, cfg.ExtensionFilter, cfg.RejectExtensionless)
}

// isURLExtensionFiltered applies the URL-upload override list when one is
// configured, falling back to the regular upload policy.
func isURLExtensionFiltered(ext string) bool {
	cfg := config.AppConfig
	return extensionFiltered(ext, cfg.URLUploads.FilterMode, cfg.URLUploads.ExtensionFilter, cfg.Uploads.RejectExtensionless)
}

func extensionFiltered(ext, mode string, filter []string, rejectExtensionless bool) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return rejectExtensionless
	}

	listed := false
	for _, entry := range filter {
		if strings.ToLower(strings.TrimPrefix(strings.TrimSpace(entry), ".")) == ext {
			listed = true
			break
		}
	}

	if strings.EqualFold(mode, "whitelist") {
		return !listed
	}
	return listed
}
