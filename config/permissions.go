package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/jonwraymond/toolscope/observe"
	"github.com/jonwraymond/toolscope/policy"
)

// Permission document sources reported by LoadPermissionTable.
const (
	SourceInline = "inline"
	SourceFile   = "file"
	SourceNone   = "none"
)

// LoadPermissionTable builds the permission table. It never fails: an
// unreadable or invalid document yields an empty table, under which every
// caller gets the default guest permission. Problems are logged at warning
// level.
func LoadPermissionTable(ctx context.Context, cfg PermissionsConfig, logger observe.Logger) (*policy.Table, string) {
	if logger == nil {
		logger = observe.NopLogger()
	}

	var (
		data   []byte
		source string
	)
	switch {
	case strings.TrimSpace(cfg.Inline) != "":
		data, source = []byte(cfg.Inline), SourceInline
	case cfg.File != "":
		b, err := os.ReadFile(cfg.File)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn(ctx, "permission file not found, using empty table",
					observe.F("path", cfg.File))
			} else {
				logger.Warn(ctx, "cannot read permission file, using empty table",
					observe.F("path", cfg.File), observe.F("error", err.Error()))
			}
			return policy.NewTable(nil), SourceNone
		}
		data, source = b, SourceFile
	default:
		logger.Warn(ctx, "no permission document configured, using empty table")
		return policy.NewTable(nil), SourceNone
	}

	table, err := policy.ParseTable(data)
	if err != nil {
		logger.Warn(ctx, "invalid permission document, using empty table",
			observe.F("source", source), observe.F("error", err.Error()))
		return policy.NewTable(nil), SourceNone
	}

	if skipped := table.Skipped(); len(skipped) > 0 {
		logger.Warn(ctx, "skipped malformed permission entries",
			observe.F("source", source), observe.F("groups", skipped))
	}
	logger.Info(ctx, "permission table loaded",
		observe.F("source", source), observe.F("groups", table.Groups()))
	return table, source
}
