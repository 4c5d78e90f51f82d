package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ZLog is a secondary, zerolog-based logger kept next to the logrus Logger,
// the same way the teacher keeps zerolog next to logrus instead of
// standardizing on one. No package in this module constructs one: the query
// planner and performance monitor log through NewDefault like the rest.
type ZLog struct {
	zerolog.Logger
}

// NewZLog builds a ZLog tagged with component, honoring level (debug, info,
// warn, error; defaults to info on an unrecognized value).
func NewZLog(component string, level string) *ZLog {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	base := zerolog.New(os.Stdout).With().Timestamp().Str("component", component).Logger().Level(lvl)
	return &ZLog{Logger: base}
}
