package ports

import "github.com/bft-labs/crashship/pkg/log"

// Logger is the structured logger every component receives.
type Logger = log.Logger

// Field is a structured log field.
type Field = log.Field

// Field constructors re-exported so internal packages import a single port.
var (
	String   = log.String
	Int      = log.Int
	Int64    = log.Int64
	Bool     = log.Bool
	Float64  = log.Float64
	Duration = log.Duration
	Time     = log.Time
	Path     = log.Path
	Err      = log.Err
	Any      = log.Any
)
