package ports

import "github.com/bft-labs/crashship/internal/domain"

// ConsentPolicy decides whether a pending report may leave the machine.
type ConsentPolicy interface {
	Decide(file domain.CrashFile) domain.Decision
}
