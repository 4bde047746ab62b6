package replicas

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNoReplicasAvailable is returned when an assignment is needed but no pair exists.
	ErrNoReplicasAvailable = errors.New("replicas: no replicas available")
	// ErrUnknownUser indicates the user has no pair assignment.
	ErrUnknownUser = errors.New("replicas: user has no assignment")
	// ErrInvalidAssignment indicates an assignment that references a missing pair.
	ErrInvalidAssignment = errors.New("replicas: assignment references unknown pair")
	// ErrPairUnavailable indicates that neither member of the pair answered the last probe.
	ErrPairUnavailable = errors.New("replicas: pair has no reachable member")
	// ErrInvalidPair indicates a malformed server pair definition.
	ErrInvalidPair = errors.New("replicas: invalid server pair")
	// ErrProbeFailed marks an unreachable replica; it is never escalated past the monitor.
	ErrProbeFailed = errors.New("replicas: probe failed")
)

// ServerPair is a primary/standby couple of chat replicas. ActiveAddress is empty
// while the pair is in outage.
type ServerPair struct {
	PairID         string `json:"pairId"`
	PrimaryAddress string `json:"primaryAddress"`
	StandbyAddress string `json:"standbyAddress,omitempty"`
	ActiveAddress  string `json:"activeAddress,omitempty"`
}

// Active returns the active address and whether the pair is usable.
func (p ServerPair) Active() (string, bool) {
	return p.ActiveAddress, p.ActiveAddress != ""
}

// NewServerPair validates and normalizes a pair definition. The active address
// starts at the primary until the first probe says otherwise.
func NewServerPair(pairID, primaryAddress, standbyAddress string) (ServerPair, error) {
	pairID = strings.TrimSpace(pairID)
	if pairID == "" {
		return ServerPair{}, fmt.Errorf("%w: pair id is required", ErrInvalidPair)
	}
	primary, err := normalizeAddress(primaryAddress)
	if err != nil {
		return ServerPair{}, fmt.Errorf("%w: primary: %v", ErrInvalidPair, err)
	}
	if primary == "" {
		return ServerPair{}, fmt.Errorf("%w: primary address is required", ErrInvalidPair)
	}
	standby, err := normalizeAddress(standbyAddress)
	if err != nil {
		return ServerPair{}, fmt.Errorf("%w: standby: %v", ErrInvalidPair, err)
	}
	if standby == primary {
		return ServerPair{}, fmt.Errorf("%w: standby must differ from primary", ErrInvalidPair)
	}
	return ServerPair{
		PairID:         pairID,
		PrimaryAddress: primary,
		StandbyAddress: standby,
		ActiveAddress:  primary,
	}, nil
}

func normalizeAddress(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", errors.New("host is required")
	}
	return trimmed, nil
}

// HealthProbeResult is the outcome of probing both members of one pair.
type HealthProbeResult struct {
	PairID           string    `json:"pairId"`
	PrimaryReachable bool      `json:"primaryReachable"`
	StandbyReachable bool      `json:"standbyReachable"`
	ActiveAddress    string    `json:"activeAddress,omitempty"`
	CheckedAt        time.Time `json:"checkedAt"`
}

// electActive derives the active member from the current probe alone.
func electActive(pair ServerPair, primaryUp, standbyUp bool) string {
	switch {
	case primaryUp:
		return pair.PrimaryAddress
	case standbyUp && pair.StandbyAddress != "":
		return pair.StandbyAddress
	default:
		return ""
	}
}

// Resolution tells a client which replica currently serves its pair.
type Resolution struct {
	Username       string `json:"user"`
	PairID         string `json:"pairId"`
	ActiveAddress  string `json:"chatServer,omitempty"`
	PrimaryAddress string `json:"-"`
}
