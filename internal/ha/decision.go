// internal/ha/decision.go
package ha

import (
	"errors"
	"fmt"
	"time"

	"github.com/FairForge/sitefence/internal/topology"
)

// Outcome is the terminal state of one SiteOffline alert
type Outcome int

const (
	OutcomeEvaluating Outcome = iota
	OutcomeNoOp
	OutcomeBlocked
	OutcomeApplied
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEvaluating:
		return "evaluating"
	case OutcomeNoOp:
		return "noop"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeApplied:
		return "applied"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Side effects, as reported in Decision.FailedEffect
const (
	EffectMembership  = "membership_update"
	EffectReplication = "replication_offline"
)

var (
	ErrReporterUnresolved = errors.New("ha: reporter endpoint not found")
	ErrMissingLabel       = errors.New("ha: alert is missing a required label")
)

// Plan is the pure part of a decision: what should happen to the group
type Plan struct {
	Outcome   Outcome
	Reason    string
	Err       error
	Remaining []topology.Endpoint
	Removed   []topology.Endpoint
}

// Decide works out what to do with group when reporter says offline is gone.
// It never touches the network.
//
// Invariants: groups with fewer than two members are left alone, the reporter
// never removes itself, and nothing is removed unless the reporter is HEALTHY.
func Decide(group topology.EndpointGroup, reporter, offline string) Plan {
	if group.Len() <= 1 {
		return Plan{
			Outcome: OutcomeNoOp,
			Reason:  fmt.Sprintf("endpoint group has %d member(s)", group.Len()),
		}
	}

	if reporter == offline {
		return Plan{
			Outcome: OutcomeBlocked,
			Reason:  "reporter cannot fence its own site",
		}
	}

	reporterEndpoints := group.ForSite(reporter)
	if len(reporterEndpoints) == 0 {
		return Plan{
			Outcome: OutcomeBlocked,
			Reason:  "reporter endpoint not found in endpoint group",
			Err:     fmt.Errorf("%w: reporter=%s", ErrReporterUnresolved, reporter),
		}
	}

	// An unhealthy reporter may itself be the partitioned side; wait for a
	// corroborating alert from a healthy site.
	if !anyHealthy(reporterEndpoints) {
		return Plan{
			Outcome: OutcomeBlocked,
			Reason:  fmt.Sprintf("reporter endpoint is %s", reporterEndpoints[0].HealthState),
		}
	}

	removed := group.ForSite(offline)
	reason := fmt.Sprintf("removing %d endpoint(s) of site %s", len(removed), offline)
	if len(removed) == 0 {
		reason = fmt.Sprintf("site %s already absent from endpoint group", offline)
	}
	return Plan{
		Outcome:   OutcomeApplied,
		Reason:    reason,
		Remaining: group.Without(offline),
		Removed:   removed,
	}
}

func anyHealthy(eps []topology.Endpoint) bool {
	for _, ep := range eps {
		if ep.HealthState == topology.HealthHealthy {
			return true
		}
	}
	return false
}

// Decision records how one alert was handled
type Decision struct {
	Outcome      Outcome
	Accelerator  string
	Site         string
	Reporter     string
	Reason       string
	Removed      []string
	Remaining    []string
	FailedEffect string
	Err          error
	DecidedAt    time.Time
	Duration     time.Duration
}
