// internal/topology/endpoint.go
package topology

import (
	"github.com/aws/aws-sdk-go-v2/service/globalaccelerator/types"
)

// SiteTag is the load balancer tag naming the site an endpoint serves
const SiteTag = "site"

// HealthState is the accelerator's own liveness view of an endpoint
type HealthState string

const (
	HealthHealthy   HealthState = "HEALTHY"
	HealthUnhealthy HealthState = "UNHEALTHY"
	HealthInitial   HealthState = "INITIAL"
	HealthUnknown   HealthState = "UNKNOWN"
)

// ParseHealthState maps the API value, treating anything new as unknown
func ParseHealthState(s string) HealthState {
	switch HealthState(s) {
	case HealthHealthy, HealthUnhealthy, HealthInitial:
		return HealthState(s)
	default:
		return HealthUnknown
	}
}

// Endpoint is one member of an accelerator endpoint group
type Endpoint struct {
	ID                   string
	HealthState          HealthState
	Weight               *int32
	ClientIPPreservation *bool
	Tags                 map[string]string
}

// SiteOf returns the endpoint's site; untagged endpoints belong to no site
func SiteOf(ep Endpoint) (string, bool) {
	site, ok := ep.Tags[SiteTag]
	if !ok || site == "" {
		return "", false
	}
	return site, true
}

// BelongsTo reports whether ep is tagged with site. A missing tag is a plain
// false, never an error.
func (ep Endpoint) BelongsTo(site string) bool {
	s, ok := SiteOf(ep)
	return ok && site != "" && s == site
}

// EndpointGroup is the single group behind an accelerator's listener
type EndpointGroup struct {
	ARN       string
	Endpoints []Endpoint
}

// Len returns the number of members
func (g EndpointGroup) Len() int { return len(g.Endpoints) }

// ForSite returns the members tagged with site
func (g EndpointGroup) ForSite(site string) []Endpoint {
	var out []Endpoint
	for _, ep := range g.Endpoints {
		if ep.BelongsTo(site) {
			out = append(out, ep)
		}
	}
	return out
}

// Without returns the members not tagged with site, in their original order
func (g EndpointGroup) Without(site string) []Endpoint {
	out := make([]Endpoint, 0, len(g.Endpoints))
	for _, ep := range g.Endpoints {
		if !ep.BelongsTo(site) {
			out = append(out, ep)
		}
	}
	return out
}

// IDs lists endpoint ids, used for logging decisions
func IDs(eps []Endpoint) []string {
	ids := make([]string, 0, len(eps))
	for _, ep := range eps {
		ids = append(ids, ep.ID)
	}
	return ids
}

// EndpointConfigurations converts members into an update payload. Health
// fields are left out on purpose: the control plane owns them and rejects
// callers that send them.
func EndpointConfigurations(eps []Endpoint) []types.EndpointConfiguration {
	out := make([]types.EndpointConfiguration, 0, len(eps))
	for _, ep := range eps {
		id := ep.ID
		out = append(out, types.EndpointConfiguration{
			EndpointId:                  &id,
			Weight:                      ep.Weight,
			ClientIPPreservationEnabled: ep.ClientIPPreservation,
		})
	}
	return out
}

func endpointFromDescription(d types.EndpointDescription) Endpoint {
	ep := Endpoint{
		HealthState:          ParseHealthState(string(d.HealthState)),
		Weight:               d.Weight,
		ClientIPPreservation: d.ClientIPPreservationEnabled,
		Tags:                 map[string]string{},
	}
	if d.EndpointId != nil {
		ep.ID = *d.EndpointId
	}
	return ep
}
