// Package topologytest provides in-memory Global Accelerator and ELBv2 fakes
// for tests that need a control plane.
package topologytest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbtypes "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/globalaccelerator"
	"github.com/aws/aws-sdk-go-v2/service/globalaccelerator/types"

	"github.com/FairForge/sitefence/internal/topology"
)

// Member describes one endpoint of the fake group
type Member struct {
	Site   string // empty means untagged
	Health types.HealthState
	Region string
	Weight int32
}

// Accelerator is a single accelerator with one listener and one endpoint group
type Accelerator struct {
	mu sync.Mutex

	ARN         string
	DNSName     string
	DualStack   string
	ListenerARN string
	GroupARN    string
	Endpoints   []types.EndpointDescription

	// Extra accelerators returned on a second ListAccelerators page
	SecondPage []types.Accelerator

	NoListener bool
	NoGroup    bool

	ListErr   error
	UpdateErr error

	Updates [][]types.EndpointConfiguration
}

// ELBArn builds a load balancer ARN in region
func ELBArn(region, name string) string {
	return fmt.Sprintf("arn:aws:elasticloadbalancing:%s:123456789012:loadbalancer/net/%s/0123456789abcdef", region, name)
}

// NewAccelerator builds a fake with the given members and the matching tags
func NewAccelerator(members ...Member) (*Accelerator, *Tags) {
	acc := &Accelerator{
		ARN:         "arn:aws:globalaccelerator::123456789012:accelerator/abcd",
		DNSName:     "a1234.awsglobalaccelerator.com",
		DualStack:   "a1234.dualstack.awsglobalaccelerator.com",
		ListenerARN: "arn:aws:globalaccelerator::123456789012:accelerator/abcd/listener/l1",
		GroupARN:    "arn:aws:globalaccelerator::123456789012:accelerator/abcd/listener/l1/endpoint-group/g1",
	}
	tags := NewTags()

	for i, m := range members {
		region := m.Region
		if region == "" {
			region = "eu-west-1"
		}
		id := ELBArn(region, fmt.Sprintf("lb-%d", i))
		weight := m.Weight
		if weight == 0 {
			weight = 128
		}
		acc.Endpoints = append(acc.Endpoints, types.EndpointDescription{
			EndpointId:                  aws.String(id),
			HealthState:                 m.Health,
			HealthReason:                aws.String("reason"),
			Weight:                      aws.Int32(weight),
			ClientIPPreservationEnabled: aws.Bool(true),
		})
		if m.Site != "" {
			tags.Set(id, map[string]string{topology.SiteTag: m.Site, "owner": "sitefence"})
		} else {
			tags.Set(id, map[string]string{"owner": "sitefence"})
		}
	}
	return acc, tags
}

func (a *Accelerator) ListAccelerators(_ context.Context, in *globalaccelerator.ListAcceleratorsInput, _ ...func(*globalaccelerator.Options)) (*globalaccelerator.ListAcceleratorsOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ListErr != nil {
		return nil, a.ListErr
	}
	if aws.ToString(in.NextToken) == "page-2" {
		return &globalaccelerator.ListAcceleratorsOutput{Accelerators: a.SecondPage}, nil
	}

	first := types.Accelerator{
		AcceleratorArn:   aws.String(a.ARN),
		DnsName:          aws.String(a.DNSName),
		DualStackDnsName: aws.String(a.DualStack),
	}
	out := &globalaccelerator.ListAcceleratorsOutput{
		Accelerators: []types.Accelerator{{
			AcceleratorArn: aws.String("arn:aws:globalaccelerator::123456789012:accelerator/other"),
			DnsName:        aws.String("other.awsglobalaccelerator.com"),
		}},
	}
	if len(a.SecondPage) > 0 {
		out.NextToken = aws.String("page-2")
	} else {
		out.Accelerators = append(out.Accelerators, first)
	}
	return out, nil
}

func (a *Accelerator) ListListeners(_ context.Context, in *globalaccelerator.ListListenersInput, _ ...func(*globalaccelerator.Options)) (*globalaccelerator.ListListenersOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.NoListener || aws.ToString(in.AcceleratorArn) != a.ARN {
		return &globalaccelerator.ListListenersOutput{}, nil
	}
	return &globalaccelerator.ListListenersOutput{
		Listeners: []types.Listener{{ListenerArn: aws.String(a.ListenerARN)}},
	}, nil
}

func (a *Accelerator) ListEndpointGroups(_ context.Context, in *globalaccelerator.ListEndpointGroupsInput, _ ...func(*globalaccelerator.Options)) (*globalaccelerator.ListEndpointGroupsOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.NoGroup || aws.ToString(in.ListenerArn) != a.ListenerARN {
		return &globalaccelerator.ListEndpointGroupsOutput{}, nil
	}
	descs := make([]types.EndpointDescription, len(a.Endpoints))
	copy(descs, a.Endpoints)
	return &globalaccelerator.ListEndpointGroupsOutput{
		EndpointGroups: []types.EndpointGroup{{
			EndpointGroupArn:     aws.String(a.GroupARN),
			EndpointDescriptions: descs,
		}},
	}, nil
}

// UpdateEndpointGroup applies the new membership, keeping the health state of
// endpoints that survive, the way the real control plane does.
func (a *Accelerator) UpdateEndpointGroup(_ context.Context, in *globalaccelerator.UpdateEndpointGroupInput, _ ...func(*globalaccelerator.Options)) (*globalaccelerator.UpdateEndpointGroupOutput, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.Updates = append(a.Updates, in.EndpointConfigurations)
	if a.UpdateErr != nil {
		return nil, a.UpdateErr
	}
	if aws.ToString(in.EndpointGroupArn) != a.GroupARN {
		return nil, fmt.Errorf("EndpointGroupNotFoundException: %s", aws.ToString(in.EndpointGroupArn))
	}

	health := make(map[string]types.HealthState, len(a.Endpoints))
	for _, d := range a.Endpoints {
		health[aws.ToString(d.EndpointId)] = d.HealthState
	}
	next := make([]types.EndpointDescription, 0, len(in.EndpointConfigurations))
	for _, c := range in.EndpointConfigurations {
		state, ok := health[aws.ToString(c.EndpointId)]
		if !ok {
			state = types.HealthStateInitial
		}
		next = append(next, types.EndpointDescription{
			EndpointId:                  c.EndpointId,
			Weight:                      c.Weight,
			ClientIPPreservationEnabled: c.ClientIPPreservationEnabled,
			HealthState:                 state,
		})
	}
	a.Endpoints = next
	return &globalaccelerator.UpdateEndpointGroupOutput{}, nil
}

// EndpointIDs returns the current member ids
func (a *Accelerator) EndpointIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(a.Endpoints))
	for _, d := range a.Endpoints {
		ids = append(ids, aws.ToString(d.EndpointId))
	}
	return ids
}

// SetHealth changes the health of the member at index i
func (a *Accelerator) SetHealth(i int, state types.HealthState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Endpoints[i].HealthState = state
}

// Tags is a fake ELBv2 tag store shared by every region
type Tags struct {
	mu      sync.Mutex
	tags    map[string]map[string]string
	Err     error
	Calls   int
	Regions []string
}

// NewTags creates an empty tag store
func NewTags() *Tags {
	return &Tags{tags: make(map[string]map[string]string)}
}

// Set replaces the tags of resource
func (t *Tags) Set(resource string, tags map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tags[resource] = tags
}

// ClientFunc adapts the store to topology.TagsClientFunc
func (t *Tags) ClientFunc() topology.TagsClientFunc {
	return func(region string) topology.TagsAPI {
		t.mu.Lock()
		t.Regions = append(t.Regions, region)
		t.mu.Unlock()
		return t
	}
}

func (t *Tags) DescribeTags(_ context.Context, in *elasticloadbalancingv2.DescribeTagsInput, _ ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTagsOutput, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Calls++
	if t.Err != nil {
		return nil, t.Err
	}
	if len(in.ResourceArns) > 20 {
		return nil, fmt.Errorf("ValidationError: too many resource arns: %d", len(in.ResourceArns))
	}

	out := &elasticloadbalancingv2.DescribeTagsOutput{}
	for _, resource := range in.ResourceArns {
		td := elbtypes.TagDescription{ResourceArn: aws.String(resource)}
		for k, v := range t.tags[resource] {
			td.Tags = append(td.Tags, elbtypes.Tag{Key: aws.String(k), Value: aws.String(v)})
		}
		out.TagDescriptions = append(out.TagDescriptions, td)
	}
	return out, nil
}
