// internal/topology/resolver.go
package topology

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/globalaccelerator"
)

var (
	ErrAcceleratorNotFound   = errors.New("topology: accelerator not found")
	ErrListenerNotFound      = errors.New("topology: accelerator has no listener")
	ErrEndpointGroupNotFound = errors.New("topology: listener has no endpoint group")
	ErrTagLookup             = errors.New("topology: endpoint tag lookup failed")
)

// DescribeTags accepts at most this many resource ARNs per call
const describeTagsBatch = 20

// AcceleratorAPI is the subset of the Global Accelerator client used here
type AcceleratorAPI interface {
	ListAccelerators(ctx context.Context, params *globalaccelerator.ListAcceleratorsInput, optFns ...func(*globalaccelerator.Options)) (*globalaccelerator.ListAcceleratorsOutput, error)
	ListListeners(ctx context.Context, params *globalaccelerator.ListListenersInput, optFns ...func(*globalaccelerator.Options)) (*globalaccelerator.ListListenersOutput, error)
	ListEndpointGroups(ctx context.Context, params *globalaccelerator.ListEndpointGroupsInput, optFns ...func(*globalaccelerator.Options)) (*globalaccelerator.ListEndpointGroupsOutput, error)
	UpdateEndpointGroup(ctx context.Context, params *globalaccelerator.UpdateEndpointGroupInput, optFns ...func(*globalaccelerator.Options)) (*globalaccelerator.UpdateEndpointGroupOutput, error)
}

// TagsAPI is the subset of the ELBv2 client used for site lookups
type TagsAPI interface {
	DescribeTags(ctx context.Context, params *elasticloadbalancingv2.DescribeTagsInput, optFns ...func(*elasticloadbalancingv2.Options)) (*elasticloadbalancingv2.DescribeTagsOutput, error)
}

// TagsClientFunc returns a tags client for a region
type TagsClientFunc func(region string) TagsAPI

// Topology is the live state behind one accelerator
type Topology struct {
	AcceleratorARN string
	ListenerARN    string
	Group          EndpointGroup
}

// EndpointsForSite returns the group members serving site
func (t *Topology) EndpointsForSite(site string) []Endpoint {
	return t.Group.ForSite(site)
}

// Resolver reads accelerator topology. It holds no state between calls; every
// Resolve goes to the control plane.
type Resolver struct {
	accelerators AcceleratorAPI
	tags         TagsClientFunc
}

// NewResolver creates a topology resolver
func NewResolver(accelerators AcceleratorAPI, tags TagsClientFunc) *Resolver {
	return &Resolver{
		accelerators: accelerators,
		tags:         tags,
	}
}

// Resolve locates the accelerator by DNS name (primary or dual-stack), its
// first listener and that listener's first endpoint group, and tags each
// member with the site it serves.
func (r *Resolver) Resolve(ctx context.Context, dnsName string) (*Topology, error) {
	acceleratorARN, err := r.findAccelerator(ctx, dnsName)
	if err != nil {
		return nil, err
	}

	listeners, err := r.accelerators.ListListeners(ctx, &globalaccelerator.ListListenersInput{
		AcceleratorArn: aws.String(acceleratorARN),
	})
	if err != nil {
		return nil, fmt.Errorf("topology: list listeners: %w", err)
	}
	if len(listeners.Listeners) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrListenerNotFound, acceleratorARN)
	}
	listenerARN := aws.ToString(listeners.Listeners[0].ListenerArn)

	groups, err := r.accelerators.ListEndpointGroups(ctx, &globalaccelerator.ListEndpointGroupsInput{
		ListenerArn: aws.String(listenerARN),
	})
	if err != nil {
		return nil, fmt.Errorf("topology: list endpoint groups: %w", err)
	}
	if len(groups.EndpointGroups) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEndpointGroupNotFound, listenerARN)
	}
	group := groups.EndpointGroups[0]

	endpoints := make([]Endpoint, 0, len(group.EndpointDescriptions))
	for _, d := range group.EndpointDescriptions {
		endpoints = append(endpoints, endpointFromDescription(d))
	}
	if err := r.loadTags(ctx, endpoints); err != nil {
		return nil, err
	}

	return &Topology{
		AcceleratorARN: acceleratorARN,
		ListenerARN:    listenerARN,
		Group: EndpointGroup{
			ARN:       aws.ToString(group.EndpointGroupArn),
			Endpoints: endpoints,
		},
	}, nil
}

// UpdateMembership replaces the group's endpoints in one call
func (r *Resolver) UpdateMembership(ctx context.Context, groupARN string, endpoints []Endpoint) error {
	_, err := r.accelerators.UpdateEndpointGroup(ctx, &globalaccelerator.UpdateEndpointGroupInput{
		EndpointGroupArn:       aws.String(groupARN),
		EndpointConfigurations: EndpointConfigurations(endpoints),
	})
	if err != nil {
		return fmt.Errorf("topology: update endpoint group %s: %w", groupARN, err)
	}
	return nil
}

func (r *Resolver) findAccelerator(ctx context.Context, dnsName string) (string, error) {
	want := normalizeDNS(dnsName)
	if want == "" {
		return "", fmt.Errorf("%w: empty dns name", ErrAcceleratorNotFound)
	}

	pages := globalaccelerator.NewListAcceleratorsPaginator(r.accelerators, &globalaccelerator.ListAcceleratorsInput{})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("topology: list accelerators: %w", err)
		}
		for _, a := range page.Accelerators {
			if normalizeDNS(aws.ToString(a.DnsName)) == want || normalizeDNS(aws.ToString(a.DualStackDnsName)) == want {
				return aws.ToString(a.AcceleratorArn), nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrAcceleratorNotFound, dnsName)
}

// loadTags fills Tags for every load balancer endpoint, batching DescribeTags
// per region. Endpoints that are not load balancer ARNs keep empty tags.
func (r *Resolver) loadTags(ctx context.Context, endpoints []Endpoint) error {
	byRegion := make(map[string][]string)
	var regions []string
	for _, ep := range endpoints {
		parsed, err := arn.Parse(ep.ID)
		if err != nil || parsed.Service != "elasticloadbalancing" || parsed.Region == "" {
			continue
		}
		if _, seen := byRegion[parsed.Region]; !seen {
			regions = append(regions, parsed.Region)
		}
		byRegion[parsed.Region] = append(byRegion[parsed.Region], ep.ID)
	}

	tags := make(map[string]map[string]string)
	for _, region := range regions {
		client := r.tags(region)
		arns := byRegion[region]
		for start := 0; start < len(arns); start += describeTagsBatch {
			end := min(start+describeTagsBatch, len(arns))
			out, err := client.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{
				ResourceArns: arns[start:end],
			})
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrTagLookup, region, err)
			}
			for _, td := range out.TagDescriptions {
				m := make(map[string]string, len(td.Tags))
				for _, tag := range td.Tags {
					m[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
				}
				tags[aws.ToString(td.ResourceArn)] = m
			}
		}
	}

	for i := range endpoints {
		if m, ok := tags[endpoints[i].ID]; ok {
			endpoints[i].Tags = m
		}
	}
	return nil
}

func normalizeDNS(name string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(name), "."))
}
