package api

import (
	"github.com/FairForge/sitefence/internal/cloud"
	"github.com/FairForge/sitefence/internal/secrets"
	"github.com/FairForge/sitefence/internal/topology"
)

// Clients are the AWS clients serving one request. They are never shared
// between requests.
type Clients struct {
	Secrets     secrets.API
	Accelerator topology.AcceleratorAPI
	Tags        topology.TagsClientFunc
}

// Sessions opens a fresh set of clients
type Sessions func() Clients

// CloudSessions opens a new cloud session per request
func CloudSessions(f *cloud.Factory) Sessions {
	return func() Clients {
		session := f.Session()
		return Clients{
			Secrets:     session.Secrets(),
			Accelerator: session.Accelerator(),
			Tags: func(region string) topology.TagsAPI {
				return session.Tags(region)
			},
		}
	}
}
