package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/globalaccelerator/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/FairForge/sitefence/internal/config"
	"github.com/FairForge/sitefence/internal/metrics"
	"github.com/FairForge/sitefence/internal/replication"
	"github.com/FairForge/sitefence/internal/topology/topologytest"
)

const testPassword = "s3cr3t"

type fakeSecrets struct {
	mu     sync.Mutex
	values map[string]string
	err    error
	calls  int
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(in.SecretId)]
	if !ok {
		return nil, errors.New("ResourceNotFoundException")
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

type fixture struct {
	server    *Server
	acc       *topologytest.Accelerator
	tags      *topologytest.Tags
	secrets   *fakeSecrets
	transport *httpmock.MockTransport
	metrics   *metrics.Metrics
	logs      *observer.ObservedLogs
	clock     *fakeclock.FakeClock
	sessions  int
}

// newFixture wires a server against site A (healthy reporter), B (unhealthy)
// and C (healthy)
func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Replication.Sites = map[string]string{
		"A": "infinispan-A.example.com",
		"B": "infinispan-B.example.com",
		"C": "infinispan-C.example.com",
	}
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, cfg.Validate())

	acc, tags := topologytest.NewAccelerator(
		topologytest.Member{Site: "A", Health: types.HealthStateHealthy},
		topologytest.Member{Site: "B", Health: types.HealthStateUnhealthy},
		topologytest.Member{Site: "C", Health: types.HealthStateHealthy},
	)
	core, logs := observer.New(zapcore.DebugLevel)

	f := &fixture{
		acc:       acc,
		tags:      tags,
		secrets:   &fakeSecrets{values: map[string]string{cfg.Secrets.AdminSecretName: testPassword}},
		transport: httpmock.NewMockTransport(),
		metrics:   metrics.New(),
		logs:      logs,
		clock:     fakeclock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	sessions := func() Clients {
		f.sessions++
		return Clients{Secrets: f.secrets, Accelerator: f.acc, Tags: f.tags.ClientFunc()}
	}
	f.server = NewServer(cfg, zap.New(core), sessions, f.metrics,
		WithClock(f.clock),
		WithReplicationOptions(replication.WithTransport(f.transport)))
	return f
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func siteOfflineLabels(accelerator, site, reporter string) map[string]string {
	return map[string]string{
		"alertname":   "SiteOffline",
		"accelerator": accelerator,
		"site":        site,
		"reporter":    reporter,
		"infinispan":  "infinispan-" + site + ".example.com",
	}
}

func webhookBody(t *testing.T, labels ...map[string]string) *strings.Reader {
	t.Helper()
	items := make([]map[string]interface{}, 0, len(labels))
	for _, l := range labels {
		items = append(items, map[string]interface{}{"status": "firing", "labels": l})
	}
	data, err := json.Marshal(map[string]interface{}{
		"version":  "4",
		"status":   "firing",
		"receiver": "stonith",
		"alerts":   items,
	})
	require.NoError(t, err)
	return strings.NewReader(string(data))
}
