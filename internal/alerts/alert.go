// internal/alerts/alert.go
package alerts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// SiteOffline is the only alert kind the controller acts on
const SiteOffline = "SiteOffline"

// Label keys carried by a SiteOffline alert
const (
	LabelAlertName   = "alertname"
	LabelAccelerator = "accelerator"
	LabelSite        = "site"
	LabelReporter    = "reporter"
	LabelInfinispan  = "infinispan"
)

var (
	ErrEmptyBody = errors.New("alerts: empty request body")
	ErrMalformed = errors.New("alerts: malformed webhook payload")
)

const payloadSchema = `{
	"type": "object",
	"required": ["alerts"],
	"properties": {
		"alerts": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"labels": {
						"type": "object",
						"additionalProperties": {"type": "string"}
					}
				}
			}
		}
	}
}`

var schema = mustSchema(payloadSchema)

func mustSchema(s string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("alerts: invalid payload schema: %v", err))
	}
	return compiled
}

// Alert is one entry of an Alertmanager webhook delivery
type Alert struct {
	Status      string            `json:"status,omitempty"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
}

// Name returns the alertname label
func (a Alert) Name() string { return a.Labels[LabelAlertName] }

func (a Alert) Accelerator() string { return a.Labels[LabelAccelerator] }
func (a Alert) Site() string        { return a.Labels[LabelSite] }
func (a Alert) Reporter() string    { return a.Labels[LabelReporter] }
func (a Alert) Infinispan() string  { return a.Labels[LabelInfinispan] }

// Payload is the decoded webhook body
type Payload struct {
	Version  string  `json:"version,omitempty"`
	GroupKey string  `json:"groupKey,omitempty"`
	Status   string  `json:"status,omitempty"`
	Receiver string  `json:"receiver,omitempty"`
	Items    []Alert `json:"alerts"`
}

// Parse validates and decodes a webhook body. Any failure here is fatal for
// the whole delivery; nothing is processed partially.
func Parse(body []byte) (*Payload, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyBody
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
	}

	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &p, nil
}

// Alerts yields every alert in delivery order
func (p *Payload) Alerts() iter.Seq[Alert] {
	return func(yield func(Alert) bool) {
		for _, a := range p.Items {
			if !yield(a) {
				return
			}
		}
	}
}

// SiteOffline yields only SiteOffline alerts; everything else is dropped
func (p *Payload) SiteOffline() iter.Seq[Alert] {
	return func(yield func(Alert) bool) {
		for a := range p.Alerts() {
			if a.Name() != SiteOffline {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}
