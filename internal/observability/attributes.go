// Package observability exposes campaign metrics through an OpenTelemetry
// meter backed by the Prometheus exporter.
package observability

import (
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"campaigner/internal/dispatch"
)

// Attribute keys
const (
	attrCampaign = "campaign"
	attrOutcome  = "outcome"
)

func campaignAttr(name string) attribute.KeyValue {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "unnamed"
	}
	return attribute.String(attrCampaign, name)
}

func outcomeAttr(o dispatch.Outcome) attribute.KeyValue {
	return attribute.String(attrOutcome, o.String())
}
