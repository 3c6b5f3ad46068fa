package enrich

import (
	"strings"

	"github.com/cdrflow/cdrflow/internal/schema"
)

// SubscriberEnricher derives subscriber attributes from the IMSI. The
// default deployment has no CRM backend, so the lookup is a deterministic
// rule on the trailing digits; a production deployment swaps this for an
// API client behind the same signature.
type SubscriberEnricher struct{}

// Lookup never fails.
func (SubscriberEnricher) Lookup(rec *schema.UnifiedRecord) *schema.ClientInfo {
	business := strings.HasSuffix(rec.IMSI, "000") || strings.HasSuffix(rec.IMSI, "999")

	info := &schema.ClientInfo{
		SubscriberSegment: "individual",
		ContractType:      "prepaid",
		CustomerSince:     schema.Ptr("2020-01-15"),
		LifetimeValue:     schema.Ptr(500.0),
		IsVIP:             business,
		DataPlanLimitMB:   schema.Ptr[int64](50_000),
	}
	if business {
		info.SubscriberSegment = "business"
		info.LifetimeValue = schema.Ptr(5000.0)
	}
	if rec.IsRoaming {
		info.ContractType = "postpaid"
	}
	return info
}
