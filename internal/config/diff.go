package config

import (
	"encoding/json"
	"hash/fnv"
	"reflect"
	"sort"
	"strings"

	logx "campaigner/pkg/logx"
)

// hashBytes returns a stable 64-bit hash of bytes. Empty input returns 0.
func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like API keys),
// and (3) the names of campaigns that were added, removed or modified.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", strings.TrimSpace(newCfg.Storage.Path)),
		)
	}

	if !sameJSON(oldCfg.Dispatch, newCfg.Dispatch) {
		changed = append(changed, "dispatch")
		if d, _, err := newCfg.Dispatch.Resolve(); err == nil {
			attrs = append(attrs,
				logx.Int("dispatch.batch_size", d.BatchSize),
				logx.Int("dispatch.max_retries", d.MaxRetries),
				logx.Duration("dispatch.delay_between_messages", d.DelayBetweenMessages),
				logx.Duration("dispatch.delay_between_batches", d.DelayBetweenBatches),
			)
		}
	}

	// Gateway (never log keys, tokens or passwords)
	if !sameJSON(oldCfg.Gateway, newCfg.Gateway) {
		changed = append(changed, "gateway")
		attrs = append(attrs,
			logx.String("gateway.kind", newCfg.Gateway.Kind),
			logx.Bool("gateway.resend.api_key_set", strings.TrimSpace(newCfg.Gateway.Resend.APIKey) != ""),
			logx.String("gateway.smtp.host", newCfg.Gateway.SMTP.Host),
			logx.Bool("gateway.telegram.token_set", strings.TrimSpace(newCfg.Gateway.Telegram.Token) != ""),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", strings.TrimSpace(newCfg.Metrics.Addr)),
			logx.Bool("metrics.token_set", strings.TrimSpace(newCfg.Metrics.Token) != ""),
		)
	}

	if !sameJSON(oldCfg.Scheduler, newCfg.Scheduler) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.timezone", newCfg.Scheduler.Timezone))
	}

	campaigns := diffCampaigns(oldCfg.Campaigns, newCfg.Campaigns)
	if len(campaigns) > 0 {
		changed = append(changed, "campaigns")
		attrs = append(attrs,
			logx.Int("campaigns.count", len(newCfg.Campaigns)),
			logx.Int("campaigns.changed", len(campaigns)),
			logx.Int("campaigns.scheduled", countScheduled(newCfg.Campaigns)),
		)
	}

	return changed, attrs, campaigns
}

// sameJSON compares two values by their JSON form, so a pointer to 3 equals
// another pointer to 3.
func sameJSON(a, b any) bool {
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return reflect.DeepEqual(a, b)
	}
	return hashBytes(ab) == hashBytes(bb)
}

func countScheduled(cs []CampaignConfig) int {
	n := 0
	for _, c := range cs {
		if strings.TrimSpace(c.Schedule) != "" {
			n++
		}
	}
	return n
}

func diffCampaigns(oldC, newC []CampaignConfig) []string {
	oldM := make(map[string]CampaignConfig, len(oldC))
	for _, c := range oldC {
		oldM[c.Name] = c
	}
	newM := make(map[string]CampaignConfig, len(newC))
	for _, c := range newC {
		newM[c.Name] = c
	}

	out := make([]string, 0)
	for name, nc := range newM {
		oc, ok := oldM[name]
		if !ok || !sameJSON(oc, nc) {
			out = append(out, name)
		}
	}
	for name := range oldM {
		if _, ok := newM[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
