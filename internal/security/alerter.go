package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Security event names emitted by the API.
const (
	EventLogin          = "auth.login"
	EventRegister       = "auth.register"
	EventLogout         = "auth.logout"
	EventPasswordChange = "auth.password.change"
	EventAuthorize      = "authz.check"
)

// Outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeFail        = "fail"
	OutcomeDenied      = "denied"
	OutcomeRateLimited = "rate_limited"
)

var alertCounterScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

type rule struct {
	threshold int64
	window    time.Duration
}

var failureRules = map[string]rule{
	EventLogin:          {threshold: 10, window: 5 * time.Minute},
	EventRegister:       {threshold: 10, window: 5 * time.Minute},
	EventLogout:         {threshold: 15, window: 5 * time.Minute},
	EventPasswordChange: {threshold: 15, window: 5 * time.Minute},
}

var (
	deniedRule      = rule{threshold: 25, window: 5 * time.Minute}
	rateLimitedRule = rule{threshold: 20, window: time.Minute}
)

type AlertResult struct {
	Triggered bool
	Count     int64
	Threshold int64
	Window    time.Duration
}

// AuditAlerter counts failed or denied security events per client IP and
// flags bursts over a threshold.
type AuditAlerter struct {
	client *redis.Client
	prefix string
}

// NewAuditAlerter returns nil when client is nil; a nil alerter never triggers.
func NewAuditAlerter(client *redis.Client, prefix string) *AuditAlerter {
	if client == nil {
		return nil
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "learncircle:alerts"
	}
	return &AuditAlerter{client: client, prefix: prefix}
}

func (a *AuditAlerter) Observe(ctx context.Context, event, outcome, ip string) (AlertResult, error) {
	if a == nil {
		return AlertResult{}, nil
	}
	r, ok := ruleFor(event, outcome)
	if !ok {
		return AlertResult{}, nil
	}
	windowMs := r.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	key := fmt.Sprintf("%s:%s:%s:%s:%d", a.prefix, segment(event), segment(outcome), segment(ip), slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := alertCounterScript.Run(ctx, a.client, []string{key}, windowMs).Int64()
	if err != nil {
		return AlertResult{}, err
	}
	return AlertResult{
		Triggered: count >= r.threshold,
		Count:     count,
		Threshold: r.threshold,
		Window:    r.window,
	}, nil
}

func ruleFor(event, outcome string) (rule, bool) {
	switch strings.TrimSpace(outcome) {
	case OutcomeRateLimited:
		return rateLimitedRule, true
	case OutcomeDenied:
		return deniedRule, true
	case OutcomeFail:
		r, ok := failureRules[strings.TrimSpace(event)]
		return r, ok
	default:
		return rule{}, false
	}
}

func segment(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "unknown"
	}
	return strings.NewReplacer(":", "_", "|", "_", " ", "_").Replace(in)
}
