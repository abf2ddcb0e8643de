package protection

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/bulwark/pkg/metrics"
)

// Config holds every tunable of the protection core. Zero values are replaced
// with defaults by NewGuard; only Salt is required.
type Config struct {
	Salt string

	RateWindow      time.Duration // sliding window for attempt counting (default 30s)
	RateMaxAttempts int           // attempts allowed per window (default 10)
	BanBaseDuration time.Duration // first-offense ban duration (default 15m)

	LockWindow      time.Duration // failure-counting window per account (default 5m)
	LockMaxFailures int           // failures before lock (default 5)
	LockDuration    time.Duration // how long an account stays locked (default 15m)

	EscalationWindow       time.Duration // prior bans inside this window escalate (default 24h)
	EscalationBanThreshold int           // level that fires the HIGH alert (default 3)
	EscalationMultiplier   float64       // geometric duration growth factor (default 2.0)

	SharedIPUsernameThreshold int // distinct accounts before an IP counts as shared (default 50)
	SharedIPMultiplier        int // threshold scale factor for shared IPs (default 3)

	MaxLockoutsPerIPPerHour int // induced lockouts tolerated per IP per hour (default 3)

	Allowlist      []string // raw IPs exempt from rate limiting and bans
	MaxTrackedKeys int      // per-component key capacity, LRU-evicted (default 10000)
}

func (c *Config) applyDefaults() {
	if c.RateWindow <= 0 {
		c.RateWindow = 30 * time.Second
	}
	if c.RateMaxAttempts <= 0 {
		c.RateMaxAttempts = 10
	}
	if c.BanBaseDuration <= 0 {
		c.BanBaseDuration = 15 * time.Minute
	}
	if c.LockWindow <= 0 {
		c.LockWindow = 5 * time.Minute
	}
	if c.LockMaxFailures <= 0 {
		c.LockMaxFailures = 5
	}
	if c.LockDuration <= 0 {
		c.LockDuration = 15 * time.Minute
	}
	if c.EscalationWindow <= 0 {
		c.EscalationWindow = 24 * time.Hour
	}
	if c.EscalationBanThreshold <= 0 {
		c.EscalationBanThreshold = 3
	}
	if c.EscalationMultiplier <= 0 {
		c.EscalationMultiplier = 2.0
	}
	if c.SharedIPUsernameThreshold <= 0 {
		c.SharedIPUsernameThreshold = 50
	}
	if c.SharedIPMultiplier <= 0 {
		c.SharedIPMultiplier = 3
	}
	if c.MaxLockoutsPerIPPerHour <= 0 {
		c.MaxLockoutsPerIPPerHour = 3
	}
	if c.MaxTrackedKeys <= 0 {
		c.MaxTrackedKeys = 10000
	}
}

// Decision is the outcome of a request-path check. RetryAfter is always set
// on denial so callers can include a numeric retry hint without revealing
// which mechanism denied the request.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Cause      string // internal cause label for logs and metrics, never user-facing
}

// Denial causes (metrics/log labels)
const (
	CauseIPBan          = "ip_ban"
	CauseRateLimit      = "rate_limit"
	CauseAccountLock    = "account_lock"
	CauseMalformedInput = "malformed_input"
)

func allow() Decision { return Decision{Allowed: true} }

func deny(cause string, retryAfter time.Duration) Decision {
	metrics.DenialsTotal.WithLabelValues(cause).Inc()
	return Decision{Allowed: false, RetryAfter: retryAfter, Cause: cause}
}

// Stats is the aggregate snapshot served to the admin dashboard.
type Stats struct {
	ActiveBans       int   `json:"active_bans"`
	EscalatedBans    int   `json:"escalated_bans"`
	ActiveLocks      int   `json:"active_locks"`
	TrackedIPs       int   `json:"tracked_ips"`
	TrackedAccounts  int   `json:"tracked_accounts"`
	TrackedAbuseIPs  int   `json:"tracked_abuse_ips"`
	SharedIPs        int   `json:"shared_ips"`
	ApproxMemoryByte int64 `json:"approx_memory_bytes"`
}

// Guard is the protection facade: one constructed object owning every
// component map and the configuration. The routing layer holds a single
// instance and passes it into each middleware. All request-path methods are
// synchronous, lock-bounded, and never perform I/O.
type Guard struct {
	cfg     Config
	clock   Clock
	hasher  *KeyHasher
	limiter *RateLimiter
	bans    *BanManager
	locker  *AccountLocker
	shared  *SharedIPDetector
	abuse   *AbuseDetector
	emitter Emitter
	logger  *slog.Logger

	allowlist map[string]struct{}

	// lastBypass throttles ALLOWLIST_BYPASS events to one per IP per sweep
	// interval so a busy allowlisted host cannot flood the audit log.
	bypassMu   sync.Mutex
	lastBypass map[string]time.Time
}

// Option configures a Guard beyond its Config.
type Option func(*Guard)

// WithClock substitutes the wall clock, used by tests to drive windows
// deterministically.
func WithClock(clock Clock) Option {
	return func(g *Guard) { g.clock = clock }
}

// NewGuard constructs the protection facade.
func NewGuard(cfg Config, emitter Emitter, logger *slog.Logger, opts ...Option) (*Guard, error) {
	cfg.applyDefaults()

	hasher, err := NewKeyHasher(cfg.Salt)
	if err != nil {
		return nil, err
	}

	g := &Guard{
		cfg:        cfg,
		clock:      SystemClock(),
		hasher:     hasher,
		emitter:    emitter,
		logger:     logger,
		allowlist:  make(map[string]struct{}, len(cfg.Allowlist)),
		lastBypass: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.limiter = NewRateLimiter(cfg.RateWindow, cfg.RateMaxAttempts, cfg.MaxTrackedKeys)
	g.bans = NewBanManager(cfg.EscalationWindow, cfg.EscalationBanThreshold, cfg.EscalationMultiplier, cfg.MaxTrackedKeys, emitter)
	g.locker = NewAccountLocker(cfg.LockWindow, cfg.LockMaxFailures, cfg.LockDuration, cfg.MaxTrackedKeys, emitter)
	g.shared = NewSharedIPDetector(cfg.SharedIPUsernameThreshold, cfg.SharedIPMultiplier, cfg.MaxTrackedKeys, emitter, g.clock)
	g.abuse = NewAbuseDetector(cfg.MaxLockoutsPerIPPerHour, cfg.MaxTrackedKeys, emitter)

	for _, ip := range cfg.Allowlist {
		g.allowlist[ip] = struct{}{}
	}

	return g, nil
}

// CheckIPBan is the first request-path gate: deny when the source IP carries
// an active ban. A request without a source IP is denied outright.
func (g *Guard) CheckIPBan(rawIP string) Decision {
	if rawIP == "" {
		g.logger.Warn("auth request without source ip, denying")
		return deny(CauseMalformedInput, g.cfg.BanBaseDuration)
	}
	if g.isAllowlisted(rawIP) {
		return allow()
	}

	remaining, banned := g.bans.IsBanned(g.hasher.Hash(rawIP), g.clock.Now())
	if banned {
		return deny(CauseIPBan, remaining)
	}
	return allow()
}

// CheckAuthRate records the attempt against the source IP's sliding window.
// Crossing the limit bans the IP; the denial carries the ban's remaining
// duration.
func (g *Guard) CheckAuthRate(rawIP string) Decision {
	if rawIP == "" {
		g.logger.Warn("auth request without source ip, denying")
		return deny(CauseMalformedInput, g.cfg.BanBaseDuration)
	}
	if g.isAllowlisted(rawIP) {
		return allow()
	}

	now := g.clock.Now()
	ipHash := g.hasher.Hash(rawIP)
	metrics.AuthAttemptsTotal.WithLabelValues("recorded").Inc()

	count, over := g.limiter.RecordAttempt(ipHash, now, g.shared.MultiplierFor(ipHash))
	if !over {
		return allow()
	}

	// An active ban already covers this episode; re-banning here would
	// escalate once per denied request instead of once per offense.
	if remaining, banned := g.bans.IsBanned(ipHash, now); banned {
		return deny(CauseRateLimit, remaining)
	}

	record := g.bans.Ban(ipHash, now, g.cfg.BanBaseDuration, BanReasonRateLimit)
	metrics.BansTotal.WithLabelValues(BanReasonRateLimit).Inc()
	g.logger.Warn("auth rate limit exceeded, ip banned",
		slog.String("key_hash", ipHash),
		slog.Int("attempts", count),
		slog.Int("escalation_level", record.EscalationLevel))
	return deny(CauseRateLimit, record.ExpiresAt.Sub(now))
}

// CheckAccountLock denies when the target account is currently locked. A
// request without a target account is denied outright.
func (g *Guard) CheckAccountLock(rawAccount string) Decision {
	if rawAccount == "" {
		g.logger.Warn("auth request without account identifier, denying")
		return deny(CauseMalformedInput, g.cfg.LockDuration)
	}

	remaining, locked := g.locker.IsLocked(g.hasher.Hash(rawAccount), g.clock.Now())
	if locked {
		return deny(CauseAccountLock, remaining)
	}
	return allow()
}

// RecordAuthFailure is invoked by the credential verifier after a failed
// check. It feeds the account locker, the shared-IP detector, and on a
// triggered lockout the lockout-abuse bookkeeping for the originating IP.
func (g *Guard) RecordAuthFailure(rawIP, rawAccount string) {
	if rawIP == "" || rawAccount == "" {
		g.logger.Warn("auth failure report with missing identifiers, ignoring")
		return
	}

	now := g.clock.Now()
	ipHash := g.hasher.Hash(rawIP)
	accountHash := g.hasher.Hash(rawAccount)
	metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()

	g.shared.RecordAttempt(ipHash, accountHash)

	locked := g.locker.RecordFailure(accountHash, now, g.shared.MultiplierFor(ipHash))
	if !locked {
		return
	}
	metrics.AccountLocksTotal.Inc()

	if g.abuse.RecordLockoutTriggered(ipHash, now) && !g.isAllowlisted(rawIP) {
		record := g.bans.Ban(ipHash, now, g.cfg.BanBaseDuration, BanReasonLockoutAbuse)
		metrics.BansTotal.WithLabelValues(BanReasonLockoutAbuse).Inc()
		g.logger.Warn("lockout abuse detected, ip banned",
			slog.String("key_hash", ipHash),
			slog.Int("escalation_level", record.EscalationLevel))
	}
}

// RecordAuthSuccess is invoked by the credential verifier after a successful
// check; it hard-resets the account's failure state.
func (g *Guard) RecordAuthSuccess(rawIP, rawAccount string) {
	if rawIP == "" || rawAccount == "" {
		g.logger.Warn("auth success report with missing identifiers, ignoring")
		return
	}

	now := g.clock.Now()
	metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()

	g.shared.RecordAttempt(g.hasher.Hash(rawIP), g.hasher.Hash(rawAccount))
	g.locker.RecordSuccess(g.hasher.Hash(rawAccount), now)
}

// UnbanIP is the administrative override: it lifts the active ban for a
// hashed key while keeping escalation history intact.
func (g *Guard) UnbanIP(keyHash string) bool {
	if keyHash == "" {
		return false
	}
	removed := g.bans.Unban(keyHash)
	if removed {
		g.logger.Info("ban lifted by administrative override", slog.String("key_hash", keyHash))
	}
	return removed
}

// TopBannedIPs returns up to limit active bans, most escalated first.
func (g *Guard) TopBannedIPs(limit int) []BanRecord {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	active := g.bans.ActiveBans(g.clock.Now())
	if len(active) > limit {
		active = active[:limit]
	}
	return active
}

// Stats returns the aggregate snapshot for the admin dashboard.
func (g *Guard) Stats() Stats {
	now := g.clock.Now()
	activeBans, escalatedBans := g.bans.Counts(now)

	s := Stats{
		ActiveBans:      activeBans,
		EscalatedBans:   escalatedBans,
		ActiveLocks:     g.locker.ActiveLocks(now),
		TrackedIPs:      g.limiter.Len(),
		TrackedAccounts: g.locker.Len(),
		TrackedAbuseIPs: g.abuse.Len(),
		SharedIPs:       g.shared.SharedCount(),
	}
	s.ApproxMemoryByte = approxMemory(s, g.bans.Len(), g.shared.Len())
	return s
}

// Sweep removes fully expired state from every component and refreshes the
// tracked-key gauges. It runs on the background sweep interval and takes the
// same per-component locks as the request path.
func (g *Guard) Sweep() {
	now := g.clock.Now()

	g.limiter.Sweep(now)
	g.bans.Sweep(now)
	g.locker.Sweep(now)
	g.abuse.Sweep(now)

	g.bypassMu.Lock()
	for ip, last := range g.lastBypass {
		if now.Sub(last) > time.Hour {
			delete(g.lastBypass, ip)
		}
	}
	g.bypassMu.Unlock()

	metrics.TrackedKeys.WithLabelValues("rate_limiter").Set(float64(g.limiter.Len()))
	metrics.TrackedKeys.WithLabelValues("ban_manager").Set(float64(g.bans.Len()))
	metrics.TrackedKeys.WithLabelValues("account_locker").Set(float64(g.locker.Len()))
	metrics.TrackedKeys.WithLabelValues("shared_ip").Set(float64(g.shared.Len()))
	metrics.TrackedKeys.WithLabelValues("abuse_detector").Set(float64(g.abuse.Len()))

	activeBans, _ := g.bans.Counts(now)
	metrics.ActiveBans.Set(float64(activeBans))
	metrics.ActiveLocks.Set(float64(g.locker.ActiveLocks(now)))
}

// isAllowlisted reports whether the raw IP is exempt from rate limiting and
// bans, emitting a throttled LOW signal when it is.
func (g *Guard) isAllowlisted(rawIP string) bool {
	if _, ok := g.allowlist[rawIP]; !ok {
		return false
	}

	now := g.clock.Now()
	g.bypassMu.Lock()
	last, seen := g.lastBypass[rawIP]
	throttled := seen && now.Sub(last) < 5*time.Minute
	if !throttled {
		g.lastBypass[rawIP] = now
	}
	g.bypassMu.Unlock()

	if !throttled {
		g.emitter.Emit(newEvent(EventAllowlistBypass, SeverityLow, g.hasher.Hash(rawIP), "allowlisted", now))
	}
	return true
}

// approxMemory is a rough per-entry estimate for the stats surface; it is a
// capacity-planning hint, not an accounting of the Go heap.
func approxMemory(s Stats, banKeys, sharedKeys int) int64 {
	const (
		windowEntry = 160 // key + slice header + a handful of timestamps
		banEntry    = 200 // record + escalation history
		lockEntry   = 160
		sharedEntry = 320 // distinct-account set dominates
		abuseEntry  = 120
	)
	return int64(s.TrackedIPs)*windowEntry +
		int64(banKeys)*banEntry +
		int64(s.TrackedAccounts)*lockEntry +
		int64(sharedKeys)*sharedEntry +
		int64(s.TrackedAbuseIPs)*abuseEntry
}
