// Package scheduler implements the Event Loop: the polling state machine
// that decides, each tick, whether to spawn an executor for a pending
// prompt, spawn the singleton planner, or wait. The periodic tick is a
// time.Ticker plus a done channel and WaitGroup; decisions and status
// updates are published as tagged Event values on a buffered channel
// rather than through synchronous callbacks, so a consumer can drain them
// at its own pace without risking a stalled tick.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/zjrosen/conductor/internal/log"
	"github.com/zjrosen/conductor/internal/paths"
	"github.com/zjrosen/conductor/internal/promptstore"
	"github.com/zjrosen/conductor/internal/registry"
)

// ErrNoWorkspace names the condition in which the scheduler cannot read the
// workspace's prompts directory. Tick does not return or wrap it; it
// reports the condition as the EventLoopStatus message
// "no workspace — loop paused".
var ErrNoWorkspace = errors.New("scheduler: no workspace")

// ReviewBackend is the external PR-review collaborator consulted by the
// review sub-poll. Repository/VCS integration is out of scope here; this
// interface is the seam a real implementation plugs into.
type ReviewBackend interface {
	// LatestComment returns the timestamp of the newest review comment on
	// prURL, and whether any comment exists at all.
	LatestComment(ctx context.Context, prURL string) (time.Time, bool, error)
}

// State is a read-only snapshot of the scheduler's process-wide state,
// for tests and operator inspection.
type State struct {
	LoopEnabled     bool
	ParallelEnabled bool

	ActiveExecutorPrompts []int
	LastExecutorSpawnTime time.Time
	PlannerBackoffCount   int

	LastKnownPromptCountAtPlannerSpawn int
}

// Scheduler is the event-loop state machine: reconciliation, the unified
// decision function, and the PR-review sub-poll, all run from one tick.
type Scheduler struct {
	cfg       Config
	workspace *paths.Workspace
	registry  *registry.Registry
	now       func() time.Time

	events chan Event

	runMu sync.Mutex // serializes Tick/ForceTick so only one runs at a time

	stateMu         sync.Mutex
	loopEnabled     bool
	parallelEnabled bool
	active          map[int]bool
	lastSpawnTime   time.Time
	backoffCount    int
	lastKnownCount  int
	hasPlannerSpawn bool

	lastPromptsHash string
	lastPromptTotal int

	tickCount int

	reviewURL      string
	reviewBackend  ReviewBackend
	reviewLastSeen time.Time

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option customizes a Scheduler at construction time.
type Option func(*Scheduler)

// WithClock overrides the scheduler's notion of "now", for deterministic
// tests driven by a simulated clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New constructs a Scheduler. The loop starts disabled; call
// SetLoopEnabled(true) or rely on the operator toggle to begin spawning.
func New(cfg Config, workspace *paths.Workspace, reg *registry.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:       cfg,
		workspace: workspace,
		registry:  reg,
		now:       time.Now,
		events:    make(chan Event, 64),
		active:    make(map[int]bool),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the channel the scheduler publishes Event values on. The
// consumer (an operator console, out of scope) drains it at its own pace;
// the channel is buffered so a slow consumer does not stall a tick.
func (s *Scheduler) Events() <-chan Event { return s.events }

// Start begins the periodic tick at cfg.TickInterval.
func (s *Scheduler) Start(ctx context.Context) {
	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.cfg.TickInterval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C:
				s.Tick(ctx)
			case <-s.done:
				return
			}
		}
	}()
}

// Stop cancels the periodic timer. An in-flight tick runs to completion;
// no further ticks start.
func (s *Scheduler) Stop() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.done)
	s.wg.Wait()
}

// ForceTick runs one tick immediately, serialized against the periodic
// tick via the same run-to-completion lock.
func (s *Scheduler) ForceTick(ctx context.Context) {
	s.Tick(ctx)
}

// SetLoopEnabled toggles the operator loop switch. Disabling clears active
// executor tracking and the spawn cooldown.
func (s *Scheduler) SetLoopEnabled(enabled bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.loopEnabled = enabled
	if !enabled {
		s.active = make(map[int]bool)
		s.lastSpawnTime = time.Time{}
	}
}

// SetParallelEnabled toggles the parallel-execution cap.
func (s *Scheduler) SetParallelEnabled(enabled bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.parallelEnabled = enabled
}

// RegisterReviewURL arms the PR-review sub-poll against prURL using
// backend. Passing an empty prURL disables the sub-poll.
func (s *Scheduler) RegisterReviewURL(prURL string, backend ReviewBackend) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.reviewURL = prURL
	s.reviewBackend = backend
	s.reviewLastSeen = time.Time{}
}

// GetState returns a read-only snapshot of the scheduler's state.
func (s *Scheduler) GetState() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	nums := make([]int, 0, len(s.active))
	for n := range s.active {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	return State{
		LoopEnabled:                        s.loopEnabled,
		ParallelEnabled:                    s.parallelEnabled,
		ActiveExecutorPrompts:              nums,
		LastExecutorSpawnTime:              s.lastSpawnTime,
		PlannerBackoffCount:                s.backoffCount,
		LastKnownPromptCountAtPlannerSpawn: s.lastKnownCount,
	}
}

// emit publishes an event, stamping the timestamp, dropping it rather than
// blocking if the consumer's buffer is full (a tick must never stall on
// operator I/O).
func (s *Scheduler) emit(ev Event) {
	ev.Timestamp = s.now()
	select {
	case s.events <- ev:
	default:
		log.Warn(log.CatScheduler, "event channel full, dropping event", "kind", string(ev.Kind))
	}
}

func (s *Scheduler) statusf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Info(log.CatScheduler, "loop status", "message", msg)
	s.emit(Event{Kind: EventLoopStatus, Message: msg})
}

// Tick runs one full scheduler tick: reconciliation, prompt-change
// detection, the unified decision function, and the PR-review sub-poll.
// Every top-level step is wrapped so a single failure is logged and the
// tick still completes.
func (s *Scheduler) Tick(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.reconcile(ctx)

	prompts, err := promptstore.LoadAll(s.workspace.PromptsDir())
	if err != nil {
		log.ErrorErr(log.CatScheduler, "failed to load prompts, loop paused for this tick", err)
		s.statusf("no workspace — loop paused")
		s.tickCount++
		return
	}

	s.detectPromptChange(prompts)

	s.stateMu.Lock()
	enabled := s.loopEnabled
	s.stateMu.Unlock()

	if enabled {
		s.decide(ctx, prompts)
	}

	s.pruneActiveToLiveExecutors(ctx)

	s.tickCount++
	s.pollReview(ctx)
}

// reconcile resolves the logical set of in-flight executor prompts against
// the observed set of live worker windows.
func (s *Scheduler) reconcile(ctx context.Context) {
	dead, err := s.registry.Reconcile(ctx)
	if err != nil {
		log.ErrorErr(log.CatScheduler, "reconciliation failed to list workers", err)
		return
	}
	if len(dead) == 0 {
		return
	}

	anyExecutorDied := false
	s.stateMu.Lock()
	for _, w := range dead {
		if w.AgentType == registry.AgentExecutor && w.HasPrompt {
			delete(s.active, w.PromptNumber)
			anyExecutorDied = true
		}
	}
	if anyExecutorDied {
		s.lastSpawnTime = time.Time{}
	}
	s.stateMu.Unlock()

	for _, w := range dead {
		s.registry.Unregister(w.WindowName)
		log.Debug(log.CatScheduler, "reconciled dead worker", "window", w.WindowName, "agentType", string(w.AgentType))
	}

	workers, err := s.registry.ListWorkers(ctx)
	if err == nil {
		s.emit(Event{Kind: EventWorkersChanged, Workers: workers})
	}
}

// pruneActiveToLiveExecutors guards against immediate-exit races: a window
// that died between spawn and registry observation. Run at the end of
// every tick.
func (s *Scheduler) pruneActiveToLiveExecutors(ctx context.Context) {
	workers, err := s.registry.ListWorkers(ctx)
	if err != nil {
		log.ErrorErr(log.CatScheduler, "failed to list workers for end-of-tick prune", err)
		return
	}
	liveExecNums := make(map[int]bool, len(workers))
	for _, w := range workers {
		if w.AgentType == registry.AgentExecutor && w.HasPrompt {
			liveExecNums[w.PromptNumber] = true
		}
	}

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	cooldownActive := !s.lastSpawnTime.IsZero() && s.now().Sub(s.lastSpawnTime) < s.cfg.SpawnCooldown
	for n := range s.active {
		if !liveExecNums[n] && !cooldownActive {
			delete(s.active, n)
		}
	}
}

// detectPromptChange maintains a stable hash of {filename, status, number}
// across all loaded prompts and fires EventPromptsChanged when it moves,
// resetting planner backoff if the change was a newly-added prompt while
// backoff is in effect.
func (s *Scheduler) detectPromptChange(prompts []promptstore.Prompt) {
	hash := hashPrompts(prompts)
	if hash == s.lastPromptsHash {
		return
	}

	total := len(prompts)
	grew := total > s.lastPromptTotal
	s.lastPromptsHash = hash
	s.lastPromptTotal = total

	stats := statsOf(prompts)
	s.emit(Event{Kind: EventPromptsChanged, Prompts: prompts, Stats: stats})

	if grew {
		s.stateMu.Lock()
		if s.backoffCount > 0 {
			s.backoffCount = 0
			log.Info(log.CatScheduler, "planner backoff reset by new prompt")
		}
		s.stateMu.Unlock()
	}
}

func hashPrompts(prompts []promptstore.Prompt) string {
	h := sha256.New()
	for _, p := range prompts {
		fmt.Fprintf(h, "%s|%s|%d\n", p.Path, p.Status, p.Number)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func statsOf(prompts []promptstore.Prompt) promptstore.Stats {
	// PickNext always returns Stats alongside its result; reuse it here
	// with no exclusions so detectPromptChange can report on the
	// unfiltered set too.
	return promptstore.PickNext(prompts, nil).Stats
}

// decide is the unified decision function: cap check, cooldown check,
// prompt pick, then the planner gates, in that order.
func (s *Scheduler) decide(ctx context.Context, prompts []promptstore.Prompt) {
	s.stateMu.Lock()
	capLimit := s.cfg.MaxParallelPrompts
	if !s.parallelEnabled {
		capLimit = 1
	}
	activeCount := len(s.active)
	lastSpawn := s.lastSpawnTime
	excluded := make(map[int]bool, len(s.active))
	for n := range s.active {
		excluded[n] = true
	}
	s.stateMu.Unlock()

	if activeCount >= capLimit {
		return
	}

	if !lastSpawn.IsZero() && s.now().Sub(lastSpawn) < s.cfg.SpawnCooldown {
		return
	}

	pick := promptstore.PickNext(prompts, excluded)
	if pick.Prompt != nil {
		s.spawnExecutor(pick.Prompt)
		return
	}

	s.considerPlanner(ctx, pick.Stats)
}

// spawnExecutor transitions prompt to in_progress on disk, registers it as
// active, spawns the executor window, and emits EventSpawnExecutor.
func (s *Scheduler) spawnExecutor(prompt *promptstore.Prompt) {
	if err := promptstore.MarkInProgress(prompt.Path); err != nil {
		log.ErrorErr(log.CatScheduler, "failed to mark prompt in_progress", err, "number", prompt.Number)
		return
	}

	windowName := fmt.Sprintf("executor-%d", prompt.Number)
	ctx := context.Background()
	if _, err := s.registry.Spawn(ctx, windowName, registry.AgentExecutor); err != nil {
		log.ErrorErr(log.CatScheduler, "failed to spawn executor window", err, "window", windowName)
		return
	}

	now := s.now()
	s.stateMu.Lock()
	s.active[prompt.Number] = true
	s.lastSpawnTime = now
	s.stateMu.Unlock()

	log.Info(log.CatScheduler, "spawned executor", "number", prompt.Number, "window", windowName)
	s.emit(Event{Kind: EventSpawnExecutor, Prompt: prompt})
}

// considerPlanner gates the singleton planner's spawn: Gate A (singleton),
// Gate B (all known work done), Gate C (exponential backoff).
func (s *Scheduler) considerPlanner(ctx context.Context, stats promptstore.Stats) {
	workers, err := s.registry.ListWorkers(ctx)
	if err != nil {
		log.ErrorErr(log.CatScheduler, "failed to list workers for planner gate", err)
		return
	}
	for _, w := range workers {
		if w.AgentType == registry.AgentPlanner {
			s.statusf("planner already running")
			return
		}
	}

	if !(stats.Pending == 0 && stats.InProgress == 0 && stats.Done > 0) {
		s.statusf("%s", plannerGateBReason(stats))
		return
	}

	// The previous spawn is classified (productive/unproductive) at most
	// once per backoff window, not once per tick spent waiting it out:
	// reclassifying only happens once the *currently recorded* cooldown
	// has elapsed. A tick that lands inside a cooldown already in effect
	// just re-reports it, so backoffCount cannot run away between the
	// ticks of a single unproductive cycle.
	s.stateMu.Lock()
	lastSpawn := s.lastSpawnTime
	currentCooldown := plannerCooldown(s.cfg, s.backoffCount)
	if s.hasPlannerSpawn && (!lastSpawn.IsZero()) && s.now().Sub(lastSpawn) >= currentCooldown {
		if stats.Total > s.lastKnownCount {
			s.backoffCount = 0
		} else {
			s.backoffCount++
		}
	}
	cooldown := plannerCooldown(s.cfg, s.backoffCount)
	backoffCount := s.backoffCount
	s.stateMu.Unlock()

	if !lastSpawn.IsZero() && s.now().Sub(lastSpawn) < cooldown {
		s.statusf("planner backoff: waiting %ds (%d unproductive spawns)", int(cooldown.Seconds()), backoffCount)
		return
	}

	ctxSpawn := context.Background()
	if _, err := s.registry.Spawn(ctxSpawn, "planner", registry.AgentPlanner); err != nil {
		log.ErrorErr(log.CatScheduler, "failed to spawn planner window", err)
		return
	}

	now := s.now()
	s.stateMu.Lock()
	s.lastSpawnTime = now
	s.lastKnownCount = stats.Total
	s.hasPlannerSpawn = true
	s.stateMu.Unlock()

	log.Info(log.CatScheduler, "spawned planner", "promptCount", stats.Total)
	s.emit(Event{Kind: EventSpawnPlanner})
}

// plannerCooldown computes plannerBaseCooldownMs · 2^k, where
// k = min(backoffCount, plannerMaxBackoffMultiplier).
func plannerCooldown(cfg Config, backoffCount int) time.Duration {
	k := backoffCount
	if k > cfg.PlannerMaxBackoffMultiplier {
		k = cfg.PlannerMaxBackoffMultiplier
	}
	return cfg.PlannerBaseCooldown * time.Duration(1<<uint(k))
}

func plannerGateBReason(stats promptstore.Stats) string {
	if stats.Total == 0 {
		return "no prompts in workspace, nothing for a planner to follow up on"
	}
	if stats.Done == 0 {
		return "no completed prompts yet, planner not warranted"
	}
	return "executors still have pending or in-progress work"
}

// pollReview runs the independent PR-review sub-poll every
// cfg.ReviewPollEveryTicks ticks. It never influences scheduler decisions.
func (s *Scheduler) pollReview(ctx context.Context) {
	if s.cfg.ReviewPollEveryTicks <= 0 || s.tickCount%s.cfg.ReviewPollEveryTicks != 0 {
		return
	}

	s.stateMu.Lock()
	url := s.reviewURL
	backend := s.reviewBackend
	lastSeen := s.reviewLastSeen
	s.stateMu.Unlock()

	if url == "" || backend == nil {
		return
	}

	newest, found, err := backend.LatestComment(ctx, url)
	if err != nil {
		log.ErrorErr(log.CatScheduler, "review poll failed", err, "url", url)
		return
	}
	if !found || !newest.After(lastSeen) {
		return
	}

	s.stateMu.Lock()
	s.reviewLastSeen = newest
	s.stateMu.Unlock()

	s.emit(Event{Kind: EventReviewFeedback, ReviewAvailable: true})
}
