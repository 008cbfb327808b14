package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/oceanbase/agentmem/pkg/memory"
)

// defaultCooldownPeriod is how long the scheduler sits in
// StateCoolingDown after a cycle before becoming eligible to run again.
const defaultCooldownPeriod = 5 * time.Second

// SchedulerState is the MaintenanceScheduler's finite-state machine,
// per spec.md §9's design note ("scheduled-job workers with a small
// FSM").
type SchedulerState string

const (
	StateIdle        SchedulerState = "idle"
	StateRunning     SchedulerState = "running"
	StateCoolingDown SchedulerState = "cooling_down"
)

// CycleReport is one maintenance cycle's combined outcome across every
// worker that ran, the per-step counts/elapsed-ms report shape
// test_decay_worker.py and test_dreaming_worker.py exercise. RunID is a
// Snowflake-generated numeric correlation ID for the cycle (never
// exposed over the wire, only used to correlate log lines and reports
// from the same run).
type CycleReport struct {
	RunID                int64
	DecayStats           DecayStats
	SummariesProduced    int
	ReflectionsGenerated int
	Err                  error
}

// MaintenanceScheduler runs DecayWorker, SummarizationWorker, and
// DreamingWorker on a cron cadence, exposing a small idle/running/
// cooling-down state machine so overlapping triggers (a manual run
// while a scheduled one is in flight) are rejected rather than
// double-running a cycle.
type MaintenanceScheduler struct {
	Decay         *DecayWorker
	Summarization *SummarizationWorker
	Dreaming      *DreamingWorker

	DecayRate             float64
	ConsiderAccessStats   bool
	SummarizationAgentIDs []tenantScope
	DreamingAgentIDs      []tenantScope
	CooldownPeriod        time.Duration

	mu         sync.Mutex
	state      SchedulerState
	cron       *cron.Cron
	lastReport *CycleReport
	runIDs     *snowflake.Node
}

// tenantScope names a tenant/project/agent triple a per-tenant worker
// (summarization, dreaming) should run against; decay discovers its
// own tenant scope via storage.Store.DistinctTenantIDs when none is
// given.
type tenantScope struct {
	TenantID string
	Project  string
	AgentID  string
}

// NewTenantScope builds a tenantScope for RegisterScope.
func NewTenantScope(tenantID, project, agentID string) tenantScope {
	return tenantScope{TenantID: tenantID, Project: project, AgentID: agentID}
}

// NewMaintenanceScheduler constructs a MaintenanceScheduler in the idle
// state, mirroring the teacher's NewClient snowflake.NewNode(1) setup
// (pkg/core/memory.go) for this scheduler's own run-correlation IDs.
func NewMaintenanceScheduler(decay *DecayWorker, summarization *SummarizationWorker, dreaming *DreamingWorker) (*MaintenanceScheduler, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, memory.WrapOp("NewMaintenanceScheduler", err)
	}
	return &MaintenanceScheduler{
		Decay:               decay,
		Summarization:       summarization,
		Dreaming:            dreaming,
		DecayRate:           0.01,
		ConsiderAccessStats: true,
		CooldownPeriod:      defaultCooldownPeriod,
		state:               StateIdle,
		cron:                cron.New(),
		runIDs:              node,
	}, nil
}

// RegisterScope adds tenant/project/agent to the set the summarization
// and dreaming workers (which, unlike decay, need an explicit
// project/agent scope) run against on each cycle.
func (s *MaintenanceScheduler) RegisterScope(tenantID, project, agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	scope := NewTenantScope(tenantID, project, agentID)
	s.SummarizationAgentIDs = append(s.SummarizationAgentIDs, scope)
	s.DreamingAgentIDs = append(s.DreamingAgentIDs, scope)
}

// State reports the scheduler's current FSM state.
func (s *MaintenanceScheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start registers an hourly decay/summarization/dreaming cycle on the
// given cron spec (standard 5-field crontab syntax, e.g. "0 * * * *"
// for hourly) and begins running it.
func (s *MaintenanceScheduler) Start(ctx context.Context, cronSpec string) error {
	_, err := s.cron.AddFunc(cronSpec, func() { s.RunCycle(ctx) })
	if err != nil {
		return memory.WrapOp("MaintenanceScheduler.Start", err)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron scheduler, waiting for any in-flight cycle to
// finish.
func (s *MaintenanceScheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// RunCycle runs one maintenance cycle synchronously: decay across every
// known tenant, then summarization and dreaming for each registered
// tenant/project/agent scope. If a cycle is already running or still
// cooling down from the previous one, the call is rejected rather than
// double-running (the idle/running/cooling-down FSM transition).
// After a successful cycle the scheduler spends CooldownPeriod in
// StateCoolingDown before returning to StateIdle, debouncing
// closely-spaced triggers (a manual run immediately after a scheduled
// one) without requiring the caller to track timing itself.
func (s *MaintenanceScheduler) RunCycle(ctx context.Context) CycleReport {
	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		log.Warn().Str("state", string(state)).Msg("maintenance cycle rejected: not idle")
		return CycleReport{Err: memory.ErrMaintenanceCycleInProgress}
	}
	s.state = StateRunning
	s.mu.Unlock()

	report := s.runCycleLocked(ctx)

	s.mu.Lock()
	s.state = StateCoolingDown
	s.lastReport = &report
	cooldown := s.CooldownPeriod
	s.mu.Unlock()

	if cooldown <= 0 {
		cooldown = defaultCooldownPeriod
	}
	time.AfterFunc(cooldown, func() {
		s.mu.Lock()
		if s.state == StateCoolingDown {
			s.state = StateIdle
		}
		s.mu.Unlock()
	})

	return report
}

func (s *MaintenanceScheduler) runCycleLocked(ctx context.Context) CycleReport {
	var report CycleReport
	if s.runIDs != nil {
		report.RunID = s.runIDs.Generate().Int64()
	}

	if s.Decay != nil {
		stats, err := s.Decay.RunDecayCycle(ctx, nil, s.DecayRate, s.ConsiderAccessStats)
		report.DecayStats = stats
		if err != nil {
			log.Warn().Err(err).Int64("run_id", report.RunID).Msg("decay cycle failed")
			report.Err = err
		}
	}

	if s.Summarization != nil {
		for _, scope := range s.SummarizationAgentIDs {
			n, err := s.Summarization.RunSummarizationCycle(ctx, scope.TenantID, scope.Project, scope.AgentID, 0, 0)
			if err != nil {
				log.Warn().Err(err).Int64("run_id", report.RunID).Str("tenant_id", scope.TenantID).Msg("summarization cycle failed for tenant")
				continue
			}
			report.SummariesProduced += n
		}
	}

	if s.Dreaming != nil {
		for _, scope := range s.DreamingAgentIDs {
			results, err := s.Dreaming.RunDreamingCycle(ctx, scope.TenantID, scope.Project, scope.AgentID, 24, 0.6, 20)
			if err != nil {
				log.Warn().Err(err).Int64("run_id", report.RunID).Str("tenant_id", scope.TenantID).Msg("dreaming cycle failed for tenant")
				continue
			}
			report.ReflectionsGenerated += len(results)
		}
	}

	return report
}
