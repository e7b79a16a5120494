// Package controller 活动控制器
//
// 控制器驱动活动状态机 pending → running → completed/failed/cancelled，
// 并串行化基因组换入。每个执行（CampaignRun）由恰好一个 goroutine 推进；
// 评估在 max_concurrent_evaluations 信号量下并发扇出，但打分与接受
// 决策严格按变异序号升序进行，与评估完成顺序无关，保证固定种子下
// 结果可复现。
//
// 架构：Redis Streams 事件驱动（manager.go）+ 数据库保底轮询。
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"genome-engine/internal/engine/evaluator"
	"genome-engine/internal/engine/generator"
	"genome-engine/internal/engine/history"
	"genome-engine/internal/engine/scorer"
	"genome-engine/internal/shared/model"
	"genome-engine/internal/shared/storage"
)

// MetricsRecorder 引擎指标回调（可为 nil）
type MetricsRecorder interface {
	RecordEvaluation(outcome string, duration time.Duration)
	RecordCASConflict()
	RecordMutationOutcome(status string)
}

// Archiver 变异工件归档（可为 nil）
//
// 归档是尽力而为：对象存储不可用时只记日志，不影响活动执行。
type Archiver interface {
	ArchiveMutationCode(ctx context.Context, mutationID, original, mutated string) error
	ArchiveTestResults(ctx context.Context, mutationID, testID string, results json.RawMessage) error
}

// Controller 活动控制器
//
// 无状态的执行工厂：每次启动活动通过 NewExecution 创建一个执行句柄，
// 句柄内部持有该次执行的取消标志与基线缓存。
type Controller struct {
	store    storage.PersistentStore
	gen      generator.Generator
	eval     evaluator.Evaluator
	scorer   scorer.Scorer
	recorder *history.Recorder

	metrics  MetricsRecorder // 可为 nil
	archiver Archiver        // 可为 nil

	defaultActor   string
	retryBaseDelay time.Duration

	// 超时覆盖（测试用，非零时优先于活动配置）
	evalTimeoutOverride     time.Duration
	campaignTimeoutOverride time.Duration
}

// NewController 创建控制器
func NewController(store storage.PersistentStore, gen generator.Generator, eval evaluator.Evaluator, recorder *history.Recorder) *Controller {
	return &Controller{
		store:          store,
		gen:            gen,
		eval:           eval,
		scorer:         scorer.Standard{},
		recorder:       recorder,
		defaultActor:   "engine",
		retryBaseDelay: evaluator.DefaultRetryBaseDelay,
	}
}

// SetScorer 替换打分器实现
func (c *Controller) SetScorer(s scorer.Scorer) {
	if s != nil {
		c.scorer = s
	}
}

// SetMetrics 设置指标回调
func (c *Controller) SetMetrics(m MetricsRecorder) {
	c.metrics = m
}

// SetArchiver 设置工件归档器
func (c *Controller) SetArchiver(a Archiver) {
	c.archiver = a
}

// SetDefaultActor 设置台账默认执行者
func (c *Controller) SetDefaultActor(actor string) {
	if actor != "" {
		c.defaultActor = actor
	}
}

// SetRetryBaseDelay 设置评估重试退避基准间隔
func (c *Controller) SetRetryBaseDelay(d time.Duration) {
	if d > 0 {
		c.retryBaseDelay = d
	}
}

// SetTimeouts 覆盖评估/活动超时（测试用）
func (c *Controller) SetTimeouts(evaluation, campaign time.Duration) {
	c.evalTimeoutOverride = evaluation
	c.campaignTimeoutOverride = campaign
}

func (c *Controller) evalTimeout(cfg model.CampaignConfiguration) time.Duration {
	if c.evalTimeoutOverride > 0 {
		return c.evalTimeoutOverride
	}
	return time.Duration(cfg.EvaluationTimeoutSec) * time.Second
}

func (c *Controller) campaignTimeout(cfg model.CampaignConfiguration) time.Duration {
	if c.campaignTimeoutOverride > 0 {
		return c.campaignTimeoutOverride
	}
	return time.Duration(cfg.CampaignTimeoutSec) * time.Second
}

// ============================================================================
// Execution - 一次活动执行
// ============================================================================

// Execution 一次活动执行的句柄
//
// 取消标志在每个变异处理步骤的开头被检查；
// drain 模式让已派发的评估完成并照常打分/应用，
// abandon 模式丢弃取消时间点之后返回的评估结果（变异保持 testing）。
type Execution struct {
	ctrl       *Controller
	campaignID string
	runID      string

	mu          sync.Mutex
	cancelled   bool
	cancelMode  model.CancellationMode
	cancelledAt time.Time
	cancelCh    chan struct{}

	// 单 goroutine 推进，无需加锁
	genome   *model.Genome
	baseline float64
	results  model.RunResults
}

// NewExecution 创建执行句柄
func (c *Controller) NewExecution(campaignID, runID string) *Execution {
	return &Execution{
		ctrl:       c,
		campaignID: campaignID,
		runID:      runID,
		cancelCh:   make(chan struct{}),
	}
}

// Cancel 请求取消本次执行
//
// 幂等：重复取消保留第一次的模式与时间戳。
func (e *Execution) Cancel(mode model.CancellationMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelled {
		return
	}
	e.cancelled = true
	e.cancelMode = mode
	e.cancelledAt = time.Now()
	close(e.cancelCh)
	log.Printf("[controller.cancel] campaign_id=%s run_id=%s mode=%s", e.campaignID, e.runID, mode)
}

func (e *Execution) cancelState() (bool, model.CancellationMode, time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled, e.cancelMode, e.cancelledAt
}

// Run 驱动活动到终止状态
//
// ctx 是进程生命周期上下文；活动墙钟超时在内部叠加。
// 所有错误都被转化为活动的终止状态，方法本身只在存储层
// 不可用等无法落盘的情况下返回错误。
func (e *Execution) Run(ctx context.Context) error {
	c := e.ctrl

	campaign, err := c.store.GetCampaign(ctx, e.campaignID)
	if err != nil {
		return fmt.Errorf("load campaign %s: %w", e.campaignID, err)
	}
	if campaign == nil {
		log.Printf("[controller.run.skip] campaign_id=%s reason=campaign_not_found", e.campaignID)
		return c.store.UpdateCampaignRunStatus(ctx, e.runID, model.RunStatusFailed,
			&model.RunResults{Reason: "campaign_not_found"})
	}
	if campaign.Status.IsTerminal() {
		log.Printf("[controller.run.skip] campaign_id=%s status=%s reason=terminal", e.campaignID, campaign.Status)
		return c.store.UpdateCampaignRunStatus(ctx, e.runID, model.RunStatusCancelled,
			&model.RunResults{Reason: "campaign_terminal"})
	}

	cfg := campaign.Configuration
	if err := cfg.Validate(campaign.TargetMetric); err != nil {
		return e.finishFailed(ctx, campaign, "invalid_configuration", err.Error())
	}

	if err := c.store.UpdateCampaignStatus(ctx, campaign.ID, model.CampaignStatusRunning); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			log.Printf("[controller.run.skip] campaign_id=%s reason=already_terminal", e.campaignID)
			return c.store.UpdateCampaignRunStatus(ctx, e.runID, model.RunStatusCancelled,
				&model.RunResults{Reason: "campaign_terminal"})
		}
		return err
	}
	if err := c.store.UpdateCampaignRunStatus(ctx, e.runID, model.RunStatusRunning, nil); err != nil {
		return err
	}
	c.recorder.RecordCampaign(ctx, campaign.ID, model.HistoryActionCampaignStarted,
		map[string]interface{}{"run_id": e.runID})
	log.Printf("[controller.run.start] campaign_id=%s run_id=%s genome_id=%s target=%s budget=%d",
		campaign.ID, e.runID, campaign.GenomeID, campaign.TargetMetric, cfg.MutationBudget)

	genome, err := c.store.GetGenome(ctx, campaign.GenomeID)
	if err != nil {
		return e.finishFailed(ctx, campaign, "genome_unavailable", err.Error())
	}
	if genome == nil {
		return e.finishFailed(ctx, campaign, "genome_unavailable", "genome not found")
	}
	if !genome.IsMutable() {
		return e.finishFailed(ctx, campaign, "genome_unavailable",
			fmt.Sprintf("genome status is %s", genome.Status))
	}
	e.genome = genome
	e.baseline = c.scorer.Baseline(genome.Metrics, cfg)

	runCtx := ctx
	if t := c.campaignTimeout(cfg); t > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	for e.results.MutationsTried < cfg.MutationBudget {
		if cancelled, mode, _ := e.cancelState(); cancelled {
			return e.finishCancelled(ctx, campaign, mode)
		}
		if runCtx.Err() != nil && ctx.Err() == nil {
			return e.finishFailed(ctx, campaign, "timeout", "campaign wall-clock budget exceeded")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		batchSize := cfg.BatchSize
		if remaining := cfg.MutationBudget - e.results.MutationsTried; batchSize > remaining {
			batchSize = remaining
		}

		candidates, err := e.propose(runCtx, cfg, batchSize)
		if err != nil {
			if runCtx.Err() != nil && ctx.Err() == nil {
				return e.finishFailed(ctx, campaign, "timeout", "campaign wall-clock budget exceeded")
			}
			return e.finishFailed(ctx, campaign, "generator_unreachable", err.Error())
		}
		if len(candidates) == 0 {
			// 生成器无可提议的变更，活动正常完成
			break
		}

		mutations, err := e.persistProposals(runCtx, campaign, candidates)
		if err != nil {
			return e.finishFailed(ctx, campaign, "storage_error", err.Error())
		}

		outcomes := e.evaluateBatch(runCtx, mutations, cfg)

		if runCtx.Err() != nil && ctx.Err() == nil {
			// 整体超时：在途变异保持 testing，留给事后审计
			return e.finishFailed(ctx, campaign, "timeout", "campaign wall-clock budget exceeded")
		}

		if err := e.processOutcomes(ctx, campaign, cfg, outcomes); err != nil {
			var unreachable *evaluatorUnreachableError
			if errors.As(err, &unreachable) {
				return e.finishFailed(ctx, campaign, "evaluator_unreachable", unreachable.err.Error())
			}
			return e.finishFailed(ctx, campaign, "storage_error", err.Error())
		}

		if cancelled, mode, _ := e.cancelState(); cancelled {
			return e.finishCancelled(ctx, campaign, mode)
		}
	}

	return e.finishCompleted(ctx, campaign)
}

// propose 带重试地向生成器请求候选
func (e *Execution) propose(ctx context.Context, cfg model.CampaignConfiguration, count int) ([]*generator.Candidate, error) {
	c := e.ctrl

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryBaseDelay << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		candidates, err := c.gen.Propose(ctx, e.genome, cfg, count)
		if err == nil {
			return candidates, nil
		}
		if !evaluator.IsTransient(err) {
			return nil, err
		}
		lastErr = err
		log.Printf("[controller.propose.retry] campaign_id=%s attempt=%d error=%v", e.campaignID, attempt+1, err)
	}
	return nil, lastErr
}

// persistProposals 持久化一批候选为 proposed 变异
//
// 序号在活动内单调递增；metrics_before 固定为派发时的基因组基线快照。
func (e *Execution) persistProposals(ctx context.Context, campaign *model.Campaign, candidates []*generator.Candidate) ([]*model.Mutation, error) {
	c := e.ctrl

	maxSeq, err := c.store.MaxMutationSequence(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}

	before := e.genome.Metrics
	if before == nil {
		before = emptySnapshot()
	}
	original := string(e.genome.Data)

	mutations := make([]*model.Mutation, 0, len(candidates))
	for i, cand := range candidates {
		m := &model.Mutation{
			ID:            generateID("mut"),
			CampaignID:    campaign.ID,
			GenomeID:      campaign.GenomeID,
			Sequence:      maxSeq + i + 1,
			MutationType:  cand.MutationType,
			OriginalCode:  original,
			MutatedCode:   cand.MutatedCode,
			Diff:          renderDiff(original, cand.MutatedCode),
			Description:   cand.Description,
			Explain:       cand.Explain,
			Status:        model.MutationStatusProposed,
			MetricsBefore: before,
		}
		if err := c.store.CreateMutation(ctx, m); err != nil {
			return nil, err
		}
		c.recorder.RecordMutation(ctx, campaign.ID, m.ID, model.HistoryActionProposed,
			map[string]interface{}{"sequence": m.Sequence, "mutation_type": m.MutationType})
		if c.archiver != nil {
			if err := c.archiver.ArchiveMutationCode(ctx, m.ID, m.OriginalCode, m.MutatedCode); err != nil {
				log.Printf("[controller.archive.failed] mutation_id=%s error=%v", m.ID, err)
			}
		}
		mutations = append(mutations, m)
	}
	return mutations, nil
}

// evalOutcome 一次评估的结果
type evalOutcome struct {
	mutation    *model.Mutation
	test        *model.MutationTest
	err         error
	dispatched  bool
	completedAt time.Time
}

// evaluateBatch 并发评估一批变异
//
// 派发受 max_concurrent_evaluations 信号量约束；返回的 outcomes
// 与入参同序（即变异序号升序）。abandon 取消会立即中断在途评估。
func (e *Execution) evaluateBatch(ctx context.Context, mutations []*model.Mutation, cfg model.CampaignConfiguration) []*evalOutcome {
	c := e.ctrl

	batchCtx, cancelBatch := context.WithCancel(ctx)
	defer cancelBatch()

	// abandon 取消时中断在途评估，不再等它们自然结束
	go func() {
		select {
		case <-batchCtx.Done():
		case <-e.cancelCh:
			if _, mode, _ := e.cancelState(); mode == model.CancelAbandon {
				cancelBatch()
			}
		}
	}()

	sem := make(chan struct{}, cfg.MaxConcurrentEvaluations)
	var wg sync.WaitGroup

	outcomes := make([]*evalOutcome, len(mutations))
	for i, m := range mutations {
		outcomes[i] = &evalOutcome{mutation: m}

		// 每个派发步骤开头检查取消/超时；未派发的变异保持 proposed
		if cancelled, _, _ := e.cancelState(); cancelled {
			continue
		}
		if ctx.Err() != nil {
			continue
		}

		out := outcomes[i]
		out.dispatched = true
		wg.Add(1)
		go func(m *model.Mutation, out *evalOutcome) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			if err := c.store.UpdateMutationStatus(batchCtx, m.ID, model.MutationStatusTesting); err != nil {
				out.err = err
				out.completedAt = time.Now()
				return
			}

			evalCtx := batchCtx
			if t := c.evalTimeout(cfg); t > 0 {
				var cancel context.CancelFunc
				evalCtx, cancel = context.WithTimeout(batchCtx, t)
				defer cancel()
			}

			out.test, out.err = evaluator.EvaluateWithRetry(evalCtx, c.eval, m, cfg.MaxRetries, c.retryBaseDelay)
			out.completedAt = time.Now()

			if c.metrics != nil {
				outcome := "ok"
				if out.err != nil {
					outcome = "error"
				}
				c.metrics.RecordEvaluation(outcome, time.Since(start))
			}
		}(m, out)
	}

	wg.Wait()
	return outcomes
}

// evaluatorUnreachableError 瞬态评估错误耗尽重试上限
//
// 变异本身落 failed，随后整次执行升级为活动失败：瞬态错误意味着
// 评估器不可达，继续消耗预算只会重复同一结局。
type evaluatorUnreachableError struct {
	err error
}

func (e *evaluatorUnreachableError) Error() string {
	return fmt.Sprintf("evaluator unreachable: %v", e.err)
}

// processOutcomes 按序号处理一批评估结果：先打分，再做接受决策
func (e *Execution) processOutcomes(ctx context.Context, campaign *model.Campaign, cfg model.CampaignConfiguration, outcomes []*evalOutcome) error {
	c := e.ctrl
	cancelled, mode, cancelledAt := e.cancelState()
	batchBaseline := e.baseline
	var transientErr error

	type scoredOutcome struct {
		mutation *model.Mutation
		scores   scorer.Scores
		passRate float64
	}
	var scored []*scoredOutcome

	for _, out := range outcomes {
		if !out.dispatched {
			continue // 取消/超时前未派发，保持 proposed，不计入预算
		}
		if cancelled && mode == model.CancelAbandon && out.completedAt.After(cancelledAt) {
			continue // 放弃模式：取消时间点之后返回的结果丢弃，变异保持 testing
		}

		m := out.mutation
		e.results.MutationsTried++

		if out.err != nil {
			// 评估器错误（非测试失败）：该变异 failed。
			// 永久错误只波及该变异；瞬态错误耗尽重试上限说明
			// 评估器不可达，整批收尾后升级为活动失败。
			e.results.MutationsFailed++
			if err := c.store.UpdateMutationStatus(ctx, m.ID, model.MutationStatusFailed); err != nil {
				return err
			}
			transient := evaluator.IsTransient(out.err)
			c.recorder.RecordMutation(ctx, campaign.ID, m.ID, model.HistoryActionFailed,
				map[string]interface{}{"error": out.err.Error(), "transient": transient})
			c.recordMutationOutcome("failed")
			if transient && transientErr == nil {
				transientErr = out.err
			}
			continue
		}

		test := out.test
		test.ID = generateID("mt")
		test.MutationID = m.ID
		if err := c.store.CreateMutationTest(ctx, test); err != nil {
			return err
		}
		c.recorder.RecordMutation(ctx, campaign.ID, m.ID, model.HistoryActionEvaluated,
			map[string]interface{}{"test_id": test.ID, "pass_rate": test.PassRate})
		if c.archiver != nil {
			if err := c.archiver.ArchiveTestResults(ctx, m.ID, test.ID, test.TestResults); err != nil {
				log.Printf("[controller.archive.failed] mutation_id=%s test_id=%s error=%v", m.ID, test.ID, err)
			}
		}

		after := snapshotFromTest(test)
		scores, err := c.scorer.Score(scorer.Input{
			Before:       m.MetricsBefore,
			After:        after,
			Tests:        []*model.MutationTest{test},
			Config:       cfg,
			TargetMetric: campaign.TargetMetric,
		})
		if err != nil {
			e.results.MutationsFailed++
			if serr := c.store.UpdateMutationStatus(ctx, m.ID, model.MutationStatusFailed); serr != nil {
				return serr
			}
			c.recorder.RecordMutation(ctx, campaign.ID, m.ID, model.HistoryActionFailed,
				map[string]interface{}{"error": err.Error()})
			c.recordMutationOutcome("failed")
			continue
		}

		if err := c.store.SetMutationScores(ctx, m.ID, scores.Safety, scores.Confidence, scores.Composite); err != nil {
			return err
		}
		m.MetricsAfter = after
		c.recorder.RecordMutation(ctx, campaign.ID, m.ID, model.HistoryActionScored,
			map[string]interface{}{
				"safety_score":     scores.Safety,
				"confidence_score": scores.Confidence,
				"composite_score":  scores.Composite,
			})

		if scores.Composite > e.results.BestComposite {
			e.results.BestComposite = scores.Composite
		}
		scored = append(scored, &scoredOutcome{mutation: m, scores: scores, passRate: test.PassRate})
	}

	// 接受决策严格按序号升序；接受一个变异后基线即时刷新，
	// 后续变异对新基线复核
	for _, so := range scored {
		m := so.mutation
		decision := evaluateAcceptance(so.scores, so.passRate, e.baseline, cfg)

		if decision.Accept {
			applied, err := e.applyMutation(ctx, campaign, cfg, so.mutation, so.scores, so.passRate)
			if err != nil {
				return err
			}
			if applied {
				e.results.MutationsAccepted++
				c.recordMutationOutcome("applied")
				continue
			}
			// CAS 重试耗尽，或换入竞争后的新基线下不再达标
			decision = Decision{Reason: ReasonSuperseded}
		} else if decision.Reason == ReasonInsufficientImprovement && e.baseline > batchBaseline {
			// 本批内兄弟变异已被接受：原基线下本可接受的变异按"被取代"记录
			if evaluateAcceptance(so.scores, so.passRate, batchBaseline, cfg).Accept {
				decision.Reason = ReasonSuperseded
			}
		}

		e.results.MutationsRejected++
		if err := c.store.UpdateMutationStatus(ctx, m.ID, model.MutationStatusRejected); err != nil {
			return err
		}
		c.recorder.RecordMutation(ctx, campaign.ID, m.ID, model.HistoryActionRejected,
			map[string]interface{}{"reason": decision.Reason, "composite_score": so.scores.Composite})
		c.recordMutationOutcome("rejected")
	}

	if transientErr != nil {
		return &evaluatorUnreachableError{err: transientErr}
	}
	return nil
}

// applyMutation 原子换入被接受的变异
//
// 乐观并发：CAS 失败说明另一个活动抢先换入了同一基因组，
// 重新加载基线并复核接受条件，至多 apply_max_retries 次，
// 仍不达标或重试耗尽时按 superseded 拒绝（由调用方落盘）。
func (e *Execution) applyMutation(ctx context.Context, campaign *model.Campaign, cfg model.CampaignConfiguration, m *model.Mutation, scores scorer.Scores, passRate float64) (bool, error) {
	c := e.ctrl

	data := json.RawMessage(m.MutatedCode)
	if !json.Valid(data) {
		// 负载不是 JSON 时按字符串包装，保证 JSONB 列可写
		wrapped, err := json.Marshal(m.MutatedCode)
		if err != nil {
			return false, err
		}
		data = wrapped
	}

	for attempt := 0; attempt <= cfg.ApplyMaxRetries; attempt++ {
		err := c.store.CompareAndSwapGenome(ctx, e.genome.ID, e.genome.Version, data, m.MetricsAfter)
		if err == nil {
			actor := history.ActorFrom(ctx, c.defaultActor)
			now := time.Now()
			if err := c.store.MarkMutationApplied(ctx, m.ID, actor, now); err != nil {
				return false, err
			}
			c.recorder.RecordMutation(ctx, campaign.ID, m.ID, model.HistoryActionAccepted,
				map[string]interface{}{"composite_score": scores.Composite, "baseline": e.baseline})
			c.recorder.RecordMutation(ctx, campaign.ID, m.ID, model.HistoryActionApplied,
				map[string]interface{}{"genome_version": e.genome.Version + 1})

			// 刷新本地基线：后续兄弟变异对换入后的状态复核
			e.genome.Version++
			e.genome.Data = data
			e.genome.Metrics = m.MetricsAfter
			e.baseline = scores.Composite
			log.Printf("[controller.mutation.applied] campaign_id=%s mutation_id=%s version=%d composite=%.4f",
				campaign.ID, m.ID, e.genome.Version, scores.Composite)
			return true, nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			return false, err
		}

		// 乐观换入输了竞争：重新加载并对新基线复核
		if c.metrics != nil {
			c.metrics.RecordCASConflict()
		}
		log.Printf("[controller.apply.conflict] campaign_id=%s mutation_id=%s attempt=%d", campaign.ID, m.ID, attempt+1)

		fresh, gerr := c.store.GetGenome(ctx, e.genome.ID)
		if gerr != nil {
			return false, gerr
		}
		if fresh == nil || !fresh.IsMutable() {
			return false, nil
		}
		e.genome = fresh
		e.baseline = c.scorer.Baseline(fresh.Metrics, cfg)
		if !evaluateAcceptance(scores, passRate, e.baseline, cfg).Accept {
			return false, nil
		}
	}
	return false, nil
}

func (c *Controller) recordMutationOutcome(status string) {
	if c.metrics != nil {
		c.metrics.RecordMutationOutcome(status)
	}
}

// ============================================================================
// 终止路径
// ============================================================================

func (e *Execution) finishCompleted(ctx context.Context, campaign *model.Campaign) error {
	return e.finish(ctx, campaign, model.CampaignStatusCompleted, model.RunStatusCompleted,
		model.HistoryActionCampaignCompleted, "")
}

func (e *Execution) finishFailed(ctx context.Context, campaign *model.Campaign, reason, detail string) error {
	e.results.Reason = reason
	log.Printf("[controller.run.failed] campaign_id=%s run_id=%s reason=%s detail=%s",
		campaign.ID, e.runID, reason, detail)
	return e.finish(ctx, campaign, model.CampaignStatusFailed, model.RunStatusFailed,
		model.HistoryActionCampaignFailed, detail)
}

func (e *Execution) finishCancelled(ctx context.Context, campaign *model.Campaign, mode model.CancellationMode) error {
	e.results.Reason = "cancelled:" + string(mode)
	return e.finish(ctx, campaign, model.CampaignStatusCancelled, model.RunStatusCancelled,
		model.HistoryActionCampaignCancelled, string(mode))
}

func (e *Execution) finish(ctx context.Context, campaign *model.Campaign, campaignStatus model.CampaignStatus, runStatus model.RunStatus, action model.HistoryAction, detail string) error {
	c := e.ctrl

	// 进程退出路径下 ctx 可能已取消，终止状态仍要落盘
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
	}

	if err := c.store.UpdateCampaignRunStatus(ctx, e.runID, runStatus, &e.results); err != nil {
		return err
	}
	if err := c.store.UpdateCampaignStatus(ctx, campaign.ID, campaignStatus); err != nil && !errors.Is(err, storage.ErrConflict) {
		return err
	}

	metadata := map[string]interface{}{
		"run_id":             e.runID,
		"mutations_tried":    e.results.MutationsTried,
		"mutations_accepted": e.results.MutationsAccepted,
		"mutations_rejected": e.results.MutationsRejected,
		"mutations_failed":   e.results.MutationsFailed,
		"best_composite":     e.results.BestComposite,
	}
	if e.results.Reason != "" {
		metadata["reason"] = e.results.Reason
	}
	if detail != "" {
		metadata["detail"] = detail
	}
	c.recorder.RecordCampaign(ctx, campaign.ID, action, metadata)

	log.Printf("[controller.run.done] campaign_id=%s run_id=%s status=%s tried=%d accepted=%d rejected=%d failed=%d best=%.4f",
		campaign.ID, e.runID, campaignStatus, e.results.MutationsTried, e.results.MutationsAccepted,
		e.results.MutationsRejected, e.results.MutationsFailed, e.results.BestComposite)
	return nil
}
