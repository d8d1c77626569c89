// Package recommend 推薦流程協調器
//
// 協調器是菜色集合唯一的寫入者。補充任務拿到菜色複本，
// 完成後把結果以 slotUpdate 送回，由協調器依提交與位置合併。
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dish-recommender/internal/core/dish"
	"dish-recommender/internal/core/extract"
	"dish-recommender/internal/core/image"
	"dish-recommender/internal/core/metrics"
	"dish-recommender/internal/core/nutrition"
	"dish-recommender/internal/core/retry"
	"dish-recommender/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrBlankIngredients 食材為空白，不做任何事
	ErrBlankIngredients = common.NewValidationError("ingredients must not be blank")

	// ErrSubmissionInProgress 已有提交在進行中
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
)

// Completer 取得模型回覆
type Completer interface {
	Complete(ctx context.Context, ingredients string) (string, error)
}

// Enricher 營養補充
type Enricher interface {
	Enrich(ctx context.Context, rawIngredients string) (nutrition.Result, error)
}

// Options 協調器設定
type Options struct {
	MaxAttempts       int           // 擷取不到菜色時最多嘗試幾次（含第一次）
	RetryDelay        time.Duration // 擷取重試的初始等待
	Workers           int           // 同時執行的補充任務上限
	SubmissionTimeout time.Duration
}

// Orchestrator 推薦流程協調器
type Orchestrator struct {
	completer Completer
	extractor extract.Extractor
	enricher  Enricher
	images    image.Finder
	metrics   *metrics.Metrics
	opts      Options

	mu      sync.RWMutex
	state   Snapshot
	running bool
	subs    map[int]chan Snapshot
	nextSub int

	wg sync.WaitGroup
}

// New 創建協調器，images 與 m 可為 nil
func New(completer Completer, extractor extract.Extractor, enricher Enricher, images image.Finder, m *metrics.Metrics, opts Options) *Orchestrator {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Workers <= 0 {
		opts.Workers = 6
	}
	if extractor == nil {
		extractor = extract.NewPatternExtractor()
	}

	return &Orchestrator{
		completer: completer,
		extractor: extractor,
		enricher:  enricher,
		images:    images,
		metrics:   m,
		opts:      opts,
		state: Snapshot{
			Phase:     PhaseIdle,
			UpdatedAt: time.Now(),
		},
		subs: make(map[int]chan Snapshot),
	}
}

// Snapshot 目前狀態的深拷貝
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.clone()
}

// InProgress 是否有提交進行中
func (o *Orchestrator) InProgress() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.running
}

// Submit 同步執行一次提交，回傳結束時的狀態
func (o *Orchestrator) Submit(ctx context.Context, ingredients string) (Snapshot, error) {
	id, ingredients, err := o.begin(ingredients)
	if err != nil {
		return o.Snapshot(), err
	}
	o.run(ctx, id, ingredients)
	return o.Snapshot(), nil
}

// SubmitAsync 在背景執行提交，回傳提交編號
//
// 背景流程不隨 ctx 取消，只受 SubmissionTimeout 限制。
func (o *Orchestrator) SubmitAsync(ctx context.Context, ingredients string) (string, error) {
	id, ingredients, err := o.begin(ingredients)
	if err != nil {
		return "", err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(context.WithoutCancel(ctx), id, ingredients)
	}()
	return id, nil
}

// Wait 等待背景提交結束
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// begin 檢查輸入並佔用進行中旗標
func (o *Orchestrator) begin(ingredients string) (string, string, error) {
	ingredients = strings.TrimSpace(ingredients)
	if ingredients == "" {
		return "", "", ErrBlankIngredients
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return "", "", ErrSubmissionInProgress
	}
	o.running = true

	id := common.GenerateUUID()
	o.state = Snapshot{
		SubmissionID: id,
		Phase:        PhaseRequesting,
		InProgress:   true,
		Ingredients:  ingredients,
		Dishes:       []dish.Record{},
	}
	o.publishLocked()
	o.metrics.SetInProgress(true)

	common.LogInfo("開始推薦流程", zap.String("submission_id", id), zap.String("ingredients", common.Truncate(ingredients, 100)))
	return id, ingredients, nil
}

func (o *Orchestrator) run(ctx context.Context, id, ingredients string) {
	start := time.Now()
	if o.opts.SubmissionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.SubmissionTimeout)
		defer cancel()
	}

	outcome := "settled"
	defer func() {
		if r := recover(); r != nil {
			common.LogError("推薦流程異常", zap.Any("panic", r), zap.String("submission_id", id))
			outcome = "panic"
			o.settle(id, "", &Failure{Code: common.ErrCodeInternalError, Message: common.ErrInternalError.Message})
		}
		o.metrics.Submission(outcome)
		o.metrics.SetInProgress(false)
		common.LogInfo("推薦流程完成",
			zap.String("submission_id", id),
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	raw, drafts, err := o.requestDishes(ctx, id, ingredients)
	if err != nil {
		outcome = strings.ToLower(common.CodeOf(err))
		o.settle(id, raw, failureOf(err))
		return
	}

	records := make([]dish.Record, len(drafts))
	for i, d := range drafts {
		records[i] = dish.NewRecord(i, d)
		records[i].State = dish.StateLoading
	}

	// 先發布未補充的菜色，讓觀察者可以先顯示
	o.mu.Lock()
	if o.state.SubmissionID == id {
		o.state.Phase = PhaseEnriching
		o.state.Dishes = dish.CloneAll(records)
		o.publishLocked()
	}
	o.mu.Unlock()

	o.enrich(ctx, id, records)
	o.settle(id, "", nil)
}

// requestDishes 取得回覆並擷取菜色；擷取不到時重新請求，網路錯誤不在這裡重試
func (o *Orchestrator) requestDishes(ctx context.Context, id, ingredients string) (string, []dish.Draft, error) {
	var raw string
	var drafts []dish.Draft
	errEmpty := common.Wrap(common.ErrExtractionEmpty, fmt.Errorf("no dishes extracted"))

	policy := retry.Policy{MaxRetries: o.opts.MaxAttempts - 1, InitialDelay: o.opts.RetryDelay}
	err := retry.DoNotify(ctx, policy, func(ctx context.Context) error {
		o.setPhase(id, PhaseRequesting, true)

		text, err := o.completer.Complete(ctx, ingredients)
		if err != nil {
			o.metrics.ExtractionAttempt("upstream_error")
			return retry.Permanent(err)
		}
		raw = text

		o.setPhase(id, PhaseExtracting, false)
		drafts = o.extractor.Extract(text)
		if len(drafts) == 0 {
			o.metrics.ExtractionAttempt("empty")
			return errEmpty
		}
		o.metrics.ExtractionAttempt("ok")
		return nil
	}, func(err error, attempt int, wait time.Duration) {
		common.LogWarn("回覆中沒有可擷取的菜色，重新請求",
			zap.String("submission_id", id),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
		o.setPhase(id, PhaseRetrying, false)
	})
	if err != nil {
		return raw, nil, err
	}
	return raw, drafts, nil
}

// enrich 每道菜並行查詢營養與圖片，結果經由 channel 回到這裡依序合併
func (o *Orchestrator) enrich(ctx context.Context, id string, records []dish.Record) {
	tasks := len(records)
	if o.images != nil {
		tasks *= 2
	}
	updates := make(chan slotUpdate, tasks)

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)

	go func() {
		for _, rec := range records {
			rec := rec.Clone()
			g.Go(func() error {
				updates <- o.nutritionTask(ctx, id, rec)
				return nil
			})
			if o.images != nil {
				g.Go(func() error {
					updates <- o.imageTask(ctx, id, rec)
					return nil
				})
			}
		}
		_ = g.Wait()
		close(updates)
	}()

	for u := range updates {
		o.apply(u)
	}
}

func (o *Orchestrator) nutritionTask(ctx context.Context, id string, rec dish.Record) (u slotUpdate) {
	start := time.Now()
	u = slotUpdate{submission: id, slot: rec.Slot, kind: updateNutrition}
	defer func() {
		if r := recover(); r != nil {
			u.err = fmt.Errorf("nutrition task panic: %v", r)
		}
		o.metrics.ObserveEnrichment("nutrition", time.Since(start))
	}()

	res, err := o.enricher.Enrich(ctx, rec.RawIngredients)
	u.query = res.Query
	if err != nil {
		u.err = err
		o.metrics.NutritionFailure(failureReason(err))
		common.LogWarn("營養補充失敗",
			zap.String("submission_id", id),
			zap.Int("slot", rec.Slot),
			zap.String("dish", rec.Name),
			zap.Error(err),
		)
		return u
	}

	vec := res.Nutrients
	u.nutrients = &vec
	if res.Normalized != nil {
		n := *res.Normalized
		u.normalized = &n
	}
	return u
}

func (o *Orchestrator) imageTask(ctx context.Context, id string, rec dish.Record) (u slotUpdate) {
	start := time.Now()
	u = slotUpdate{submission: id, slot: rec.Slot, kind: updateImage}
	defer func() {
		if r := recover(); r != nil {
			u.err = fmt.Errorf("image task panic: %v", r)
		}
		o.metrics.ObserveEnrichment("image", time.Since(start))
	}()

	url, err := o.images.Find(ctx, rec.Name)
	switch {
	case err == nil:
		o.metrics.ImageLookup("found")
		u.imageURL = url
	case errors.Is(err, image.ErrNoImage):
		o.metrics.ImageLookup("missing")
	default:
		o.metrics.ImageLookup("error")
		u.err = err
		common.LogDebug("圖片查詢失敗", zap.String("dish", rec.Name), zap.Error(err))
	}
	return u
}

// apply 合併單一結果；舊提交的結果直接丟棄
func (o *Orchestrator) apply(u slotUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if u.submission != o.state.SubmissionID || u.slot < 0 || u.slot >= len(o.state.Dishes) {
		common.LogDebug("丟棄過期的補充結果", zap.String("submission_id", u.submission), zap.Int("slot", u.slot))
		return
	}

	rec := &o.state.Dishes[u.slot]
	switch u.kind {
	case updateNutrition:
		rec.NutritionQuery = u.query
		if u.err != nil || u.nutrients == nil {
			rec.State = dish.StateFailed
			break
		}
		rec.Nutrients = u.nutrients
		rec.Normalized = u.normalized
		rec.State = dish.StateDone
	case updateImage:
		if u.err == nil && u.imageURL != "" {
			rec.ImageURL = u.imageURL
		}
	}
	o.publishLocked()
}

func (o *Orchestrator) setPhase(id string, phase Phase, newAttempt bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.SubmissionID != id {
		return
	}
	o.state.Phase = phase
	if newAttempt {
		o.state.Attempts++
	}
	o.publishLocked()
}

// settle 結束提交並釋放進行中旗標
func (o *Orchestrator) settle(id, raw string, failure *Failure) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.SubmissionID != id {
		return
	}
	o.state.Phase = PhaseSettled
	o.state.InProgress = false
	o.state.Failure = failure
	if failure != nil {
		o.state.Dishes = []dish.Record{}
		o.state.RawText = raw
	}
	o.running = false
	o.publishLocked()
}

// Subscribe 訂閱狀態變化，只保留最新的一份快照
func (o *Orchestrator) Subscribe() (<-chan Snapshot, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ch := make(chan Snapshot, 1)
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	ch <- o.state.clone()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// publishLocked 呼叫端需持有寫鎖
func (o *Orchestrator) publishLocked() {
	o.state.UpdatedAt = time.Now()
	if len(o.subs) == 0 {
		return
	}

	snap := o.state.clone()
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func failureOf(err error) *Failure {
	var ce *common.CustomError
	if errors.As(err, &ce) {
		return &Failure{Code: ce.Code, Message: ce.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Failure{Code: common.ErrCodeServiceUnavailable, Message: common.ErrServiceUnavailable.Message}
	}
	return &Failure{Code: common.ErrCodeInternalError, Message: common.ErrInternalError.Message}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, nutrition.ErrNoMatch):
		return "no_match"
	case errors.Is(err, common.ErrMalformedPayload):
		return "malformed"
	case errors.Is(err, common.ErrUpstreamRequestFailed):
		return "upstream"
	default:
		return "other"
	}
}
