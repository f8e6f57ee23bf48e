package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/pkg/idgen"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/xerrors"
)

// ErrStreamingDisabled 未配置消息队列时流式接口不可用.
var ErrStreamingDisabled = xerrors.New(xerrors.ErrUnavailable, 503001, "rate streaming disabled", "message queue is not configured", nil)

// 流参数边界. 每个报价把模型时间推进一个交易日.
const (
	streamTickDt          = 1.0 / 252
	minStreamInterval     = 100 * time.Millisecond
	maxStreamInterval     = time.Minute
	defaultStreamInterval = time.Second
)

// RateStreamManager 利率流管理器
// 每个流由一个后台协程驱动, 沿所选短期利率模型逐报价推进,
// 并把报价发布到消息队列
type RateStreamManager struct {
	publisher domain.RatePublisher

	mu      sync.Mutex
	streams map[string]*rateStream
}

type rateStream struct {
	id        string
	kind      domain.ModelKind
	rate      float64
	interval  time.Duration
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewRateStreamManager 创建利率流管理器. publisher 为 nil 时拒绝启动流.
func NewRateStreamManager(publisher domain.RatePublisher) *RateStreamManager {
	return &RateStreamManager{
		publisher: publisher,
		streams:   make(map[string]*rateStream),
	}
}

// StartStream 启动一条利率流, 返回流的初始状态.
func (m *RateStreamManager) StartStream(ctx context.Context, cmd StartStreamCommand) (*StreamDTO, error) {
	if m.publisher == nil {
		return nil, ErrStreamingDisabled
	}
	kind, err := domain.ParseModelKind(orDefault(cmd.Model, string(domain.ModelVasicek)))
	if err != nil {
		return nil, err
	}
	model, err := domain.NewShortRateModel(kind)
	if err != nil {
		return nil, err
	}

	rate := cmd.InitialRate
	if rate == 0 {
		rate = domain.DefaultLongRunMean
	}
	if kind == domain.ModelBlackDermanToy && rate <= 0 {
		return nil, xerrors.ErrInvalidInput
	}

	interval := defaultStreamInterval
	if cmd.IntervalMS != 0 {
		interval = time.Duration(cmd.IntervalMS) * time.Millisecond
	}
	if interval < minStreamInterval || interval > maxStreamInterval {
		return nil, xerrors.ErrInvalidInput
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	st := &rateStream{
		id:        fmt.Sprintf("RATE-%d", idgen.GenID()),
		kind:      kind,
		rate:      rate,
		interval:  interval,
		startedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.streams[st.id] = st
	m.mu.Unlock()

	go m.run(streamCtx, st, model)

	logging.Info(ctx, "rate stream started",
		"stream_id", st.id, "model", string(kind), "interval", interval.String())
	return &StreamDTO{
		StreamID:  st.id,
		Model:     string(kind),
		Rate:      rate,
		Interval:  interval.String(),
		StartedAt: st.startedAt.Unix(),
	}, nil
}

// StopStream 停止指定的利率流并等待其协程退出.
func (m *RateStreamManager) StopStream(ctx context.Context, streamID string) error {
	m.mu.Lock()
	st, ok := m.streams[streamID]
	if ok {
		delete(m.streams, streamID)
	}
	m.mu.Unlock()
	if !ok {
		return xerrors.NotFound("stream not found")
	}

	st.cancel()
	<-st.done
	logging.Info(ctx, "rate stream stopped", "stream_id", streamID)
	return nil
}

// ListStreams 返回当前活跃流的快照, 按流 ID 排序.
func (m *RateStreamManager) ListStreams(_ context.Context) []*StreamDTO {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*StreamDTO, 0, len(m.streams))
	for _, st := range m.streams {
		out = append(out, &StreamDTO{
			StreamID:  st.id,
			Model:     string(st.kind),
			Rate:      st.rate,
			Interval:  st.interval.String(),
			StartedAt: st.startedAt.Unix(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StreamID < out[j].StreamID })
	return out
}

// Close 停止全部利率流, 服务关停时调用.
func (m *RateStreamManager) Close() {
	m.mu.Lock()
	streams := make([]*rateStream, 0, len(m.streams))
	for _, st := range m.streams {
		streams = append(streams, st)
	}
	m.streams = make(map[string]*rateStream)
	m.mu.Unlock()

	for _, st := range streams {
		st.cancel()
		<-st.done
	}
}

func (m *RateStreamManager) run(ctx context.Context, st *rateStream, model domain.ShortRateModel) {
	defer close(st.done)
	ticker := time.NewTicker(st.interval)
	defer ticker.Stop()

	src := domain.NewNormalSource(time.Now().UnixNano())
	step := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.Lock()
		current := st.rate
		m.mu.Unlock()

		next, err := advanceRate(model, current, src)
		if err != nil {
			logging.Error(ctx, "rate stream step failed", "stream_id", st.id, "error", err)
			continue
		}
		step++

		m.mu.Lock()
		st.rate = next
		m.mu.Unlock()

		tick := domain.RateTick{
			StreamID:  st.id,
			Model:     st.kind,
			Step:      step,
			Time:      float64(step) * streamTickDt,
			Rate:      next,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := m.publisher.PublishRate(context.Background(), tick); err != nil {
			logging.Error(context.Background(), "failed to publish rate tick",
				"stream_id", st.id, "error", err)
		}
	}
}

// advanceRate 以单步模拟把利率向前推进一个报价周期.
func advanceRate(model domain.ShortRateModel, current float64, src *domain.NormalSource) (float64, error) {
	paths, err := model.Simulate(domain.RateSimulationRequest{
		InitialRate: current,
		Horizon:     streamTickDt,
		StepCount:   1,
		PathCount:   1,
		Model:       model.Kind(),
	}, src)
	if err != nil {
		return 0, err
	}
	return paths[0][1].Rate, nil
}
