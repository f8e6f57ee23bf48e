package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/pkg/xerrors"
)

// capturingPublisher 记录收到的全部报价, 供断言使用.
type capturingPublisher struct {
	mu    sync.Mutex
	ticks []domain.RateTick
	fail  bool
}

func (p *capturingPublisher) PublishRate(_ context.Context, tick domain.RateTick) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return fmt.Errorf("broker unavailable")
	}
	p.ticks = append(p.ticks, tick)
	return nil
}

func (p *capturingPublisher) snapshot() []domain.RateTick {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.RateTick, len(p.ticks))
	copy(out, p.ticks)
	return out
}

func TestRateStreamManager_RefusesWithoutPublisher(t *testing.T) {
	mgr := NewRateStreamManager(nil)
	_, err := mgr.StartStream(context.Background(), StartStreamCommand{})
	if !errors.Is(err, ErrStreamingDisabled) {
		t.Fatalf("expected ErrStreamingDisabled, got %v", err)
	}
}

func TestRateStreamManager_StartStopList(t *testing.T) {
	pub := &capturingPublisher{}
	mgr := NewRateStreamManager(pub)
	defer mgr.Close()

	dto, err := mgr.StartStream(context.Background(), StartStreamCommand{
		Model:       "vasicek",
		InitialRate: 0.05,
		IntervalMS:  100,
	})
	if err != nil {
		t.Fatalf("start err: %v", err)
	}
	if dto.StreamID == "" {
		t.Fatal("expected stream id")
	}
	if dto.Model != "vasicek" || dto.Rate != 0.05 || dto.Interval != "100ms" {
		t.Fatalf("unexpected stream dto: %+v", dto)
	}

	listed := mgr.ListStreams(context.Background())
	if len(listed) != 1 || listed[0].StreamID != dto.StreamID {
		t.Fatalf("list mismatch: %+v", listed)
	}

	time.Sleep(350 * time.Millisecond)
	ticks := pub.snapshot()
	if len(ticks) == 0 {
		t.Fatal("expected at least one published tick")
	}
	for i, tick := range ticks {
		if tick.StreamID != dto.StreamID {
			t.Fatalf("tick %d stream id mismatch: %s", i, tick.StreamID)
		}
		if tick.Model != domain.ModelVasicek {
			t.Fatalf("tick %d model mismatch: %s", i, tick.Model)
		}
		if tick.Step != i+1 {
			t.Fatalf("tick %d step mismatch: got=%d", i, tick.Step)
		}
	}

	if err := mgr.StopStream(context.Background(), dto.StreamID); err != nil {
		t.Fatalf("stop err: %v", err)
	}
	if got := mgr.ListStreams(context.Background()); len(got) != 0 {
		t.Fatalf("stream still listed after stop: %+v", got)
	}

	// StopStream 等待协程退出, 之后不应再有新报价.
	frozen := len(pub.snapshot())
	time.Sleep(150 * time.Millisecond)
	if got := len(pub.snapshot()); got != frozen {
		t.Fatalf("ticks kept arriving after stop: %d -> %d", frozen, got)
	}
}

func TestRateStreamManager_Defaults(t *testing.T) {
	pub := &capturingPublisher{}
	mgr := NewRateStreamManager(pub)
	defer mgr.Close()

	dto, err := mgr.StartStream(context.Background(), StartStreamCommand{})
	if err != nil {
		t.Fatalf("start err: %v", err)
	}
	if dto.Model != "vasicek" {
		t.Fatalf("default model mismatch: %s", dto.Model)
	}
	if dto.Rate != domain.DefaultLongRunMean {
		t.Fatalf("default rate mismatch: %v", dto.Rate)
	}
	if dto.Interval != "1s" {
		t.Fatalf("default interval mismatch: %s", dto.Interval)
	}
}

func TestRateStreamManager_InvalidParams(t *testing.T) {
	mgr := NewRateStreamManager(&capturingPublisher{})
	defer mgr.Close()

	cases := []StartStreamCommand{
		{Model: "cir"},
		{IntervalMS: 50},
		{IntervalMS: 120000},
		{Model: "black-derman-toy", InitialRate: -0.01},
	}
	for i, cmd := range cases {
		if _, err := mgr.StartStream(context.Background(), cmd); !errors.Is(err, xerrors.ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestRateStreamManager_StopUnknown(t *testing.T) {
	mgr := NewRateStreamManager(&capturingPublisher{})
	err := mgr.StopStream(context.Background(), "RATE-0")
	var xe *xerrors.Error
	if !errors.As(err, &xe) || xe.Type != xerrors.ErrNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestRateStreamManager_SurvivesPublishFailure(t *testing.T) {
	pub := &capturingPublisher{fail: true}
	mgr := NewRateStreamManager(pub)
	defer mgr.Close()

	dto, err := mgr.StartStream(context.Background(), StartStreamCommand{IntervalMS: 100})
	if err != nil {
		t.Fatalf("start err: %v", err)
	}
	time.Sleep(250 * time.Millisecond)

	// 发布失败只记日志, 流保持活跃.
	listed := mgr.ListStreams(context.Background())
	if len(listed) != 1 || listed[0].StreamID != dto.StreamID {
		t.Fatalf("stream should survive publish failures: %+v", listed)
	}
}

func TestRateStreamManager_CloseStopsAll(t *testing.T) {
	mgr := NewRateStreamManager(&capturingPublisher{})
	for i := 0; i < 3; i++ {
		if _, err := mgr.StartStream(context.Background(), StartStreamCommand{IntervalMS: 100}); err != nil {
			t.Fatalf("start %d err: %v", i, err)
		}
	}
	mgr.Close()
	if got := mgr.ListStreams(context.Background()); len(got) != 0 {
		t.Fatalf("streams remain after close: %+v", got)
	}
}
