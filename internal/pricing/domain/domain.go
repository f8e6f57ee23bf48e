// Package domain 期权定价与短期利率模拟引擎的领域模型.
package domain

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/xerrors"
)

// OptionType 期权类型
type OptionType string

const (
	OptionTypeCall OptionType = "CALL" // 看涨期权
	OptionTypePut  OptionType = "PUT"  // 看跌期权
)

// ParseOptionType 解析期权类型, 接受大小写不敏感的 call/put.
func ParseOptionType(s string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(OptionTypeCall):
		return OptionTypeCall, nil
	case string(OptionTypePut):
		return OptionTypePut, nil
	default:
		return "", xerrors.ErrInvalidOptionType
	}
}

// ModelKind 短期利率模型类型
type ModelKind string

const (
	ModelVasicek        ModelKind = "vasicek"          // 均值回归高斯模型
	ModelHullWhite      ModelKind = "hull-white"       // 时变漂移高斯模型
	ModelBlackDermanToy ModelKind = "black-derman-toy" // 对数正态模型
)

// ParseModelKind 解析利率模型类型.
func ParseModelKind(s string) (ModelKind, error) {
	switch ModelKind(strings.ToLower(strings.TrimSpace(s))) {
	case ModelVasicek:
		return ModelVasicek, nil
	case ModelHullWhite:
		return ModelHullWhite, nil
	case ModelBlackDermanToy:
		return ModelBlackDermanToy, nil
	default:
		return "", xerrors.ErrInvalidInput
	}
}

// Title 连字符保留的标题形式, 如 hull-white -> Hull-White.
func (k ModelKind) Title() string {
	switch k {
	case ModelVasicek:
		return "Vasicek"
	case ModelHullWhite:
		return "Hull-White"
	case ModelBlackDermanToy:
		return "Black-Derman-Toy"
	default:
		return string(k)
	}
}

// DisplayName 模型对外展示名称, 用于比较结果的键.
func (k ModelKind) DisplayName() string {
	return strings.ReplaceAll(k.Title(), "-", " ")
}

// PricingRequest 期权定价请求, 请求级不可变值对象.
type PricingRequest struct {
	Spot       float64    // 标的资产价格
	Strike     float64    // 执行价格
	Maturity   float64    // 到期时间 (年)
	Rate       float64    // 无风险利率
	Volatility float64    // 波动率
	OptionType OptionType // CALL/PUT
}

// Validate 校验定价参数. 波动率与到期时间必须为正, 否则 d1 无定义.
func (r PricingRequest) Validate() error {
	if r.Spot <= 0 || r.Strike <= 0 || r.Maturity <= 0 || r.Volatility <= 0 {
		return xerrors.ErrInvalidInput
	}
	if r.OptionType != OptionTypeCall && r.OptionType != OptionTypePut {
		return xerrors.ErrInvalidOptionType
	}
	return nil
}

// Greeks 希腊字母
type Greeks struct {
	Delta decimal.Decimal
	Gamma decimal.Decimal
	Theta decimal.Decimal
	Vega  decimal.Decimal
	Rho   decimal.Decimal
}

// SimulationStats 模拟定价的统计量, 仅当模拟次数大于 1 时有意义.
type SimulationStats struct {
	StdError float64 // 折现后标准误
	Lower    float64 // 95% 置信区间下界
	Upper    float64 // 95% 置信区间上界
}

// PricingResult 定价结果. 可选字段仅在生成模型支持时填充:
// Greeks 仅由解析定价器给出, Stats 仅在模拟次数大于 1 时给出.
type PricingResult struct {
	Model       string
	Price       decimal.Decimal
	Greeks      *Greeks
	Stats       *SimulationStats
	Simulations int // 闭式模型为 0
}

// RateSimulationRequest 利率路径模拟请求.
type RateSimulationRequest struct {
	InitialRate float64   // 初始短期利率
	Horizon     float64   // 模拟期限 (年)
	StepCount   int       // 时间步数
	PathCount   int       // 路径数
	Model       ModelKind // 模型类型
}

// Validate 校验模拟参数, Δt = Horizon/StepCount 必须为正.
func (r RateSimulationRequest) Validate() error {
	if r.Horizon <= 0 || r.StepCount < 1 || r.PathCount < 1 {
		return xerrors.ErrInvalidInput
	}
	return nil
}

// Dt 单步时长.
func (r RateSimulationRequest) Dt() float64 {
	return r.Horizon / float64(r.StepCount)
}

// RatePoint 利率路径上的一个点.
type RatePoint struct {
	Time float64
	Rate float64
}

// RatePath 一条模拟利率路径, 长度为 StepCount+1, 首点利率恒等于初始利率.
type RatePath []RatePoint

// Rates 返回路径上的利率序列.
func (p RatePath) Rates() []float64 {
	out := make([]float64, len(p))
	for i, pt := range p {
		out[i] = pt.Rate
	}
	return out
}

// TimeGrid 等距时间网格 [0, horizon], 共 steps+1 个点.
func TimeGrid(horizon float64, steps int) []float64 {
	grid := make([]float64, steps+1)
	dt := horizon / float64(steps)
	for i := range grid {
		grid[i] = float64(i) * dt
	}
	grid[steps] = horizon
	return grid
}

// RateTick 实时利率流中的单个报价.
type RateTick struct {
	StreamID  string    `json:"stream_id"`
	Model     ModelKind `json:"model"`
	Step      int       `json:"step"`
	Time      float64   `json:"t"`
	Rate      float64   `json:"rate"`
	Timestamp int64     `json:"timestamp"`
}

// RatePublisher 利率流发布端口, 由基础设施层实现.
type RatePublisher interface {
	PublishRate(ctx context.Context, tick RateTick) error
}
