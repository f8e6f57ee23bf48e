package domain

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/xerrors"
)

// ModelNameMonteCarlo 蒙特卡洛定价器的对外模型名.
const ModelNameMonteCarlo = "Monte Carlo"

// TradingDaysPerYear 随机利率定价的时间步密度.
const TradingDaysPerYear = 252

// MonteCarloPricer 蒙特卡洛定价器. 每次调用单独构造, 持有独立种子的
// 随机数源, 并发调用之间不共享.
type MonteCarloPricer struct {
	simulations int
	src         *NormalSource
}

// NewMonteCarloPricer 创建蒙特卡洛定价器, 相同种子结果可复现.
func NewMonteCarloPricer(simulations int, seed int64) *MonteCarloPricer {
	return &MonteCarloPricer{
		simulations: simulations,
		src:         NewNormalSource(seed),
	}
}

// Price 终值法定价: S_T = S·exp((r-σ²/2)T + σ√T·z), 折现平均收益.
// 标准误为 e^(-rT)·样本标准差/√N, 95% 置信区间为 ±1.96 标准误.
func (p *MonteCarloPricer) Price(req PricingRequest) (*PricingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.simulations < 1 {
		return nil, xerrors.ErrInvalidInput
	}

	drift := (req.Rate - 0.5*req.Volatility*req.Volatility) * req.Maturity
	diffusion := req.Volatility * math.Sqrt(req.Maturity)
	payoffs := make([]float64, p.simulations)
	for i := range payoffs {
		terminal := req.Spot * math.Exp(drift+diffusion*p.src.Next())
		payoffs[i] = payoff(req.OptionType, terminal, req.Strike)
	}

	discount := math.Exp(-req.Rate * req.Maturity)
	result, err := summarize(payoffs, discount)
	if err != nil {
		return nil, err
	}
	result.Model = ModelNameMonteCarlo
	return result, nil
}

// PriceWithShortRate 随机短期利率下的期权定价. 利率路径由所给模型按
// 每年 252 步模拟, 股价每步以瞬时利率演化, 每条路径按自身利率积分
// e^(-Σr·Δt) 折现.
func (p *MonteCarloPricer) PriceWithShortRate(req PricingRequest, model ShortRateModel) (*PricingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.simulations < 1 {
		return nil, xerrors.ErrInvalidInput
	}

	steps := int(math.Round(TradingDaysPerYear * req.Maturity))
	if steps < 1 {
		steps = 1
	}
	sim := RateSimulationRequest{
		InitialRate: req.Rate,
		Horizon:     req.Maturity,
		StepCount:   steps,
		PathCount:   p.simulations,
		Model:       model.Kind(),
	}
	ratePaths, err := model.Simulate(sim, p.src)
	if err != nil {
		return nil, err
	}

	dt := sim.Dt()
	sqrtDt := math.Sqrt(dt)
	v := req.Volatility
	discounted := make([]float64, p.simulations)
	for i, path := range ratePaths {
		s := req.Spot
		integral := 0.0
		for j := 0; j < steps; j++ {
			r := path[j].Rate
			s *= math.Exp((r-0.5*v*v)*dt + v*sqrtDt*p.src.Next())
			integral += r * dt
		}
		discounted[i] = payoff(req.OptionType, s, req.Strike) * math.Exp(-integral)
	}

	result, err := summarize(discounted, 1)
	if err != nil {
		return nil, err
	}
	result.Model = fmt.Sprintf("Monte Carlo with %s rates", model.Kind().Title())
	return result, nil
}

// summarize 汇总模拟收益: price = discount·mean, 模拟次数大于 1 时
// 附带标准误与置信区间.
func summarize(samples []float64, discount float64) (*PricingResult, error) {
	mean, err := stats.Mean(samples)
	if err != nil {
		return nil, xerrors.ErrMathConvergence
	}
	price := discount * mean
	result := &PricingResult{
		Price:       decimal.NewFromFloat(price),
		Simulations: len(samples),
	}
	if len(samples) > 1 {
		sd, err := stats.StandardDeviationSample(samples)
		if err != nil {
			return nil, xerrors.ErrMathConvergence
		}
		se := discount * sd / math.Sqrt(float64(len(samples)))
		result.Stats = &SimulationStats{
			StdError: se,
			Lower:    price - 1.96*se,
			Upper:    price + 1.96*se,
		}
	}
	return result, nil
}

func payoff(optionType OptionType, terminal, strike float64) float64 {
	if optionType == OptionTypeCall {
		return math.Max(terminal-strike, 0)
	}
	return math.Max(strike-terminal, 0)
}
