// 包 期权定价与利率模拟的用例逻辑与传输对象
package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/optionspricing/internal/pricing/domain"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/xerrors"
)

// 请求级默认值, 与线缆契约一致.
const (
	DefaultSimulations  = 10000
	DefaultSeed         = 42
	DefaultSteps        = 100
	DefaultPaths        = 5
	DefaultCurveSamples = 50
)

// EngineLimits 引擎参数上限. 计算开销随模拟规模线性增长,
// 上限是引擎唯一的背压手段.
type EngineLimits struct {
	MaxSimulations int
	MaxPaths       int
	MaxSteps       int
}

func (l EngineLimits) withDefaults() EngineLimits {
	if l.MaxSimulations <= 0 {
		l.MaxSimulations = 1000000
	}
	if l.MaxPaths <= 0 {
		l.MaxPaths = 1000
	}
	if l.MaxSteps <= 0 {
		l.MaxSteps = 10000
	}
	return l
}

// PricingApplicationService 定价应用服务
// 编排解析定价、蒙特卡洛定价、利率模拟、曲线拟合与模型比较用例
type PricingApplicationService struct {
	analytic *domain.AnalyticPricer
	limits   EngineLimits
	seed     int64
	requests *prometheus.CounterVec   // operation/status
	latency  *prometheus.HistogramVec // operation
}

// NewPricingApplicationService 创建定价应用服务. seed 为 0 时取默认种子,
// 指标可为 nil (测试场景).
func NewPricingApplicationService(limits EngineLimits, seed int64, requests *prometheus.CounterVec, latency *prometheus.HistogramVec) *PricingApplicationService {
	if seed == 0 {
		seed = DefaultSeed
	}
	return &PricingApplicationService{
		analytic: domain.NewAnalyticPricer(),
		limits:   limits.withDefaults(),
		seed:     seed,
		requests: requests,
		latency:  latency,
	}
}

// PriceBlackScholes 解析定价用例.
func (s *PricingApplicationService) PriceBlackScholes(ctx context.Context, cmd BlackScholesCommand) (*PriceDTO, error) {
	start := time.Now()
	dto, err := s.priceBlackScholes(cmd)
	s.observe("black-scholes", start, err)
	if err != nil {
		logging.Error(ctx, "black-scholes pricing failed", "error", err)
		return nil, err
	}
	return dto, nil
}

func (s *PricingApplicationService) priceBlackScholes(cmd BlackScholesCommand) (*PriceDTO, error) {
	optionType, err := domain.ParseOptionType(cmd.OptionType)
	if err != nil {
		return nil, err
	}
	res, err := s.analytic.Price(domain.PricingRequest{
		Spot:       cmd.Spot,
		Strike:     cmd.Strike,
		Maturity:   cmd.Maturity,
		Rate:       cmd.Rate,
		Volatility: cmd.Volatility,
		OptionType: optionType,
	})
	if err != nil {
		return nil, err
	}
	return &PriceDTO{
		Model:      res.Model,
		OptionType: strings.ToLower(string(optionType)),
		Price:      res.Price.Round(4).InexactFloat64(),
		Greeks: &GreeksDTO{
			Delta: res.Greeks.Delta.Round(6).InexactFloat64(),
			Gamma: res.Greeks.Gamma.Round(6).InexactFloat64(),
			Vega:  res.Greeks.Vega.Round(6).InexactFloat64(),
			Theta: res.Greeks.Theta.Round(6).InexactFloat64(),
			Rho:   res.Greeks.Rho.Round(6).InexactFloat64(),
		},
	}, nil
}

// PriceMonteCarlo 蒙特卡洛定价用例.
func (s *PricingApplicationService) PriceMonteCarlo(ctx context.Context, cmd MonteCarloCommand) (*PriceDTO, error) {
	start := time.Now()
	dto, err := s.priceMonteCarlo(cmd)
	s.observe("monte-carlo", start, err)
	if err != nil {
		logging.Error(ctx, "monte-carlo pricing failed", "error", err)
		return nil, err
	}
	return dto, nil
}

func (s *PricingApplicationService) priceMonteCarlo(cmd MonteCarloCommand) (*PriceDTO, error) {
	optionType, err := domain.ParseOptionType(cmd.OptionType)
	if err != nil {
		return nil, err
	}
	simulations, err := s.capSimulations(cmd.Simulations)
	if err != nil {
		return nil, err
	}
	res, err := domain.NewMonteCarloPricer(simulations, s.seed).Price(domain.PricingRequest{
		Spot:       cmd.Spot,
		Strike:     cmd.Strike,
		Maturity:   cmd.Maturity,
		Rate:       cmd.Rate,
		Volatility: cmd.Volatility,
		OptionType: optionType,
	})
	if err != nil {
		return nil, err
	}
	return &PriceDTO{
		Model:       res.Model,
		OptionType:  strings.ToLower(string(optionType)),
		Price:       res.Price.Round(4).InexactFloat64(),
		Stats:       toStatsDTO(res.Stats),
		Simulations: res.Simulations,
	}, nil
}

// PriceWithStochasticRates 随机短期利率定价用例.
func (s *PricingApplicationService) PriceWithStochasticRates(ctx context.Context, cmd StochasticRateCommand) (*PriceDTO, error) {
	start := time.Now()
	dto, err := s.priceWithStochasticRates(cmd)
	s.observe("interest-rate-models", start, err)
	if err != nil {
		logging.Error(ctx, "stochastic-rate pricing failed", "error", err)
		return nil, err
	}
	return dto, nil
}

func (s *PricingApplicationService) priceWithStochasticRates(cmd StochasticRateCommand) (*PriceDTO, error) {
	optionType, err := domain.ParseOptionType(cmd.OptionType)
	if err != nil {
		return nil, err
	}
	kind, err := domain.ParseModelKind(orDefault(cmd.RateModel, string(domain.ModelVasicek)))
	if err != nil {
		return nil, err
	}
	simulations, err := s.capSimulations(cmd.Simulations)
	if err != nil {
		return nil, err
	}
	model, err := domain.NewShortRateModel(kind)
	if err != nil {
		return nil, err
	}
	res, err := domain.NewMonteCarloPricer(simulations, s.seed).PriceWithShortRate(domain.PricingRequest{
		Spot:       cmd.Spot,
		Strike:     cmd.Strike,
		Maturity:   cmd.Maturity,
		Rate:       cmd.InitialRate,
		Volatility: cmd.Volatility,
		OptionType: optionType,
	}, model)
	if err != nil {
		return nil, err
	}
	return &PriceDTO{
		Model:       res.Model,
		OptionType:  strings.ToLower(string(optionType)),
		Price:       res.Price.Round(4).InexactFloat64(),
		Stats:       toStatsDTO(res.Stats),
		RateModel:   string(kind),
		Simulations: res.Simulations,
	}, nil
}

// SimulateRates 利率路径模拟用例. 模型为 Hull-White 且给定观测曲线时,
// 先拟合曲线并以 θ(t)=a·f(t) 驱动漂移; 参数化拟合不收敛则退回样条.
func (s *PricingApplicationService) SimulateRates(ctx context.Context, cmd SimulateRatesCommand) (*RatePathsDTO, error) {
	start := time.Now()
	dto, err := s.simulateRates(ctx, cmd)
	s.observe("simulate-rates", start, err)
	if err != nil {
		logging.Error(ctx, "rate simulation failed", "error", err)
		return nil, err
	}
	return dto, nil
}

func (s *PricingApplicationService) simulateRates(ctx context.Context, cmd SimulateRatesCommand) (*RatePathsDTO, error) {
	kind, err := domain.ParseModelKind(orDefault(cmd.Model, string(domain.ModelVasicek)))
	if err != nil {
		return nil, err
	}
	steps := cmd.Steps
	if steps == 0 {
		steps = DefaultSteps
	}
	paths := cmd.Paths
	if paths == 0 {
		paths = DefaultPaths
	}
	if steps < 1 || steps > s.limits.MaxSteps || paths < 1 || paths > s.limits.MaxPaths {
		return nil, xerrors.ErrInvalidInput
	}

	model, err := s.buildRateModel(ctx, kind, cmd)
	if err != nil {
		return nil, err
	}
	ratePaths, err := model.Simulate(domain.RateSimulationRequest{
		InitialRate: cmd.InitialRate,
		Horizon:     cmd.Horizon,
		StepCount:   steps,
		PathCount:   paths,
		Model:       kind,
	}, domain.NewNormalSource(s.seed))
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(ratePaths))
	for i, path := range ratePaths {
		out[i] = path.Rates()
	}
	return &RatePathsDTO{
		Model:      string(kind),
		TimePoints: domain.TimeGrid(cmd.Horizon, steps),
		Paths:      out,
	}, nil
}

// buildRateModel 构造模拟用的利率模型, 仅 Hull-White 消费观测曲线.
func (s *PricingApplicationService) buildRateModel(ctx context.Context, kind domain.ModelKind, cmd SimulateRatesCommand) (domain.ShortRateModel, error) {
	if kind != domain.ModelHullWhite || len(cmd.CurveTenors) == 0 {
		return domain.NewShortRateModel(kind)
	}

	method, err := domain.ParseCurveMethod(orDefault(cmd.CurveMethod, string(domain.CurveMethodSpline)))
	if err != nil {
		return nil, err
	}
	curve, err := domain.FitCurve(cmd.CurveTenors, cmd.CurveRates, method)
	if errors.Is(err, xerrors.ErrMathConvergence) {
		logging.Warn(ctx, "parametric curve fit did not converge, falling back to spline")
		curve, err = domain.FitCurve(cmd.CurveTenors, cmd.CurveRates, domain.CurveMethodSpline)
	}
	if err != nil {
		return nil, err
	}
	return domain.NewHullWhiteModelWithCurve(domain.DefaultMeanReversion, domain.DefaultRateVol, curve), nil
}

// FitCurve 曲线拟合用例, 在 [0, maxTenor] 等距网格上采样拟合结果.
func (s *PricingApplicationService) FitCurve(ctx context.Context, cmd FitCurveCommand) (*CurveDTO, error) {
	start := time.Now()
	dto, err := s.fitCurve(cmd)
	s.observe("curve-fit", start, err)
	if err != nil {
		logging.Error(ctx, "curve fit failed", "error", err)
		return nil, err
	}
	return dto, nil
}

func (s *PricingApplicationService) fitCurve(cmd FitCurveCommand) (*CurveDTO, error) {
	method, err := domain.ParseCurveMethod(orDefault(cmd.Method, string(domain.CurveMethodSpline)))
	if err != nil {
		return nil, err
	}
	samples := cmd.Samples
	if samples == 0 {
		samples = DefaultCurveSamples
	}
	if samples < 1 || samples > s.limits.MaxSteps {
		return nil, xerrors.ErrInvalidInput
	}

	curve, err := domain.FitCurve(cmd.Tenors, cmd.Rates, method)
	if err != nil {
		return nil, err
	}

	timePoints := domain.TimeGrid(curve.MaxTenor(), samples)
	rates := make([]float64, len(timePoints))
	for i, t := range timePoints {
		rates[i] = curve.Rate(t)
	}
	dto := &CurveDTO{
		Method:     string(curve.Method()),
		TimePoints: timePoints,
		Rates:      rates,
	}
	if params := curve.Params(); params != nil {
		dto.Params = &NelsonSiegelDTO{
			Beta0: params.Beta0,
			Beta1: params.Beta1,
			Beta2: params.Beta2,
			Tau:   params.Tau,
		}
	}
	return dto, nil
}

// Compare 多模型比较用例.
func (s *PricingApplicationService) Compare(ctx context.Context, cmd CompareCommand) (*ComparisonDTO, error) {
	start := time.Now()
	dto, err := s.compare(cmd)
	s.observe("compare", start, err)
	if err != nil {
		logging.Error(ctx, "model comparison failed", "error", err)
		return nil, err
	}
	return dto, nil
}

func (s *PricingApplicationService) compare(cmd CompareCommand) (*ComparisonDTO, error) {
	optionType, err := domain.ParseOptionType(cmd.OptionType)
	if err != nil {
		return nil, err
	}
	models := cmd.Models
	if len(models) == 0 {
		models = []string{"black-scholes", "monte-carlo"}
	}

	comparator := domain.NewModelComparator(DefaultSimulations, s.seed)
	results, err := comparator.Compare(domain.PricingRequest{
		Spot:       cmd.Spot,
		Strike:     cmd.Strike,
		Maturity:   cmd.Maturity,
		Rate:       cmd.Rate,
		Volatility: cmd.Volatility,
		OptionType: optionType,
	}, models)
	if err != nil {
		return nil, err
	}

	rounded := make(map[string]float64, len(results))
	for name, price := range results {
		rounded[name] = decimal.NewFromFloat(price).Round(4).InexactFloat64()
	}
	return &ComparisonDTO{Comparison: rounded}, nil
}

func (s *PricingApplicationService) capSimulations(n int) (int, error) {
	if n == 0 {
		n = DefaultSimulations
	}
	if n < 1 || n > s.limits.MaxSimulations {
		return 0, xerrors.ErrInvalidInput
	}
	return n, nil
}

func (s *PricingApplicationService) observe(operation string, start time.Time, err error) {
	if s.requests != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.requests.WithLabelValues(operation, status).Inc()
	}
	if s.latency != nil {
		s.latency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func toStatsDTO(stats *domain.SimulationStats) *SimulationStatsDTO {
	if stats == nil {
		return nil
	}
	return &SimulationStatsDTO{
		StdError: decimal.NewFromFloat(stats.StdError).Round(6).InexactFloat64(),
		Lower:    decimal.NewFromFloat(stats.Lower).Round(4).InexactFloat64(),
		Upper:    decimal.NewFromFloat(stats.Upper).Round(4).InexactFloat64(),
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
