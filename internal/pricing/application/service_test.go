package application

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/wyfcoding/pkg/xerrors"
)

func newTestService(limits EngineLimits) *PricingApplicationService {
	return NewPricingApplicationService(limits, 0, nil, nil)
}

func blackScholesCommand() BlackScholesCommand {
	return BlackScholesCommand{
		Spot:       100,
		Strike:     105,
		Maturity:   1,
		Rate:       0.05,
		Volatility: 0.2,
		OptionType: "call",
	}
}

func TestService_PriceBlackScholes(t *testing.T) {
	svc := newTestService(EngineLimits{})
	dto, err := svc.PriceBlackScholes(context.Background(), blackScholesCommand())
	if err != nil {
		t.Fatalf("price err: %v", err)
	}
	if dto.Model != "Black-Scholes" {
		t.Fatalf("model mismatch: got=%s", dto.Model)
	}
	if dto.OptionType != "call" {
		t.Fatalf("option type mismatch: got=%s", dto.OptionType)
	}
	if !almostEqual(dto.Price, 8.0214, 1e-9) {
		t.Fatalf("rounded price mismatch: got=%v", dto.Price)
	}
	if dto.Greeks == nil {
		t.Fatal("expected greeks")
	}
	if !almostEqual(dto.Greeks.Delta, 0.5422, 1e-3) {
		t.Fatalf("delta mismatch: got=%v", dto.Greeks.Delta)
	}
	if dto.Stats != nil {
		t.Fatal("analytic result must not carry simulation stats")
	}

	cmd := blackScholesCommand()
	cmd.Volatility = 0
	if _, err := svc.PriceBlackScholes(context.Background(), cmd); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	cmd = blackScholesCommand()
	cmd.OptionType = "swaption"
	if _, err := svc.PriceBlackScholes(context.Background(), cmd); !errors.Is(err, xerrors.ErrInvalidOptionType) {
		t.Fatalf("expected ErrInvalidOptionType, got %v", err)
	}
}

func TestService_PriceMonteCarloDefaults(t *testing.T) {
	svc := newTestService(EngineLimits{})
	dto, err := svc.PriceMonteCarlo(context.Background(), MonteCarloCommand{
		Spot: 100, Strike: 105, Maturity: 1, Rate: 0.05, Volatility: 0.2, OptionType: "CALL",
	})
	if err != nil {
		t.Fatalf("price err: %v", err)
	}
	if dto.Simulations != DefaultSimulations {
		t.Fatalf("default simulations not applied: got=%d", dto.Simulations)
	}
	if dto.Stats == nil {
		t.Fatal("expected simulation stats")
	}
	if !almostEqual(dto.Price, 8.0214, 0.5) {
		t.Fatalf("mc price too far from analytic: got=%v", dto.Price)
	}
	if dto.Stats.Lower >= dto.Price || dto.Stats.Upper <= dto.Price {
		t.Fatalf("price %v outside CI [%v, %v]", dto.Price, dto.Stats.Lower, dto.Stats.Upper)
	}
}

func TestService_SimulationCapEnforced(t *testing.T) {
	svc := newTestService(EngineLimits{MaxSimulations: 1000})
	_, err := svc.PriceMonteCarlo(context.Background(), MonteCarloCommand{
		Spot: 100, Strike: 105, Maturity: 1, Rate: 0.05, Volatility: 0.2,
		OptionType: "call", Simulations: 5000,
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput over cap, got %v", err)
	}

	// 负值不落到默认值, 直接拒绝
	_, err = svc.PriceMonteCarlo(context.Background(), MonteCarloCommand{
		Spot: 100, Strike: 105, Maturity: 1, Rate: 0.05, Volatility: 0.2,
		OptionType: "call", Simulations: -1,
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative simulations, got %v", err)
	}
}

func TestService_PriceWithStochasticRates(t *testing.T) {
	svc := newTestService(EngineLimits{})
	dto, err := svc.PriceWithStochasticRates(context.Background(), StochasticRateCommand{
		Spot: 100, Strike: 105, Maturity: 1, InitialRate: 0.05,
		Volatility: 0.2, OptionType: "call", Simulations: 500,
	})
	if err != nil {
		t.Fatalf("price err: %v", err)
	}
	if dto.RateModel != "vasicek" {
		t.Fatalf("default rate model not applied: got=%s", dto.RateModel)
	}
	if dto.Model != "Monte Carlo with Vasicek rates" {
		t.Fatalf("model mismatch: got=%s", dto.Model)
	}
	if dto.Price <= 0 {
		t.Fatalf("price must be positive: got=%v", dto.Price)
	}
	if dto.Simulations != 500 {
		t.Fatalf("simulations mismatch: got=%d", dto.Simulations)
	}

	_, err = svc.PriceWithStochasticRates(context.Background(), StochasticRateCommand{
		Spot: 100, Strike: 105, Maturity: 1, InitialRate: 0.05,
		Volatility: 0.2, OptionType: "call", RateModel: "cir",
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown rate model, got %v", err)
	}
}

func TestService_SimulateRatesDefaults(t *testing.T) {
	svc := newTestService(EngineLimits{})
	dto, err := svc.SimulateRates(context.Background(), SimulateRatesCommand{
		InitialRate: 0.05,
		Horizon:     1,
	})
	if err != nil {
		t.Fatalf("simulate err: %v", err)
	}
	if dto.Model != "vasicek" {
		t.Fatalf("default model not applied: got=%s", dto.Model)
	}
	if len(dto.TimePoints) != DefaultSteps+1 {
		t.Fatalf("time points length mismatch: got=%d", len(dto.TimePoints))
	}
	if len(dto.Paths) != DefaultPaths {
		t.Fatalf("path count mismatch: got=%d", len(dto.Paths))
	}
	for i, path := range dto.Paths {
		if len(path) != DefaultSteps+1 {
			t.Fatalf("path %d length mismatch: got=%d", i, len(path))
		}
		if path[0] != 0.05 {
			t.Fatalf("path %d must start at initial rate: got=%v", i, path[0])
		}
	}
	if dto.TimePoints[0] != 0 || dto.TimePoints[DefaultSteps] != 1 {
		t.Fatalf("time grid endpoints mismatch: %v .. %v",
			dto.TimePoints[0], dto.TimePoints[DefaultSteps])
	}
}

func TestService_SimulateRatesWithCurve(t *testing.T) {
	svc := newTestService(EngineLimits{})
	dto, err := svc.SimulateRates(context.Background(), SimulateRatesCommand{
		InitialRate: 0.03,
		Horizon:     2,
		Steps:       50,
		Paths:       2,
		Model:       "hull-white",
		CurveTenors: []float64{0.25, 1, 2, 5, 10},
		CurveRates:  []float64{0.03, 0.033, 0.036, 0.04, 0.043},
		CurveMethod: "nelson-siegel",
	})
	if err != nil {
		t.Fatalf("simulate err: %v", err)
	}
	if dto.Model != "hull-white" {
		t.Fatalf("model mismatch: got=%s", dto.Model)
	}
	if len(dto.Paths) != 2 || len(dto.Paths[0]) != 51 {
		t.Fatalf("path shape mismatch: %dx%d", len(dto.Paths), len(dto.Paths[0]))
	}
	for _, rate := range dto.Paths[0] {
		if math.IsNaN(rate) {
			t.Fatal("curve-driven simulation produced NaN")
		}
	}
}

func TestService_SimulateRatesLimits(t *testing.T) {
	svc := newTestService(EngineLimits{MaxPaths: 10, MaxSteps: 100})
	_, err := svc.SimulateRates(context.Background(), SimulateRatesCommand{
		InitialRate: 0.05, Horizon: 1, Paths: 50,
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput over path cap, got %v", err)
	}
	_, err = svc.SimulateRates(context.Background(), SimulateRatesCommand{
		InitialRate: 0.05, Horizon: 1, Steps: 500,
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput over step cap, got %v", err)
	}
	_, err = svc.SimulateRates(context.Background(), SimulateRatesCommand{
		InitialRate: 0.05, Horizon: 1, Model: "cir",
	})
	if !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for unknown model, got %v", err)
	}
}

func TestService_FitCurve(t *testing.T) {
	svc := newTestService(EngineLimits{})
	tenors := []float64{0.25, 0.5, 1, 2, 5, 10}
	rates := []float64{0.03, 0.032, 0.035, 0.038, 0.042, 0.045}

	dto, err := svc.FitCurve(context.Background(), FitCurveCommand{Tenors: tenors, Rates: rates})
	if err != nil {
		t.Fatalf("fit err: %v", err)
	}
	if dto.Method != "spline" {
		t.Fatalf("default method not applied: got=%s", dto.Method)
	}
	if len(dto.TimePoints) != DefaultCurveSamples+1 || len(dto.Rates) != DefaultCurveSamples+1 {
		t.Fatalf("sample grid mismatch: %d/%d", len(dto.TimePoints), len(dto.Rates))
	}
	if dto.TimePoints[len(dto.TimePoints)-1] != 10 {
		t.Fatalf("grid must end at max tenor: got=%v", dto.TimePoints[len(dto.TimePoints)-1])
	}
	if dto.Params != nil {
		t.Fatal("spline fit must not carry parametric params")
	}

	parametric, err := svc.FitCurve(context.Background(), FitCurveCommand{
		Tenors: tenors, Rates: rates, Method: "nelson-siegel", Samples: 20,
	})
	if err != nil {
		t.Fatalf("parametric fit err: %v", err)
	}
	if parametric.Params == nil {
		t.Fatal("expected nelson-siegel params")
	}
	if parametric.Params.Tau <= 0 {
		t.Fatalf("tau must be positive: got=%v", parametric.Params.Tau)
	}
	if len(parametric.TimePoints) != 21 {
		t.Fatalf("sample count mismatch: got=%d", len(parametric.TimePoints))
	}

	if _, err := svc.FitCurve(context.Background(), FitCurveCommand{
		Tenors: []float64{1}, Rates: []float64{0.03},
	}); !errors.Is(err, xerrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for single point, got %v", err)
	}
}

func TestService_Compare(t *testing.T) {
	svc := newTestService(EngineLimits{})

	dto, err := svc.Compare(context.Background(), CompareCommand{
		Spot: 100, Strike: 105, Maturity: 1, Rate: 0.05, Volatility: 0.2, OptionType: "call",
	})
	if err != nil {
		t.Fatalf("compare err: %v", err)
	}
	if len(dto.Comparison) != 2 {
		t.Fatalf("default comparison should have 2 entries: got=%v", dto.Comparison)
	}
	if !almostEqual(dto.Comparison["Black-Scholes"], 8.0214, 1e-9) {
		t.Fatalf("black-scholes entry mismatch: got=%v", dto.Comparison["Black-Scholes"])
	}

	full, err := svc.Compare(context.Background(), CompareCommand{
		Spot: 100, Strike: 105, Maturity: 1, Rate: 0.05, Volatility: 0.2, OptionType: "call",
		Models: []string{"black-scholes", "monte-carlo", "vasicek", "hull-white", "black-derman-toy"},
	})
	if err != nil {
		t.Fatalf("full compare err: %v", err)
	}
	if len(full.Comparison) != 5 {
		t.Fatalf("full comparison should have 5 entries: got=%v", full.Comparison)
	}

	cmd := CompareCommand{Spot: 100, Strike: 105, Maturity: 1, Rate: 0.05, Volatility: 0.2, OptionType: "strangle"}
	if _, err := svc.Compare(context.Background(), cmd); !errors.Is(err, xerrors.ErrInvalidOptionType) {
		t.Fatalf("expected ErrInvalidOptionType, got %v", err)
	}
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
