package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// ModelNameBlackScholes 解析定价器的对外模型名.
const ModelNameBlackScholes = "Black-Scholes"

// AnalyticPricer Black-Scholes 闭式定价器, 纯函数且无内部状态.
type AnalyticPricer struct{}

// NewAnalyticPricer 创建解析定价器.
func NewAnalyticPricer() *AnalyticPricer {
	return &AnalyticPricer{}
}

// Price 计算期权价格和全部希腊字母.
//
// d1 = (ln(S/K) + (r+σ²/2)T) / (σ√T), d2 = d1 - σ√T.
// Call = S·Φ(d1) - K·e^(-rT)·Φ(d2), Put = K·e^(-rT)·Φ(-d2) - S·Φ(-d1).
func (p *AnalyticPricer) Price(req PricingRequest) (*PricingResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s, k, t, r, v := req.Spot, req.Strike, req.Maturity, req.Rate, req.Volatility
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*v*v)*t) / (v * sqrtT)
	d2 := d1 - v*sqrtT

	var price, delta, theta, rho float64
	gamma := normPdf(d1) / (s * v * sqrtT)
	vega := s * normPdf(d1) * sqrtT

	if req.OptionType == OptionTypeCall {
		price = s*normCdf(d1) - k*math.Exp(-r*t)*normCdf(d2)
		delta = normCdf(d1)
		theta = -s*normPdf(d1)*v/(2*sqrtT) - r*k*math.Exp(-r*t)*normCdf(d2)
		rho = k * t * math.Exp(-r*t) * normCdf(d2)
	} else {
		price = k*math.Exp(-r*t)*normCdf(-d2) - s*normCdf(-d1)
		delta = normCdf(d1) - 1
		theta = -s*normPdf(d1)*v/(2*sqrtT) + r*k*math.Exp(-r*t)*normCdf(-d2)
		rho = -k * t * math.Exp(-r*t) * normCdf(-d2)
	}

	return &PricingResult{
		Model: ModelNameBlackScholes,
		Price: decimal.NewFromFloat(price),
		Greeks: &Greeks{
			Delta: decimal.NewFromFloat(delta),
			Gamma: decimal.NewFromFloat(gamma),
			Theta: decimal.NewFromFloat(theta),
			Vega:  decimal.NewFromFloat(vega),
			Rho:   decimal.NewFromFloat(rho),
		},
	}, nil
}

// normCdf 标准正态分布累积分布函数
func normCdf(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// normPdf 标准正态分布概率密度函数
func normPdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
