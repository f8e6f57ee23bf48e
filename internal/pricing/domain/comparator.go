package domain

import "strings"

// ModelComparator 在同一请求上并排运行多个定价模型。
type ModelComparator struct {
	analytic    *AnalyticPricer
	simulations int
	seed        int64
}

// NewModelComparator 创建模型比较器, simulations 作用于其中的蒙特卡洛定价。
func NewModelComparator(simulations int, seed int64) *ModelComparator {
	return &ModelComparator{
		analytic:    NewAnalyticPricer(),
		simulations: simulations,
		seed:        seed,
	}
}

// Compare 运行请求列出的模型, 返回模型展示名到价格的映射, 未知模型名被跳过。
// 短端利率模型本身定价利率工具而非股票期权, 这里将模型在到期日的期望短率
// 代入解析公式作为近似; 这是有意保留的简化处理, 不可推广为一般利率衍生品估值。
func (c *ModelComparator) Compare(req PricingRequest, models []string) (map[string]float64, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	results := make(map[string]float64, len(models))
	for _, name := range models {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "black-scholes":
			res, err := c.analytic.Price(req)
			if err != nil {
				return nil, err
			}
			results[ModelNameBlackScholes] = res.Price.InexactFloat64()
		case "monte-carlo":
			res, err := NewMonteCarloPricer(c.simulations, c.seed).Price(req)
			if err != nil {
				return nil, err
			}
			results[ModelNameMonteCarlo] = res.Price.InexactFloat64()
		default:
			kind, err := ParseModelKind(name)
			if err != nil {
				continue
			}
			price, err := c.priceAtExpectedRate(req, kind)
			if err != nil {
				return nil, err
			}
			results[kind.DisplayName()] = price
		}
	}
	return results, nil
}

// priceAtExpectedRate 用模型在到期日的期望短率替换无风险利率后做解析定价。
func (c *ModelComparator) priceAtExpectedRate(req PricingRequest, kind ModelKind) (float64, error) {
	model, err := NewShortRateModel(kind)
	if err != nil {
		return 0, err
	}
	adjusted := req
	adjusted.Rate = model.ExpectedRate(req.Rate, req.Maturity)
	res, err := c.analytic.Price(adjusted)
	if err != nil {
		return 0, err
	}
	return res.Price.InexactFloat64(), nil
}
