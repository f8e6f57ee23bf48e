package application

// BlackScholesCommand 解析定价用例入参
type BlackScholesCommand struct {
	Spot       float64 // 标的价格
	Strike     float64 // 执行价格
	Maturity   float64 // 到期时间 (年)
	Rate       float64 // 无风险利率
	Volatility float64 // 波动率
	OptionType string  // call/put
}

// MonteCarloCommand 蒙特卡洛定价用例入参
type MonteCarloCommand struct {
	Spot        float64
	Strike      float64
	Maturity    float64
	Rate        float64
	Volatility  float64
	OptionType  string
	Simulations int // 0 时取默认值
}

// StochasticRateCommand 随机利率定价用例入参
type StochasticRateCommand struct {
	Spot        float64
	Strike      float64
	Maturity    float64
	InitialRate float64 // 初始短期利率
	Volatility  float64 // 股价波动率
	OptionType  string
	RateModel   string // vasicek/hull-white/black-derman-toy
	Simulations int
}

// SimulateRatesCommand 利率路径模拟入参
type SimulateRatesCommand struct {
	InitialRate float64
	Horizon     float64
	Steps       int
	Paths       int
	Model       string
	CurveTenors []float64 // 可选, 提供时驱动 Hull-White 漂移
	CurveRates  []float64
	CurveMethod string
}

// FitCurveCommand 收益率曲线拟合入参
type FitCurveCommand struct {
	Tenors  []float64
	Rates   []float64
	Method  string // spline/nelson-siegel
	Samples int    // 采样点数, 0 时取默认值
}

// CompareCommand 多模型比较入参
type CompareCommand struct {
	Spot       float64
	Strike     float64
	Maturity   float64
	Rate       float64
	Volatility float64
	OptionType string
	Models     []string // 空时比较解析与蒙特卡洛
}

// GreeksDTO 希腊字母, 已按线缆精度舍入
type GreeksDTO struct {
	Delta float64
	Gamma float64
	Vega  float64
	Theta float64
	Rho   float64
}

// SimulationStatsDTO 模拟定价统计量
type SimulationStatsDTO struct {
	StdError float64
	Lower    float64
	Upper    float64
}

// PriceDTO 定价结果. 可选字段仅在对应模型下填充.
type PriceDTO struct {
	Model       string
	OptionType  string
	Price       float64
	Greeks      *GreeksDTO
	Stats       *SimulationStatsDTO
	RateModel   string // 随机利率定价使用的模型
	Simulations int
}

// RatePathsDTO 利率路径模拟结果
type RatePathsDTO struct {
	Model      string
	TimePoints []float64
	Paths      [][]float64
}

// NelsonSiegelDTO 参数化曲线的拟合参数
type NelsonSiegelDTO struct {
	Beta0 float64
	Beta1 float64
	Beta2 float64
	Tau   float64
}

// CurveDTO 曲线拟合结果: 在等距网格上采样后的曲线
type CurveDTO struct {
	Method     string
	TimePoints []float64
	Rates      []float64
	Params     *NelsonSiegelDTO
}

// ComparisonDTO 多模型比较结果
type ComparisonDTO struct {
	Comparison map[string]float64
}

// StartStreamCommand 启动利率流入参
type StartStreamCommand struct {
	Model       string
	InitialRate float64 // 0 时取长期均值默认
	IntervalMS  int     // 报价间隔毫秒数, 0 时取 1s
}

// StreamDTO 利率流状态
type StreamDTO struct {
	StreamID  string
	Model     string
	Rate      float64 // 最近一次报价的利率
	Interval  string
	StartedAt int64
}
