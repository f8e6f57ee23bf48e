package domain

import (
	"math"
	"sort"
	"strings"

	algomath "github.com/wyfcoding/pkg/algorithm/math"
	"github.com/wyfcoding/pkg/xerrors"
)

// CurveMethod 收益率曲线拟合方法。
type CurveMethod string

const (
	// CurveMethodSpline 单调三次样条插值。
	CurveMethodSpline CurveMethod = "spline"
	// CurveMethodNelsonSiegel Nelson-Siegel 参数化拟合。
	CurveMethodNelsonSiegel CurveMethod = "nelson-siegel"
)

// ParseCurveMethod 解析曲线拟合方法字符串。
func ParseCurveMethod(s string) (CurveMethod, error) {
	switch CurveMethod(strings.ToLower(strings.TrimSpace(s))) {
	case CurveMethodSpline:
		return CurveMethodSpline, nil
	case CurveMethodNelsonSiegel:
		return CurveMethodNelsonSiegel, nil
	}
	return "", xerrors.ErrInvalidInput
}

// NelsonSiegelParams Nelson-Siegel 曲线参数。
// rate(t) = β0 + β1·(1−e^(−t/τ))/(t/τ) + β2·[(1−e^(−t/τ))/(t/τ) − e^(−t/τ)]
type NelsonSiegelParams struct {
	Beta0 float64
	Beta1 float64
	Beta2 float64
	Tau   float64
}

// Rate 计算参数化曲线在期限 t 处的利率。
func (p NelsonSiegelParams) Rate(t float64) float64 {
	slope, curvature := nsLoadings(t, p.Tau)
	return p.Beta0 + p.Beta1*slope + p.Beta2*curvature
}

// nsLoadings 返回斜率与曲率因子载荷; t=0 时取极限 (1, 0)。
func nsLoadings(t, tau float64) (float64, float64) {
	x := t / tau
	if x < 1e-12 {
		return 1, 0
	}
	decay := math.Exp(-x)
	slope := (1 - decay) / x
	return slope, slope - decay
}

// Curve 拟合后的收益率曲线, 在任意期限上可求值。
type Curve struct {
	method   CurveMethod
	tenors   []float64
	rates    []float64
	tangents []float64
	params   *NelsonSiegelParams
}

// FlatCurve 构造常数利率曲线, 用于参数化拟合失败时的兜底。
func FlatCurve(rate float64) *Curve {
	return &Curve{
		method:   CurveMethodSpline,
		tenors:   []float64{0},
		rates:    []float64{rate},
		tangents: []float64{0},
	}
}

// FitCurve 用指定方法对观测的期限/利率点拟合曲线。
// 样条方法对观测点做单调插值, 观测范围之外钳制到边界利率;
// 参数化方法在有限候选集内做最小二乘, 全部失败时返回 ErrMathConvergence。
func FitCurve(tenors, rates []float64, method CurveMethod) (*Curve, error) {
	if len(tenors) == 0 || len(rates) == 0 {
		return nil, xerrors.ErrEmptyData
	}
	if len(tenors) != len(rates) || len(tenors) < 2 {
		return nil, xerrors.ErrInvalidInput
	}
	if tenors[0] < 0 {
		return nil, xerrors.ErrInvalidInput
	}
	for i := 1; i < len(tenors); i++ {
		if tenors[i] <= tenors[i-1] {
			return nil, xerrors.ErrInvalidInput
		}
	}

	ts := make([]float64, len(tenors))
	rs := make([]float64, len(rates))
	copy(ts, tenors)
	copy(rs, rates)

	switch method {
	case CurveMethodSpline:
		return &Curve{
			method:   CurveMethodSpline,
			tenors:   ts,
			rates:    rs,
			tangents: monotoneTangents(ts, rs),
		}, nil
	case CurveMethodNelsonSiegel:
		params, err := fitNelsonSiegel(ts, rs)
		if err != nil {
			return nil, err
		}
		return &Curve{
			method: CurveMethodNelsonSiegel,
			tenors: ts,
			rates:  rs,
			params: params,
		}, nil
	}
	return nil, xerrors.ErrInvalidInput
}

// Method 返回曲线的拟合方法。
func (c *Curve) Method() CurveMethod {
	return c.method
}

// Params 返回 Nelson-Siegel 参数, 样条曲线返回 nil。
func (c *Curve) Params() *NelsonSiegelParams {
	if c.params == nil {
		return nil
	}
	p := *c.params
	return &p
}

// MaxTenor 返回观测点的最大期限。
func (c *Curve) MaxTenor() float64 {
	return c.tenors[len(c.tenors)-1]
}

// Rate 计算曲线在期限 t 处的利率。
func (c *Curve) Rate(t float64) float64 {
	if c.method == CurveMethodNelsonSiegel {
		return c.params.Rate(t)
	}
	return c.splineRate(t)
}

func (c *Curve) splineRate(t float64) float64 {
	n := len(c.tenors)
	if t <= c.tenors[0] {
		return c.rates[0]
	}
	if t >= c.tenors[n-1] {
		return c.rates[n-1]
	}
	i := sort.SearchFloat64s(c.tenors, t)
	if c.tenors[i] == t {
		return c.rates[i]
	}
	i--

	h := c.tenors[i+1] - c.tenors[i]
	s := (t - c.tenors[i]) / h
	h00 := (1 + 2*s) * (1 - s) * (1 - s)
	h10 := s * (1 - s) * (1 - s)
	h01 := s * s * (3 - 2*s)
	h11 := s * s * (s - 1)
	return h00*c.rates[i] + h10*h*c.tangents[i] + h01*c.rates[i+1] + h11*h*c.tangents[i+1]
}

// monotoneTangents 计算 Fritsch-Carlson 单调样条切线,
// 保证插值结果不在观测点之间产生虚假震荡。
func monotoneTangents(xs, ys []float64) []float64 {
	n := len(xs)
	secants := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		secants[i] = (ys[i+1] - ys[i]) / (xs[i+1] - xs[i])
	}

	tangents := make([]float64, n)
	tangents[0] = secants[0]
	tangents[n-1] = secants[n-2]
	for i := 1; i < n-1; i++ {
		if secants[i-1]*secants[i] <= 0 {
			tangents[i] = 0
		} else {
			tangents[i] = (secants[i-1] + secants[i]) / 2
		}
	}

	for i := 0; i < n-1; i++ {
		if secants[i] == 0 {
			tangents[i] = 0
			tangents[i+1] = 0
			continue
		}
		alpha := tangents[i] / secants[i]
		beta := tangents[i+1] / secants[i]
		if sum := alpha*alpha + beta*beta; sum > 9 {
			scale := 3 / math.Sqrt(sum)
			tangents[i] = scale * alpha * secants[i]
			tangents[i+1] = scale * beta * secants[i]
		}
	}
	return tangents
}

// nelsonSiegelCandidates τ 候选数量, 限定迭代预算。
const nelsonSiegelCandidates = 40

// fitNelsonSiegel 在对数均匀分布的 τ 候选集上逐一求解线性最小二乘,
// 取残差平方和最小的一组参数。
func fitNelsonSiegel(tenors, rates []float64) (*NelsonSiegelParams, error) {
	upper := math.Max(10, 2*tenors[len(tenors)-1])
	logLo := math.Log(0.05)
	logHi := math.Log(upper)

	var best *NelsonSiegelParams
	bestSSE := math.Inf(1)
	for k := 0; k < nelsonSiegelCandidates; k++ {
		tau := math.Exp(logLo + (logHi-logLo)*float64(k)/float64(nelsonSiegelCandidates-1))
		params, sse, err := solveNelsonSiegel(tenors, rates, tau)
		if err != nil {
			continue
		}
		if sse < bestSSE {
			bestSSE = sse
			best = params
		}
	}
	if best == nil {
		return nil, xerrors.ErrMathConvergence
	}
	return best, nil
}

// solveNelsonSiegel 固定 τ 后 β 对观测线性, 解正规方程 (AᵀA)β = Aᵀy。
func solveNelsonSiegel(tenors, rates []float64, tau float64) (*NelsonSiegelParams, float64, error) {
	n := len(tenors)
	design := algomath.NewMatrix(n, 3)
	for i, t := range tenors {
		slope, curvature := nsLoadings(t, tau)
		design.Set(i, 0, 1)
		design.Set(i, 1, slope)
		design.Set(i, 2, curvature)
	}

	dt := design.Transpose()
	normal, err := dt.Multiply(design)
	if err != nil {
		return nil, 0, err
	}
	rhs, err := dt.MultiplyVector(rates)
	if err != nil {
		return nil, 0, err
	}
	betas, err := normal.SolveCholesky(rhs)
	if err != nil {
		return nil, 0, err
	}

	params := &NelsonSiegelParams{Beta0: betas[0], Beta1: betas[1], Beta2: betas[2], Tau: tau}
	sse := 0.0
	for i, t := range tenors {
		diff := params.Rate(t) - rates[i]
		sse += diff * diff
	}
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return nil, 0, xerrors.ErrMathConvergence
	}
	return params, sse, nil
}
