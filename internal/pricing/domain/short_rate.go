package domain

import (
	"math"

	"github.com/wyfcoding/pkg/xerrors"
)

// 各模型的默认参数.
const (
	DefaultMeanReversion = 0.1  // a
	DefaultLongRunMean   = 0.05 // b
	DefaultRateVol       = 0.01 // 高斯模型 σ
	DefaultLognormalVol  = 0.2  // 对数正态模型 σ
)

// DriftFunc 时变漂移项 θ(t).
type DriftFunc func(t float64) float64

// SigmaFunc 时变波动率 σ(t).
type SigmaFunc func(t float64) float64

// ShortRateModel 短期利率模型统一契约.
// Simulate 按 Euler 离散化生成 PathCount 条独立路径, 每条路径消耗
// StepCount 个独立标准正态随机数; ExpectedRate 返回模型隐含的
// E[r_t | r_0], 供模型比较器近似使用.
type ShortRateModel interface {
	Kind() ModelKind
	Simulate(req RateSimulationRequest, src *NormalSource) ([]RatePath, error)
	ExpectedRate(r0, t float64) float64
}

// NewShortRateModel 按模型类型构造默认参数模型.
func NewShortRateModel(kind ModelKind) (ShortRateModel, error) {
	switch kind {
	case ModelVasicek:
		return NewVasicekModel(DefaultMeanReversion, DefaultLongRunMean, DefaultRateVol), nil
	case ModelHullWhite:
		return NewHullWhiteModel(DefaultMeanReversion, DefaultRateVol), nil
	case ModelBlackDermanToy:
		return NewLognormalModel(DefaultLognormalVol), nil
	default:
		return nil, xerrors.ErrInvalidInput
	}
}

// eulerPaths 共用的路径生成骨架. step 给定当前利率 r、步起点时刻 t、
// 步长 dt 与标准正态抽样 z, 返回下一时刻的利率.
func eulerPaths(req RateSimulationRequest, src *NormalSource, step func(r, t, dt, z float64) float64) []RatePath {
	dt := req.Dt()
	paths := make([]RatePath, req.PathCount)
	for i := range paths {
		path := make(RatePath, req.StepCount+1)
		path[0] = RatePoint{Time: 0, Rate: req.InitialRate}
		r := req.InitialRate
		for j := 1; j <= req.StepCount; j++ {
			r = step(r, float64(j-1)*dt, dt, src.Next())
			path[j] = RatePoint{Time: float64(j) * dt, Rate: r}
		}
		paths[i] = path
	}
	return paths
}

// VasicekModel 均值回归高斯模型: dr = a(b-r)dt + σdW. 利率可为负.
type VasicekModel struct {
	A     float64 // 均值回归速度
	B     float64 // 长期均值
	Sigma float64 // 波动率
}

// NewVasicekModel 创建 Vasicek 模型.
func NewVasicekModel(a, b, sigma float64) *VasicekModel {
	return &VasicekModel{A: a, B: b, Sigma: sigma}
}

// Kind 模型类型.
func (m *VasicekModel) Kind() ModelKind { return ModelVasicek }

// Simulate 模拟利率路径: r' = r + a(b-r)Δt + σ√Δt·z.
func (m *VasicekModel) Simulate(req RateSimulationRequest, src *NormalSource) ([]RatePath, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return eulerPaths(req, src, func(r, _, dt, z float64) float64 {
		return r + m.A*(m.B-r)*dt + m.Sigma*math.Sqrt(dt)*z
	}), nil
}

// ExpectedRate 条件期望 E[r_t|r_0] = b + (r_0-b)e^(-at).
func (m *VasicekModel) ExpectedRate(r0, t float64) float64 {
	return m.B + (r0-m.B)*math.Exp(-m.A*t)
}

// BondPrice 零息债券闭式价格:
// P = face·A·e^(-B·r), B = (1-e^(-aT))/a,
// A = exp((b-σ²/(2a²))(B-T) - σ²B²/(4a)). 要求 a > 0.
func (m *VasicekModel) BondPrice(r0, ttm, face float64) float64 {
	b := (1 - math.Exp(-m.A*ttm)) / m.A
	a := math.Exp((m.B-m.Sigma*m.Sigma/(2*m.A*m.A))*(b-ttm) - m.Sigma*m.Sigma*b*b/(4*m.A))
	return face * a * math.Exp(-b*r0)
}

// HullWhiteModel 时变漂移高斯模型: dr = (θ(t)-ar)dt + σdW.
// θ 为空时退化为常值 a·b (b 取长期均值默认值). 利率可为负.
type HullWhiteModel struct {
	A     float64   // 均值回归速度
	Sigma float64   // 波动率
	Theta DriftFunc // 时变漂移, 可由收益率曲线提供
}

// NewHullWhiteModel 创建默认漂移的 Hull-White 模型.
func NewHullWhiteModel(a, sigma float64) *HullWhiteModel {
	return &HullWhiteModel{A: a, Sigma: sigma}
}

// NewHullWhiteModelWithCurve 以拟合曲线驱动漂移: θ(t) = a·f(t).
func NewHullWhiteModelWithCurve(a, sigma float64, curve *Curve) *HullWhiteModel {
	return &HullWhiteModel{
		A:     a,
		Sigma: sigma,
		Theta: func(t float64) float64 { return a * curve.Rate(t) },
	}
}

// Kind 模型类型.
func (m *HullWhiteModel) Kind() ModelKind { return ModelHullWhite }

func (m *HullWhiteModel) theta(t float64) float64 {
	if m.Theta != nil {
		return m.Theta(t)
	}
	return m.A * DefaultLongRunMean
}

// Simulate 模拟利率路径: r' = r + (θ(t)-ar)Δt + σ√Δt·z, θ 取步起点时刻.
func (m *HullWhiteModel) Simulate(req RateSimulationRequest, src *NormalSource) ([]RatePath, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return eulerPaths(req, src, func(r, t, dt, z float64) float64 {
		return r + (m.theta(t)-m.A*r)*dt + m.Sigma*math.Sqrt(dt)*z
	}), nil
}

// ExpectedRate 条件期望. 常值漂移时用闭式解, 曲线漂移时对
// θ(s)e^(-a(t-s)) 做梯形累加.
func (m *HullWhiteModel) ExpectedRate(r0, t float64) float64 {
	if m.Theta == nil {
		return DefaultLongRunMean + (r0-DefaultLongRunMean)*math.Exp(-m.A*t)
	}
	const steps = 256
	ds := t / steps
	integral := 0.0
	for j := 0; j < steps; j++ {
		s0 := float64(j) * ds
		s1 := float64(j+1) * ds
		f0 := m.theta(s0) * math.Exp(-m.A*(t-s0))
		f1 := m.theta(s1) * math.Exp(-m.A*(t-s1))
		integral += 0.5 * (f0 + f1) * ds
	}
	return r0*math.Exp(-m.A*t) + integral
}

// LognormalModel 对数正态模型 (Black-Derman-Toy 形式), 在 ln r 上做
// Euler 离散以保证利率严格为正:
// x' = x + [θ(t) + (σ'(t)/σ(t))x]Δt + σ(t)√Δt·z, r = e^x.
// 常值 σ 时 σ'/σ 项消失, θ 默认为 σ²/2.
type LognormalModel struct {
	Sigma SigmaFunc // σ(t), 必须为正
	Theta DriftFunc // ln r 上的漂移
}

// NewLognormalModel 创建常值波动率的对数正态模型.
func NewLognormalModel(sigma float64) *LognormalModel {
	return &LognormalModel{
		Sigma: func(float64) float64 { return sigma },
		Theta: func(float64) float64 { return 0.5 * sigma * sigma },
	}
}

// NewLognormalTermModel 创建分段常值波动率期限结构的对数正态模型.
// tenors 严格递增, sigmas 与之等长且为正; t 落在 tenors[i] 与
// tenors[i+1] 之间时取 sigmas[i], 超出末端取末值.
func NewLognormalTermModel(tenors, sigmas []float64) (*LognormalModel, error) {
	if len(tenors) < 1 || len(tenors) != len(sigmas) {
		return nil, xerrors.ErrInvalidInput
	}
	for i := range tenors {
		if sigmas[i] <= 0 {
			return nil, xerrors.ErrInvalidInput
		}
		if i > 0 && tenors[i] <= tenors[i-1] {
			return nil, xerrors.ErrInvalidInput
		}
	}
	ts := append([]float64(nil), tenors...)
	ss := append([]float64(nil), sigmas...)
	sigma := func(t float64) float64 {
		for i := len(ts) - 1; i >= 0; i-- {
			if t >= ts[i] {
				return ss[i]
			}
		}
		return ss[0]
	}
	return &LognormalModel{
		Sigma: sigma,
		Theta: func(t float64) float64 { s := sigma(t); return 0.5 * s * s },
	}, nil
}

// Kind 模型类型.
func (m *LognormalModel) Kind() ModelKind { return ModelBlackDermanToy }

// Simulate 模拟利率路径, 初始利率必须为正. 生成的每个点都严格为正.
func (m *LognormalModel) Simulate(req RateSimulationRequest, src *NormalSource) ([]RatePath, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.InitialRate <= 0 {
		return nil, xerrors.ErrInvalidInput
	}
	return eulerPaths(req, src, func(r, t, dt, z float64) float64 {
		x := math.Log(r)
		sig := m.Sigma(t)
		// σ'/σ 以相邻步的 ln σ 差分近似, 常值 σ 时为零
		dls := (math.Log(m.Sigma(t+dt)) - math.Log(sig)) / dt
		x += (m.Theta(t)+dls*x)*dt + sig*math.Sqrt(dt)*z
		return math.Exp(x)
	}), nil
}

// ExpectedRate 条件期望 r_0·exp(∫θ(s)ds + ∫σ²(s)ds/2),
// 常值参数时等于 r_0·e^(σ²t).
func (m *LognormalModel) ExpectedRate(r0, t float64) float64 {
	const steps = 256
	ds := t / steps
	drift, halfVar := 0.0, 0.0
	for j := 0; j < steps; j++ {
		s0 := float64(j) * ds
		s1 := float64(j+1) * ds
		drift += 0.5 * (m.Theta(s0) + m.Theta(s1)) * ds
		v0 := m.Sigma(s0) * m.Sigma(s0)
		v1 := m.Sigma(s1) * m.Sigma(s1)
		halfVar += 0.25 * (v0 + v1) * ds
	}
	return r0 * math.Exp(drift+halfVar)
}
