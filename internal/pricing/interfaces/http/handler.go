package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/wyfcoding/optionspricing/internal/pricing/application"
	"github.com/wyfcoding/pkg/response"
)

// HTTP 处理器
// 负责定价、利率模拟与利率流相关的 HTTP 请求
type PricingHandler struct {
	app     *application.PricingApplicationService
	streams *application.RateStreamManager
}

// 创建 HTTP 处理器实例
func NewPricingHandler(app *application.PricingApplicationService, streams *application.RateStreamManager) *PricingHandler {
	return &PricingHandler{app: app, streams: streams}
}

// 注册路由
// 将处理器方法绑定到 Gin 路由引擎
func (h *PricingHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api")
	{
		api.GET("/health", h.HealthCheck)
		price := api.Group("/price")
		{
			price.POST("/black-scholes", h.PriceBlackScholes)
			price.POST("/monte-carlo", h.PriceMonteCarlo)
			price.POST("/interest-rate-models", h.PriceWithRateModels)
		}
		api.POST("/simulate/interest-rates", h.SimulateRates)
		api.POST("/curve/fit", h.FitCurve)
		api.POST("/compare", h.CompareModels)
		stream := api.Group("/stream")
		{
			stream.POST("/start", h.StartStream)
			stream.POST("/stop", h.StopStream)
			stream.GET("/list", h.ListStreams)
		}
	}
}

// BlackScholesRequest 解析定价请求
type BlackScholesRequest struct {
	StockPrice     float64 `json:"stock_price" binding:"required"`
	StrikePrice    float64 `json:"strike_price" binding:"required"`
	TimeToMaturity float64 `json:"time_to_maturity" binding:"required"`
	RiskFreeRate   float64 `json:"risk_free_rate"`
	Volatility     float64 `json:"volatility" binding:"required"`
	OptionType     string  `json:"option_type"`
}

// MonteCarloRequest 蒙特卡洛定价请求
type MonteCarloRequest struct {
	StockPrice     float64 `json:"stock_price" binding:"required"`
	StrikePrice    float64 `json:"strike_price" binding:"required"`
	TimeToMaturity float64 `json:"time_to_maturity" binding:"required"`
	RiskFreeRate   float64 `json:"risk_free_rate"`
	Volatility     float64 `json:"volatility" binding:"required"`
	OptionType     string  `json:"option_type"`
	NSimulations   int     `json:"n_simulations"`
}

// StochasticRateRequest 随机利率定价请求
type StochasticRateRequest struct {
	StockPrice      float64 `json:"stock_price" binding:"required"`
	StrikePrice     float64 `json:"strike_price" binding:"required"`
	TimeToMaturity  float64 `json:"time_to_maturity" binding:"required"`
	InitialRate     float64 `json:"initial_rate"`
	StockVolatility float64 `json:"stock_volatility" binding:"required"`
	OptionType      string  `json:"option_type"`
	RateModel       string  `json:"rate_model"`
	NSimulations    int     `json:"n_simulations"`
}

// SimulateRatesRequest 利率路径模拟请求
type SimulateRatesRequest struct {
	InitialRate float64   `json:"initial_rate"`
	TimeHorizon float64   `json:"time_horizon" binding:"required"`
	NSteps      int       `json:"n_steps"`
	NPaths      int       `json:"n_paths"`
	Model       string    `json:"model"`
	CurveTenors []float64 `json:"curve_tenors"`
	CurveRates  []float64 `json:"curve_rates"`
	CurveMethod string    `json:"curve_method"`
}

// CurveFitRequest 收益率曲线拟合请求
type CurveFitRequest struct {
	Tenors   []float64 `json:"tenors" binding:"required"`
	Rates    []float64 `json:"rates" binding:"required"`
	Method   string    `json:"method"`
	NSamples int       `json:"n_samples"`
}

// CompareRequest 模型比较请求
type CompareRequest struct {
	StockPrice     float64  `json:"stock_price" binding:"required"`
	StrikePrice    float64  `json:"strike_price" binding:"required"`
	TimeToMaturity float64  `json:"time_to_maturity" binding:"required"`
	RiskFreeRate   float64  `json:"risk_free_rate"`
	Volatility     float64  `json:"volatility" binding:"required"`
	OptionType     string   `json:"option_type"`
	Models         []string `json:"models"`
}

// StartStreamRequest 启动利率流请求
type StartStreamRequest struct {
	Model       string  `json:"model"`
	InitialRate float64 `json:"initial_rate"`
	IntervalMS  int     `json:"interval_ms"`
}

// StopStreamRequest 停止利率流请求
type StopStreamRequest struct {
	StreamID string `json:"stream_id" binding:"required"`
}

// HealthCheck 健康检查
func (h *PricingHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "optionspricing",
		"timestamp": time.Now().Unix(),
	})
}

// PriceBlackScholes 解析定价
func (h *PricingHandler) PriceBlackScholes(c *gin.Context) {
	var req BlackScholesRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.OptionType == "" {
		req.OptionType = "call"
	}

	dto, err := h.app.PriceBlackScholes(c.Request.Context(), application.BlackScholesCommand{
		Spot:       req.StockPrice,
		Strike:     req.StrikePrice,
		Maturity:   req.TimeToMaturity,
		Rate:       req.RiskFreeRate,
		Volatility: req.Volatility,
		OptionType: req.OptionType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithRawData(c, gin.H{
		"success":     true,
		"model":       dto.Model,
		"option_type": dto.OptionType,
		"price":       dto.Price,
		"greeks": gin.H{
			"delta": dto.Greeks.Delta,
			"gamma": dto.Greeks.Gamma,
			"vega":  dto.Greeks.Vega,
			"theta": dto.Greeks.Theta,
			"rho":   dto.Greeks.Rho,
		},
		"inputs": rawInputs(c),
	})
}

// PriceMonteCarlo 蒙特卡洛定价
func (h *PricingHandler) PriceMonteCarlo(c *gin.Context) {
	var req MonteCarloRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.OptionType == "" {
		req.OptionType = "call"
	}

	dto, err := h.app.PriceMonteCarlo(c.Request.Context(), application.MonteCarloCommand{
		Spot:        req.StockPrice,
		Strike:      req.StrikePrice,
		Maturity:    req.TimeToMaturity,
		Rate:        req.RiskFreeRate,
		Volatility:  req.Volatility,
		OptionType:  req.OptionType,
		Simulations: req.NSimulations,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	stdError := 0.0
	ci := []float64{dto.Price, dto.Price}
	if dto.Stats != nil {
		stdError = dto.Stats.StdError
		ci = []float64{dto.Stats.Lower, dto.Stats.Upper}
	}
	response.SuccessWithRawData(c, gin.H{
		"success":                true,
		"model":                  dto.Model,
		"option_type":            dto.OptionType,
		"price":                  dto.Price,
		"std_error":              stdError,
		"confidence_interval_95": ci,
		"n_simulations":          dto.Simulations,
		"inputs":                 rawInputs(c),
	})
}

// PriceWithRateModels 随机利率定价
func (h *PricingHandler) PriceWithRateModels(c *gin.Context) {
	var req StochasticRateRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.OptionType == "" {
		req.OptionType = "call"
	}

	dto, err := h.app.PriceWithStochasticRates(c.Request.Context(), application.StochasticRateCommand{
		Spot:        req.StockPrice,
		Strike:      req.StrikePrice,
		Maturity:    req.TimeToMaturity,
		InitialRate: req.InitialRate,
		Volatility:  req.StockVolatility,
		OptionType:  req.OptionType,
		RateModel:   req.RateModel,
		Simulations: req.NSimulations,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	stdError := 0.0
	if dto.Stats != nil {
		stdError = dto.Stats.StdError
	}
	response.SuccessWithRawData(c, gin.H{
		"success":       true,
		"model":         dto.Model,
		"option_type":   dto.OptionType,
		"price":         dto.Price,
		"std_error":     stdError,
		"rate_model":    dto.RateModel,
		"n_simulations": dto.Simulations,
		"inputs":        rawInputs(c),
	})
}

// SimulateRates 利率路径模拟
func (h *PricingHandler) SimulateRates(c *gin.Context) {
	var req SimulateRatesRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.app.SimulateRates(c.Request.Context(), application.SimulateRatesCommand{
		InitialRate: req.InitialRate,
		Horizon:     req.TimeHorizon,
		Steps:       req.NSteps,
		Paths:       req.NPaths,
		Model:       req.Model,
		CurveTenors: req.CurveTenors,
		CurveRates:  req.CurveRates,
		CurveMethod: req.CurveMethod,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithRawData(c, gin.H{
		"success":     true,
		"model":       dto.Model,
		"time_points": dto.TimePoints,
		"paths":       dto.Paths,
		"inputs":      rawInputs(c),
	})
}

// FitCurve 收益率曲线拟合
func (h *PricingHandler) FitCurve(c *gin.Context) {
	var req CurveFitRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.app.FitCurve(c.Request.Context(), application.FitCurveCommand{
		Tenors:  req.Tenors,
		Rates:   req.Rates,
		Method:  req.Method,
		Samples: req.NSamples,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{
		"success":     true,
		"method":      dto.Method,
		"time_points": dto.TimePoints,
		"rates":       dto.Rates,
		"inputs":      rawInputs(c),
	}
	if dto.Params != nil {
		body["parameters"] = gin.H{
			"beta0": dto.Params.Beta0,
			"beta1": dto.Params.Beta1,
			"beta2": dto.Params.Beta2,
			"tau":   dto.Params.Tau,
		}
	}
	response.SuccessWithRawData(c, body)
}

// CompareModels 模型比较
func (h *PricingHandler) CompareModels(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.OptionType == "" {
		req.OptionType = "call"
	}

	dto, err := h.app.Compare(c.Request.Context(), application.CompareCommand{
		Spot:       req.StockPrice,
		Strike:     req.StrikePrice,
		Maturity:   req.TimeToMaturity,
		Rate:       req.RiskFreeRate,
		Volatility: req.Volatility,
		OptionType: req.OptionType,
		Models:     req.Models,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithRawData(c, gin.H{
		"success":    true,
		"comparison": dto.Comparison,
		"inputs":     rawInputs(c),
	})
}

// StartStream 启动利率流
func (h *PricingHandler) StartStream(c *gin.Context) {
	var req StartStreamRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.streams.StartStream(c.Request.Context(), application.StartStreamCommand{
		Model:       req.Model,
		InitialRate: req.InitialRate,
		IntervalMS:  req.IntervalMS,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithRawData(c, gin.H{
		"success": true,
		"stream":  streamPayload(dto),
	})
}

// StopStream 停止利率流
func (h *PricingHandler) StopStream(c *gin.Context) {
	var req StopStreamRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	if err := h.streams.StopStream(c.Request.Context(), req.StreamID); err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithRawData(c, gin.H{
		"success":   true,
		"stream_id": req.StreamID,
	})
}

// ListStreams 列出活跃利率流
func (h *PricingHandler) ListStreams(c *gin.Context) {
	streams := h.streams.ListStreams(c.Request.Context())
	payload := make([]gin.H, 0, len(streams))
	for _, st := range streams {
		payload = append(payload, streamPayload(st))
	}
	response.SuccessWithRawData(c, gin.H{
		"success": true,
		"count":   len(payload),
		"streams": payload,
	})
}

func streamPayload(dto *application.StreamDTO) gin.H {
	return gin.H{
		"stream_id":  dto.StreamID,
		"model":      dto.Model,
		"rate":       dto.Rate,
		"interval":   dto.Interval,
		"started_at": dto.StartedAt,
	}
}

// rawInputs 返回原始请求体, 用于响应中的 inputs 回显.
func rawInputs(c *gin.Context) map[string]any {
	var inputs map[string]any
	if err := c.ShouldBindBodyWith(&inputs, binding.JSON); err != nil {
		return nil
	}
	return inputs
}
