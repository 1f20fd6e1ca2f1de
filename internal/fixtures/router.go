package fixtures

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	searchRoutePath         = "/api/search"
	userRoutePath           = "/api/user/:identifier"
	historyRoutePath        = "/api/user/:identifier/history"
	analyzeRoutePath        = "/api/user/:identifier/analyze"
	healthRoutePath         = "/healthz"
	identifierParameter     = "identifier"
	searchQueryParameter    = "q"
	errorResponseKey        = "error"
	errorMessageNotFound    = "User not found"
	errorMessageCancelled   = "analysis cancelled"
	errMessageMissingStore  = "fixture store is required"
	healthStatusKey         = "status"
	healthStatusOK          = "ok"
	corsOriginHeader        = "Access-Control-Allow-Origin"
	corsOriginAny           = "*"
	ginModeRelease          = "release"
	logMessageRequestServed = "fixture request served"
	logMessageAnalysis      = "analysis requested"
	logMessageUnknownUser   = "unknown user requested"
	logFieldMethod          = "method"
	logFieldPath            = "path"
	logFieldStatus          = "status"
	logFieldLatency         = "latency"
	logFieldIdentifier      = "identifier"
	logFieldDelay           = "delay"
)

var errMissingStore = errors.New(errMessageMissingStore)

// RouterConfig configures the fixture backend.
type RouterConfig struct {
	Store  *Store
	Logger *zap.Logger
	// AnalysisDelay holds every analyze response back, to exercise slow-analysis feedback.
	AnalysisDelay time.Duration
}

// NewRouter constructs a Gin engine serving the search, user, history and analyze endpoints.
func NewRouter(configuration RouterConfig) (*gin.Engine, error) {
	if configuration.Store == nil {
		return nil, errMissingStore
	}
	logger := configuration.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(ginModeRelease)
	engine := gin.New()
	engine.UseRawPath = true
	engine.Use(gin.Recovery(), requestLogger(logger))

	handler := fixtureHandler{
		store:         configuration.Store,
		logger:        logger,
		analysisDelay: configuration.AnalysisDelay,
	}

	engine.GET(searchRoutePath, handler.search)
	engine.GET(userRoutePath, handler.user)
	engine.GET(historyRoutePath, handler.history)
	engine.GET(analyzeRoutePath, handler.analyze)
	engine.GET(healthRoutePath, handler.healthStatus)

	return engine, nil
}

type fixtureHandler struct {
	store         *Store
	logger        *zap.Logger
	analysisDelay time.Duration
}

func (handler fixtureHandler) search(ginContext *gin.Context) {
	ginContext.Header(corsOriginHeader, corsOriginAny)
	ginContext.JSON(http.StatusOK, handler.store.Search(ginContext.Query(searchQueryParameter)))
}

func (handler fixtureHandler) user(ginContext *gin.Context) {
	identifier := ginContext.Param(identifierParameter)
	detail, found := handler.store.Detail(identifier)
	if !found {
		handler.notFound(ginContext, identifier)
		return
	}
	ginContext.JSON(http.StatusOK, detail)
}

func (handler fixtureHandler) history(ginContext *gin.Context) {
	identifier := ginContext.Param(identifierParameter)
	history, found := handler.store.History(identifier)
	if !found {
		handler.notFound(ginContext, identifier)
		return
	}
	ginContext.JSON(http.StatusOK, history)
}

func (handler fixtureHandler) analyze(ginContext *gin.Context) {
	identifier := ginContext.Param(identifierParameter)
	handler.logger.Info(logMessageAnalysis, zap.String(logFieldIdentifier, identifier), zap.Duration(logFieldDelay, handler.analysisDelay))

	if handler.analysisDelay > 0 {
		timer := time.NewTimer(handler.analysisDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ginContext.Request.Context().Done():
			ginContext.JSON(http.StatusServiceUnavailable, gin.H{errorResponseKey: errorMessageCancelled})
			return
		}
	}

	detail, found := handler.store.Analyze(identifier)
	if !found {
		handler.notFound(ginContext, identifier)
		return
	}
	ginContext.JSON(http.StatusOK, detail)
}

func (handler fixtureHandler) notFound(ginContext *gin.Context, identifier string) {
	handler.logger.Debug(logMessageUnknownUser, zap.String(logFieldIdentifier, identifier))
	ginContext.JSON(http.StatusNotFound, gin.H{errorResponseKey: errorMessageNotFound})
}

func (handler fixtureHandler) healthStatus(ginContext *gin.Context) {
	ginContext.JSON(http.StatusOK, map[string]string{healthStatusKey: healthStatusOK})
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(ginContext *gin.Context) {
		startedAt := time.Now()
		ginContext.Next()
		logger.Debug(
			logMessageRequestServed,
			zap.String(logFieldMethod, ginContext.Request.Method),
			zap.String(logFieldPath, ginContext.Request.URL.Path),
			zap.Int(logFieldStatus, ginContext.Writer.Status()),
			zap.Duration(logFieldLatency, time.Since(startedAt)),
		)
	}
}
