package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ZanzyTHEbar/archery-analyzer/internal/adapters"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/analysis"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/auth"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/encoding"
	apperrors "github.com/ZanzyTHEbar/archery-analyzer/internal/errors"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/history"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/monitoring"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/resilience"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/security"
	"github.com/ZanzyTHEbar/archery-analyzer/internal/types"
)

// Analysis kinds reported to metrics and logs
const (
	kindPose         = "pose"
	kindTarget       = "target"
	kindTargetImage  = "target_image"
	kindRealtimePose = "realtime_pose"
	kindRealtimeTgt  = "realtime_target"
	serviceDetector  = "Object detector"
	serviceEstimator = "Pose estimator"
)

// render writes v through the lenient response codec
func render(c *gin.Context, status int, v interface{}) {
	c.Render(status, encoding.Default.Render(v))
}

// bindJSON decodes the body with the strict codec and runs the binding validator
func bindJSON(c *gin.Context, v interface{}) error {
	if c.Request.Body == nil {
		return apperrors.NewValidationError("Request body is required")
	}
	if err := encoding.Strict.Decode(c.Request.Body, v); err != nil {
		if security.IsBodyTooLarge(err) {
			var maxErr *http.MaxBytesError
			errors.As(err, &maxErr)
			return apperrors.NewPayloadTooLargeError(maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return apperrors.NewValidationError("Request body is required")
		}
		return apperrors.NewValidationError("Invalid JSON body", err.Error())
	}
	return validate(v)
}

// bindForm binds multipart form or query fields and validates them
func (a *App) bindForm(c *gin.Context, v interface{}) error {
	if err := c.ShouldBind(v); err != nil {
		if security.IsBodyTooLarge(err) {
			return apperrors.NewPayloadTooLargeError(a.cfg.Security.MaxUploadBytes)
		}
		return validationError(err)
	}
	return nil
}

func validate(v interface{}) error {
	if err := binding.Validator.ValidateStruct(v); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError turns validator failures into a per-field error map
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("Invalid request", err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			fields[fe.Field()] = fmt.Sprintf("failed on '%s=%s'", fe.Tag(), fe.Param())
			continue
		}
		fields[fe.Field()] = fmt.Sprintf("failed on '%s'", fe.Tag())
	}
	return apperrors.NewValidationErrorWithMap(fields)
}

// upstreamError maps a perception client failure; rejections become 502 and the rest
// (open circuit, timeouts, network) keep their own mapping
func upstreamError(service string, err error) error {
	var ue *adapters.UpstreamError
	if errors.As(err, &ue) {
		return apperrors.NewExternalAPIError(service, err)
	}
	return err
}

// readUpload reads a multipart file field fully
func (a *App) readUpload(c *gin.Context, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		if security.IsBodyTooLarge(err) {
			return nil, apperrors.NewPayloadTooLargeError(a.cfg.Security.MaxUploadBytes)
		}
		return nil, apperrors.NewValidationError(fmt.Sprintf("Multipart field %q is required", field))
	}
	f, err := header.Open()
	if err != nil {
		return nil, apperrors.NewValidationError("Failed to open upload", err.Error())
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewValidationError("Failed to read upload", err.Error())
	}
	return data, nil
}

// recordOutcome reports one analysis to metrics and the analysis log
func (a *App) recordOutcome(kind string, units int, summary float64, start time.Time, err error) {
	reason := ""
	if err != nil {
		reason = "error"
		if r, ok := analysis.ReasonOf(err); ok {
			reason = string(r)
		}
	}
	a.metrics.RecordAnalysis(kind, reason)
	a.logger.AnalysisLogger(kind, units, summary, time.Since(start), err)
}

// handleHealth godoc
// @Summary Service readiness and dependency status
// @Tags    system
// @Produce json
// @Success 200 {object} types.HealthResponse
// @Failure 503 {object} types.HealthResponse
// @Router  /health [get]
func (a *App) handleHealth(c *gin.Context) {
	ready, down := a.degradation.Ready()

	deps := make(map[string]interface{})
	for name, health := range a.degradation.GetAllServiceHealth() {
		deps[name] = health
	}
	deps[resilience.ServiceRedis+"_enabled"] = a.redis.IsEnabled()
	if len(down) > 0 {
		deps["unavailable"] = down
	}

	resp := types.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   a.cfg.Server.Version,
		Services: map[string]bool{
			"pose_analysis":   a.serviceReady(a.pose != nil, resilience.ServicePoseEstimator),
			"target_analysis": a.serviceReady(a.detector != nil, resilience.ServiceObjectDetector),
		},
		Dependencies: deps,
	}
	if !ready {
		resp.Status = "degraded"
		render(c, http.StatusServiceUnavailable, resp)
		return
	}
	render(c, http.StatusOK, resp)
}

// handleMetrics godoc
// @Summary Request, analysis, upstream and rate limit counters
// @Tags    system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router  /metrics [get]
func (a *App) handleMetrics(c *gin.Context) {
	stats := a.metrics.GetStats()
	stats["runtime"] = monitoring.RuntimeStats()
	stats["cache"] = a.respCache.Stats()
	stats["statistics_cache"] = a.history.CacheStats()
	stats["rate_limiter"] = a.limiter.GetStats()
	stats["compression"] = a.compression.GetStats()
	stats["codec"] = map[string]interface{}{
		"request":  encoding.Strict.GetStats(),
		"response": encoding.Default.GetStats(),
	}
	stats["database"] = a.db.GetPoolStats()
	stats["circuit_breakers"] = a.breakers.GetStats()
	stats["degradation_level"] = a.degradation.OverallLevel().String()
	stats["active_spans"] = a.tracer.ActiveSpans()

	upstream := make(map[string]interface{})
	if a.pose != nil {
		upstream[resilience.ServicePoseEstimator] = a.pose.GetPoolStats()
	}
	if a.detector != nil {
		upstream[resilience.ServiceObjectDetector] = a.detector.GetPoolStats()
	}
	if a.redis.IsEnabled() {
		upstream[resilience.ServiceRedis] = a.redis.GetPoolStats()
	}
	stats["upstream_pools"] = upstream

	render(c, http.StatusOK, stats)
}

// handleTargets godoc
// @Summary Configured target types with their rings
// @Tags    analysis
// @Produce json
// @Success 200 {object} types.TargetsResponse
// @Router  /targets [get]
func (a *App) handleTargets(c *gin.Context) {
	render(c, http.StatusOK, types.TargetsResponse{Targets: a.analyzer.Targets().Describe()})
}

// handleAnalyzePose godoc
// @Summary  Score a landmark sequence
// @Tags     analysis
// @Accept   json
// @Produce  json
// @Security ArcherToken
// @Param    request body types.PoseAnalyzeRequest true "landmark sequence"
// @Success  200 {object} analysis.PoseAnalysis
// @Failure  400 {object} errors.ErrorBody
// @Failure  422 {object} errors.ErrorBody
// @Router   /analyze/pose [post]
func (a *App) handleAnalyzePose(c *gin.Context) {
	var req types.PoseAnalyzeRequest
	if err := bindJSON(c, &req); err != nil {
		apperrors.Respond(c, err)
		return
	}

	start := time.Now()
	var result analysis.PoseAnalysis
	err := a.tracer.Trace(c.Request.Context(), "analysis.pose", func(_ context.Context) error {
		var err error
		result, err = a.analyzer.AnalyzePoseSequence(req.Input())
		return err
	})
	a.recordOutcome(kindPose, len(req.Frames), result.Analysis.Stability, start, err)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	a.metrics.RecordFrames(result.FramesSampled, result.FramesSkipped)

	if archerID, ok := auth.ArcherID(c); ok {
		if _, err := a.history.RecordPose(c.Request.Context(), archerID, result); err != nil {
			a.logger.Warn("Failed to record pose session", "error", err)
		}
	}
	render(c, http.StatusOK, result)
}

// handleAnalyzeTarget godoc
// @Summary  Score detector output against a target type
// @Tags     analysis
// @Accept   json
// @Produce  json
// @Security ArcherToken
// @Param    request body types.TargetAnalyzeRequest true "detections"
// @Success  200 {object} analysis.TargetAnalysis
// @Failure  400 {object} errors.ErrorBody
// @Failure  422 {object} errors.ErrorBody
// @Router   /analyze/target [post]
func (a *App) handleAnalyzeTarget(c *gin.Context) {
	var req types.TargetAnalyzeRequest
	if err := bindJSON(c, &req); err != nil {
		apperrors.Respond(c, err)
		return
	}
	a.scoreTarget(c, kindTarget, req.Input())
}

// scoreTarget runs the target analysis, records it and writes the response
func (a *App) scoreTarget(c *gin.Context, kind string, in analysis.TargetInput) {
	start := time.Now()
	var result analysis.TargetAnalysis
	err := a.tracer.Trace(c.Request.Context(), "analysis.target", func(_ context.Context) error {
		var err error
		result, err = a.analyzer.AnalyzeTarget(in)
		return err
	})
	a.recordOutcome(kind, len(in.Detections), result.AverageScore, start, err)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	a.metrics.RecordArrows(len(result.Arrows))

	if archerID, ok := auth.ArcherID(c); ok {
		if _, err := a.history.RecordTarget(c.Request.Context(), archerID, result); err != nil {
			a.logger.Warn("Failed to record target session", "error", err)
		}
	}
	render(c, http.StatusOK, result)
}

// handleAnalyzeTargetImage godoc
// @Summary  Detect and score a target photo
// @Tags     analysis
// @Accept   multipart/form-data
// @Produce  json
// @Security ArcherToken
// @Param    image         formData file   true  "target photo"
// @Param    target_type   formData string false "target type, standard by default"
// @Param    distance      formData number false "shooting distance in metres, 18 by default"
// @Param    detect_arrows formData bool   false "score arrows"
// @Success  200 {object} analysis.TargetAnalysis
// @Failure  502 {object} errors.ErrorBody
// @Failure  503 {object} errors.ErrorBody
// @Router   /analyze/target/image [post]
func (a *App) handleAnalyzeTargetImage(c *gin.Context) {
	if a.detector == nil {
		apperrors.Respond(c, apperrors.NewUnavailableError(serviceDetector, errors.New("object detector is not configured")))
		return
	}

	var form types.TargetImageForm
	if err := a.bindForm(c, &form); err != nil {
		apperrors.Respond(c, err)
		return
	}
	data, err := a.readUpload(c, "image")
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	frame, err := adapters.PrepareFrame(data, a.detector.InputSize())
	if err != nil {
		apperrors.Respond(c, apperrors.NewValidationError("Invalid image", err.Error()))
		return
	}

	detections, err := a.detector.Detect(c.Request.Context(), frame)
	if err != nil {
		a.metrics.RecordAnalysis(kindTargetImage, "upstream")
		apperrors.Respond(c, upstreamError(serviceDetector, err))
		return
	}

	a.scoreTarget(c, kindTargetImage, form.Input(detections))
}

// handleAnalyzeRealtime godoc
// @Summary Analyze one camera frame
// @Tags    analysis
// @Accept  multipart/form-data
// @Produce json
// @Param   frame formData file   true "camera frame"
// @Param   type  formData string true "pose or target"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorBody
// @Failure 422 {object} errors.ErrorBody
// @Router  /analyze/realtime [post]
func (a *App) handleAnalyzeRealtime(c *gin.Context) {
	var form types.RealtimeForm
	if err := a.bindForm(c, &form); err != nil {
		apperrors.Respond(c, err)
		return
	}
	if form.Type != types.RealtimePose && form.Type != types.RealtimeTarget {
		apperrors.Respond(c, apperrors.NewValidationError(
			fmt.Sprintf("Invalid analysis type %q, expected %q or %q", form.Type, types.RealtimePose, types.RealtimeTarget)))
		return
	}

	data, err := a.readUpload(c, "frame")
	if err != nil {
		apperrors.Respond(c, err)
		return
	}

	switch form.Type {
	case types.RealtimePose:
		a.realtimePose(c, data)
	case types.RealtimeTarget:
		a.realtimeTarget(c, data)
	}
}

func (a *App) realtimePose(c *gin.Context, data []byte) {
	if a.pose == nil {
		apperrors.Respond(c, apperrors.NewUnavailableError(serviceEstimator, errors.New("pose estimator is not configured")))
		return
	}
	frame, err := adapters.PrepareFrame(data, 0)
	if err != nil {
		apperrors.Respond(c, apperrors.NewValidationError("Invalid image", err.Error()))
		return
	}

	start := time.Now()
	landmarks, err := a.pose.Estimate(c.Request.Context(), frame)
	if err != nil {
		a.metrics.RecordAnalysis(kindRealtimePose, "upstream")
		apperrors.Respond(c, upstreamError(serviceEstimator, err))
		return
	}

	result, err := a.analyzer.AnalyzeFrame(landmarks)
	a.recordOutcome(kindRealtimePose, 1, result.Scores.Stability, start, err)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	render(c, http.StatusOK, result)
}

func (a *App) realtimeTarget(c *gin.Context, data []byte) {
	if a.detector == nil {
		apperrors.Respond(c, apperrors.NewUnavailableError(serviceDetector, errors.New("object detector is not configured")))
		return
	}
	frame, err := adapters.PrepareFrame(data, a.detector.InputSize())
	if err != nil {
		apperrors.Respond(c, apperrors.NewValidationError("Invalid image", err.Error()))
		return
	}

	start := time.Now()
	detections, err := a.detector.Detect(c.Request.Context(), frame)
	if err != nil {
		a.metrics.RecordAnalysis(kindRealtimeTgt, "upstream")
		apperrors.Respond(c, upstreamError(serviceDetector, err))
		return
	}

	result := a.analyzer.QuickTarget(detections)
	a.recordOutcome(kindRealtimeTgt, len(detections), float64(result.ArrowCount), start, nil)
	render(c, http.StatusOK, result)
}

// handleIssueToken godoc
// @Summary Issue an archer token
// @Tags    archers
// @Accept  json
// @Produce json
// @Param   request      body   types.TokenRequest true  "archer"
// @Param   X-Issuer-Key header string             false "issuer key"
// @Success 200 {object} auth.Token
// @Failure 401 {object} errors.ErrorBody
// @Router  /auth/token [post]
func (a *App) handleIssueToken(c *gin.Context) {
	var req types.TokenRequest
	if err := bindJSON(c, &req); err != nil {
		apperrors.Respond(c, err)
		return
	}
	if err := security.ValidateArcherID(req.ArcherID); err != nil {
		apperrors.Respond(c, apperrors.NewValidationError("Invalid archer id", err.Error()))
		return
	}

	token, err := a.issuer.Issue(req.ArcherID)
	if err != nil {
		apperrors.Respond(c, apperrors.NewInternalError("Failed to issue token", err))
		return
	}
	render(c, http.StatusOK, token)
}

// handleSessions godoc
// @Summary  Recorded sessions, newest first
// @Tags     archers
// @Produce  json
// @Security ArcherToken
// @Param    kind  query string  false "target or pose"
// @Param    limit query integer false "page size"
// @Success  200 {object} history.SessionList
// @Router   /archers/me/sessions [get]
func (a *App) handleSessions(c *gin.Context) {
	archerID, _ := auth.ArcherID(c)

	var q types.SessionsQuery
	if err := a.bindForm(c, &q); err != nil {
		apperrors.Respond(c, err)
		return
	}

	list, err := a.history.Sessions(c.Request.Context(), archerID, q.Kind, q.Limit)
	if err != nil {
		apperrors.Respond(c, historyError(err))
		return
	}
	render(c, http.StatusOK, list)
}

// handleStatistics godoc
// @Summary  Target statistics for a period
// @Tags     archers
// @Produce  json
// @Security ArcherToken
// @Param    period query string false "daily, weekly, monthly or all_time"
// @Success  200 {object} history.TargetStatistics
// @Router   /archers/me/statistics [get]
func (a *App) handleStatistics(c *gin.Context) {
	archerID, _ := auth.ArcherID(c)

	var q types.StatisticsQuery
	if err := a.bindForm(c, &q); err != nil {
		apperrors.Respond(c, err)
		return
	}

	stats, err := a.history.Statistics(c.Request.Context(), archerID, q.Period)
	if err != nil {
		apperrors.Respond(c, historyError(err))
		return
	}
	render(c, http.StatusOK, stats)
}

// handleForget godoc
// @Summary  Erase every recorded session of the archer
// @Tags     archers
// @Produce  json
// @Security ArcherToken
// @Success  200 {object} types.ForgetResponse
// @Router   /archers/me [delete]
func (a *App) handleForget(c *gin.Context) {
	archerID, _ := auth.ArcherID(c)

	deleted, err := a.history.Forget(c.Request.Context(), archerID)
	if err != nil {
		apperrors.Respond(c, apperrors.NewInternalError("Failed to erase history", err))
		return
	}
	render(c, http.StatusOK, types.ForgetResponse{ArcherID: archerID, Deleted: deleted})
}

func historyError(err error) error {
	switch {
	case errors.Is(err, history.ErrInvalidKind):
		return apperrors.NewValidationError("Invalid session kind", err.Error())
	case errors.Is(err, history.ErrInvalidPeriod):
		return apperrors.NewValidationError(
			fmt.Sprintf("Invalid period, expected one of %v", history.Periods()), err.Error())
	default:
		return err
	}
}
