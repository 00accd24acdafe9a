package server

import (
	"errors"
	"net/http"
	"time"

	"judgebox/internal/config"
	"judgebox/internal/judge/result"
	"judgebox/internal/judge/service"
	appErr "judgebox/pkg/errors"
	"judgebox/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v4/mem"
)

// Handler serves the judging API.
type Handler struct {
	svc     *service.Service
	cfg     *config.Config
	started time.Time
}

// NewHandler creates the API handler.
func NewHandler(svc *service.Service, cfg *config.Config) *Handler {
	return &Handler{svc: svc, cfg: cfg, started: time.Now()}
}

type executeRequest struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	Input       string `json:"input"`
	TimeLimit   int    `json:"timeLimit"`
	MemoryLimit int    `json:"memoryLimit"`
}

type testCaseBody struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expectedOutput"`
}

type judgeRequest struct {
	executeRequest
	TestCases []testCaseBody `json:"testCases"`
}

type batchJudgeRequest struct {
	Submissions []judgeRequest `json:"submissions"`
}

// Health reports liveness plus a queue and memory snapshot.
func (h *Handler) Health(c *gin.Context) {
	data := gin.H{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(h.started).Seconds()),
		"executionMode": h.cfg.Mode,
		"queue":         h.svc.QueueStatus(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		data["memory"] = gin.H{
			"totalMb":     vm.Total / 1024 / 1024,
			"availableMb": vm.Available / 1024 / 1024,
			"usedPercent": vm.UsedPercent,
		}
	}
	response.Success(c, data)
}

// Languages serves the catalogue, the limits and the verdict dictionary.
func (h *Handler) Languages(c *gin.Context) {
	response.Success(c, gin.H{
		"languages": h.svc.Catalogue().All(),
		"limits": gin.H{
			"maxTimeLimit":    h.cfg.Limits.MaxTimeLimitSec,
			"maxMemoryLimit":  h.cfg.Limits.MaxMemoryMB,
			"maxCodeSize":     h.cfg.Limits.MaxCodeSize,
			"maxTestCases":    h.cfg.Limits.MaxTestCases,
			"defaultTime":     h.cfg.Limits.DefaultTimeLimitSec,
			"defaultMemoryMb": h.cfg.Limits.DefaultMemoryMB,
		},
		"verdicts": result.Descriptions,
	})
}

// Execute runs a submission once against a single input.
func (h *Handler) Execute(c *gin.Context) {
	var body executeRequest
	if !h.bind(c, &body) {
		return
	}
	run, err := h.svc.Execute(c.Request.Context(), service.ExecuteRequest{
		Language:      body.Language,
		Source:        body.Code,
		Input:         body.Input,
		TimeLimitSec:  body.TimeLimit,
		MemoryLimitMB: body.MemoryLimit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, run)
}

// Judge runs a submission against its test cases.
func (h *Handler) Judge(c *gin.Context) {
	var body judgeRequest
	if !h.bind(c, &body) {
		return
	}
	res, err := h.svc.Judge(c.Request.Context(), toJudgeRequest(body))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// BatchJudge runs up to the configured number of independent judge
// submissions sequentially.
func (h *Handler) BatchJudge(c *gin.Context) {
	var body batchJudgeRequest
	if !h.bind(c, &body) {
		return
	}
	reqs := make([]service.JudgeRequest, len(body.Submissions))
	for i, sub := range body.Submissions {
		reqs[i] = toJudgeRequest(sub)
	}
	entries, err := h.svc.BatchJudge(c.Request.Context(), reqs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"results": entries})
}

// bind decodes the JSON body, distinguishing oversized payloads from
// malformed ones.
func (h *Handler) bind(c *gin.Context, out interface{}) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			response.ErrorWithCode(c, appErr.PayloadTooLarge, "")
			return false
		}
		response.ErrorWithCode(c, appErr.MalformedJSON, err.Error())
		return false
	}
	return true
}

func toJudgeRequest(body judgeRequest) service.JudgeRequest {
	cases := make([]service.TestCase, len(body.TestCases))
	for i, tc := range body.TestCases {
		cases[i] = service.TestCase{Input: tc.Input, ExpectedOutput: tc.ExpectedOutput}
	}
	return service.JudgeRequest{
		Language:      body.Language,
		Source:        body.Code,
		TimeLimitSec:  body.TimeLimit,
		MemoryLimitMB: body.MemoryLimit,
		TestCases:     cases,
	}
}
