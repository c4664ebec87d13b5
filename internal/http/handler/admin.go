package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"nutrilab/internal/model"
	"nutrilab/internal/repository"
	"nutrilab/internal/service"
	"nutrilab/internal/worker"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PipelineRunner triggers one extraction tick.
type PipelineRunner interface {
	RunOnce(ctx context.Context) (worker.BatchReport, error)
}

// extractResponse is the body of a synchronous extraction.
type extractResponse struct {
	Post    *model.Post    `json:"post"`
	Outcome worker.Outcome `json:"outcome"`
}

// ReprocessPost godoc
// @Summary  Queue a post for extraction again
// @Tags     admin
// @Produce  json
// @Security AdminToken
// @Param    id path string true "post ID"
// @Success  200 {object} model.Post
// @Failure  404 {object} apiError
// @Router   /api/admin/posts/{id}/reprocess [post]
func ReprocessPost(svc service.AdminService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := postID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		post, err := svc.Reprocess(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(post)
	}
}

// ExtractPost godoc
// @Summary  Extract lab results from one document now
// @Description A failed extraction still answers 200; the outcome names the reason and the post holds the error marker.
// @Tags     admin
// @Produce  json
// @Security AdminToken
// @Param    id path string true "post ID"
// @Success  200 {object} extractResponse
// @Failure  409 {object} apiError
// @Failure  422 {object} apiError
// @Router   /api/admin/posts/{id}/extract [post]
func ExtractPost(svc service.AdminService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := postID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		post, out, err := svc.ExtractNow(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(extractResponse{Post: post, Outcome: out})
	}
}

// AnalyzeFood godoc
// @Summary  Estimate the macros of a meal photo
// @Tags     admin
// @Produce  json
// @Security AdminToken
// @Param    id path string true "post ID"
// @Success  200 {object} model.Post
// @Failure  422 {object} apiError
// @Failure  502 {object} apiError
// @Router   /api/admin/posts/{id}/analyze-food [post]
func AnalyzeFood(svc service.AdminService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := postID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		post, err := svc.AnalyzeFood(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(post)
	}
}

// RunPipeline godoc
// @Summary  Run one extraction tick and report it
// @Tags     admin
// @Produce  json
// @Security AdminToken
// @Success  200 {object} worker.BatchReport
// @Failure  409 {object} apiError
// @Router   /api/admin/pipeline/run [post]
func RunPipeline(runner PipelineRunner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		report, err := runner.RunOnce(c.UserContext())
		if err != nil {
			if errors.Is(err, worker.ErrTickInProgress) {
				return writeError(c, fiber.StatusConflict, "TICK_IN_PROGRESS", "a pipeline tick is already running")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(report)
	}
}

// PendingPosts godoc
// @Summary  List posts waiting for the pipeline
// @Description Read-only. Posts come back in the order the next tick claims them; a post leased by a running tick is still listed.
// @Tags     admin
// @Produce  json
// @Security AdminToken
// @Param    limit query int false "maximum posts" default(50)
// @Success  200 {array}  model.Post
// @Failure  400 {object} apiError
// @Router   /api/admin/pipeline/pending [get]
func PendingPosts(svc service.AdminService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(service.DefaultPendingLimit)))
		if err != nil || limit < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer")
		}
		items, err := svc.Pending(c.UserContext(), limit)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(items)
	}
}

// ExportData godoc
// @Summary  Export extracted lab results
// @Tags     admin
// @Produce  json
// @Produce  text/csv
// @Security AdminToken
// @Param    format query string false "json, csv or xlsx" default(json)
// @Param    userId query string false "owner"
// @Param    from   query string false "created on or after (RFC 3339 or YYYY-MM-DD)"
// @Param    to     query string false "created before (RFC 3339 or YYYY-MM-DD)"
// @Success  200 {object} service.ExportResult
// @Failure  400 {object} apiError
// @Router   /api/admin/export [get]
func ExportData(svc service.ExportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		format := c.Query("format", "json")
		if format != "json" && format != "csv" && format != "xlsx" {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FORMAT", "format must be json, csv or xlsx")
		}

		filter := repository.ExportFilter{UserID: c.Query("userId")}
		for _, p := range []struct {
			name string
			dst  **time.Time
		}{{"from", &filter.From}, {"to", &filter.To}} {
			v := c.Query(p.name)
			if v == "" {
				continue
			}
			t, err := parseTime(v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", p.name+" must be RFC 3339 or YYYY-MM-DD")
			}
			*p.dst = &t
		}

		res, err := svc.Export(c.UserContext(), filter)
		if err != nil {
			return writeServiceError(c, err)
		}
		if format == "json" {
			return c.JSON(res)
		}

		var buf bytes.Buffer
		contentType := "text/csv; charset=utf-8"
		if format == "csv" {
			err = service.WriteCSV(&buf, res)
		} else {
			contentType = xlsxContentType
			err = service.WriteXLSX(&buf, res)
		}
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		filename := fmt.Sprintf("medical-export-%s.%s", res.ExportDate.Format(dateLayout), format)
		c.Attachment(filename)
		c.Set(fiber.HeaderContentType, contentType)
		return c.Send(buf.Bytes())
	}
}
