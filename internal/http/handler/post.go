package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"nutrilab/internal/model"
	"nutrilab/internal/service"
)

// dateLayout is accepted alongside RFC 3339 wherever a date is parsed.
const dateLayout = "2006-01-02"

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(dateLayout, s)
}

// postID validates the :id path parameter.
func postID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

// ListPosts godoc
// @Summary  List posts
// @Tags     posts
// @Produce  json
// @Param    limit     query int    false "page size" default(10)
// @Param    offset    query int    false "offset"    default(0)
// @Param    kind      query string false "image or document"
// @Param    processed query bool   false "processing state"
// @Param    userId    query string false "owner"
// @Success  200 {object} service.PostListResult
// @Failure  400 {object} apiError
// @Router   /api/posts [get]
func ListPosts(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		filter := service.ListFilter{Limit: limit, Offset: offset, UserID: c.Query("userId")}
		if v := c.Query("kind"); v != "" {
			kind, err := model.ParseKind(v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_KIND", "kind must be image or document")
			}
			filter.Kind = kind
		}
		if v := c.Query("processed"); v != "" {
			processed, err := strconv.ParseBool(v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_PROCESSED", "processed must be true or false")
			}
			filter.Processed = &processed
		}

		res, err := svc.List(c.UserContext(), filter)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadPost godoc
// @Summary  Upload a lab report or meal photo
// @Tags     posts
// @Accept   multipart/form-data
// @Produce  json
// @Param    file       formData file   true  "content"
// @Param    title      formData string false "defaults to the file name"
// @Param    kind       formData string false "image or document; guessed from the content type when empty"
// @Param    userId     formData string false "owner"
// @Param    testId     formData string false "lab test identifier"
// @Param    happenedAt formData string false "RFC 3339 or YYYY-MM-DD"
// @Success  201 {object} model.Post
// @Failure  400 {object} apiError
// @Router   /api/posts [post]
func UploadPost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		kind := model.Kind(c.FormValue("kind"))
		if kind == "" {
			kind = model.KindDocument
			if strings.HasPrefix(ct, "image/") {
				kind = model.KindImage
			}
		}

		var happenedAt *time.Time
		if v := c.FormValue("happenedAt"); v != "" {
			t, err := parseTime(v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_DATE", "happenedAt must be RFC 3339 or YYYY-MM-DD")
			}
			happenedAt = &t
		}

		userID := c.FormValue("userId")
		if userID != "" {
			if _, err := uuid.Parse(userID); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_USER_ID", "invalid userId format")
			}
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		post, err := svc.Upload(c.UserContext(), service.UploadInput{
			Reader:      f,
			Filename:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
			Title:       c.FormValue("title"),
			Kind:        kind,
			UserID:      userID,
			TestID:      c.FormValue("testId"),
			HappenedAt:  happenedAt,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(post)
	}
}

// GetPost godoc
// @Summary  Get a post with its extracted data
// @Tags     posts
// @Produce  json
// @Param    id path string true "post ID"
// @Success  200 {object} model.Post
// @Failure  404 {object} apiError
// @Router   /api/posts/{id} [get]
func GetPost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := postID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		post, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(post)
	}
}

// DownloadPost godoc
// @Summary  Redirect to a short-lived download link
// @Tags     posts
// @Param    id path string true "post ID"
// @Success  302
// @Failure  404 {object} apiError
// @Failure  409 {object} apiError
// @Router   /api/posts/{id}/download [get]
func DownloadPost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := postID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		url, err := svc.DownloadURL(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Redirect(url, fiber.StatusFound)
	}
}

// DeletePost godoc
// @Summary  Delete a post and its stored content
// @Tags     posts
// @Param    id path string true "post ID"
// @Success  204
// @Failure  404 {object} apiError
// @Router   /api/posts/{id} [delete]
func DeletePost(svc service.PostService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := postID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
