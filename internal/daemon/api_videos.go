package daemon

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"lecturenote/internal/api"
	"lecturenote/internal/tasks"
	"lecturenote/internal/workflow"
)

func (s *apiServer) handleListTasks(c *fiber.Ctx) error {
	var statuses []tasks.Status
	for _, value := range strings.Split(c.Query("status"), ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		status, ok := tasks.ParseStatus(value)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "unknown status "+value)
		}
		statuses = append(statuses, status)
	}
	list, err := s.tasks.List(c.UserContext(), statuses...)
	if err != nil {
		return err
	}
	return c.JSON(api.FromTasks(list))
}

func (s *apiServer) handleUploadURL(c *fiber.Ctx) error {
	var req api.UploadURLRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if req.ContentType == "" {
		req.ContentType = "video/mp4"
	}
	task, err := s.tasks.CreatePendingUpload(c.UserContext(), req.Filename, req.Title, req.ContentType)
	if err != nil {
		return err
	}
	signed, err := s.signer.Sign(http.MethodPut, task.Source.VideoKey, s.ttl, "")
	if err != nil {
		return err
	}
	return c.JSON(api.UploadURLResponse{
		TaskID:    task.ID,
		UploadURL: signed.URL,
		Method:    signed.Method,
		VideoKey:  task.Source.VideoKey,
		ExpiresAt: signed.ExpiresAt,
	})
}

func (s *apiServer) handleUpload(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
	}
	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	task, err := s.tasks.CreateUpload(c.UserContext(), workflow.UploadRequest{
		Filename:    header.Filename,
		Title:       c.FormValue("title"),
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Body:        file,
	})
	if err != nil {
		return err
	}
	return c.JSON(api.UploadResponse{
		TaskID:    task.ID,
		VideoKey:  task.Source.VideoKey,
		Status:    string(task.Status()),
		SizeBytes: task.Source.SizeBytes,
	})
}

func (s *apiServer) handleFetch(c *fiber.Ctx) error {
	var req api.FetchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if err := req.Options.Validate(); err != nil {
		return err
	}
	task, err := s.tasks.CreateRemote(c.UserContext(), workflow.RemoteRequest{
		URL:         req.URL,
		Title:       req.Title,
		AutoProcess: req.AutoProcess,
		Request:     req.Request(),
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(api.FromTask(task))
}

func (s *apiServer) handleConfirmUpload(c *fiber.Ctx) error {
	task, err := s.tasks.ConfirmUpload(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(api.ConfirmUploadResponse{
		TaskID:   task.ID,
		VideoKey: task.Source.VideoKey,
		Status:   string(task.Status()),
	})
}

func (s *apiServer) handleProcess(c *fiber.Ctx) error {
	var req api.ProcessRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
		}
	}
	if err := req.Options.Validate(); err != nil {
		return err
	}
	task, err := s.tasks.StartProcessing(c.UserContext(), c.Params("id"), req.Request())
	if err != nil {
		return err
	}
	return c.JSON(api.ProcessResponse{
		TaskID:           task.ID,
		Status:           string(task.Status()),
		EstimatedTimeSec: workflow.EstimatedProcessingSeconds,
	})
}

func (s *apiServer) handleSynthesize(c *fiber.Ctx) error {
	task, err := s.tasks.StartSynthesis(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(api.FromTask(task))
}

func (s *apiServer) handleTaskStatus(c *fiber.Ctx) error {
	task, err := s.tasks.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(api.FromTask(task))
}

func (s *apiServer) handleStatus(c *fiber.Ctx) error {
	return c.JSON(api.FromStatusSummary(s.tasks.Status(c.UserContext())))
}

func (s *apiServer) handleHealth(c *fiber.Ctx) error {
	summary := s.tasks.Status(c.UserContext())
	stages := api.StageHealthSlice(summary.StageHealth)
	status := "healthy"
	for _, h := range stages {
		if !h.Ready {
			status = "unhealthy"
			break
		}
	}
	return c.JSON(api.HealthResponse{Status: status, Stages: stages})
}
