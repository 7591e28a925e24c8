package daemon

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"lecturenote/internal/api"
	"lecturenote/internal/blobstore"
	"lecturenote/internal/services"
)

func (s *apiServer) handleNote(c *fiber.Ctx) error {
	task, err := s.tasks.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	note, err := api.FromNote(task, s.signer, s.ttl)
	if err != nil {
		return err
	}
	return c.JSON(note)
}

// handleNoteDownload signs the rendered markdown, or the DOCX with
// ?format=docx when one was produced.
func (s *apiServer) handleNoteDownload(c *fiber.Ctx) error {
	task, err := s.tasks.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	note, ok := task.Note()
	if !ok {
		return services.Wrap(services.ErrInvalidState, "api", "download", "note for task "+task.ID+" is not ready", nil)
	}
	key, ext := note.MarkdownKey, ".md"
	if c.Query("format") == "docx" {
		if note.DocxKey == "" {
			return services.Wrap(services.ErrNotFound, "api", "download", "no docx was rendered for task "+task.ID, nil)
		}
		key, ext = note.DocxKey, ".docx"
	}
	if key == "" {
		key = blobstore.NoteMarkdownKey(task.ID)
	}
	filename := api.NoteFilename(task.ID, ext)
	signed, err := s.signer.Sign(http.MethodGet, key, s.ttl, filename)
	if err != nil {
		return err
	}
	return c.JSON(api.NoteDownloadResponse{
		DownloadURL: signed.URL,
		Filename:    filename,
		ExpiresAt:   signed.ExpiresAt,
	})
}

func (s *apiServer) handleSlideImage(c *fiber.Ctx) error {
	number, err := c.ParamsInt("n")
	if err != nil || number < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "slide number must be a positive integer")
	}
	task, err := s.tasks.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	signed, err := s.signer.Sign(http.MethodGet, blobstore.SlideImageKey(task.ID, number), s.ttl, "")
	if err != nil {
		return err
	}
	return c.JSON(api.SlideImageResponse{ImageURL: signed.URL, ExpiresAt: signed.ExpiresAt})
}

func (s *apiServer) handleRegenerate(c *fiber.Ctx) error {
	task, err := s.tasks.StartRegenerate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(api.FromTask(task))
}
