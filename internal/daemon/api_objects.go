package daemon

import (
	"bytes"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"lecturenote/internal/logging"
)

// handleObjectGet serves an object to the holder of a signed GET URL.
func (s *apiServer) handleObjectGet(c *fiber.Ctx) error {
	key := c.Params("*")
	filename := c.Query("filename")
	if err := s.signer.Verify(http.MethodGet, key, c.Query("expires"), c.Query("sig"), filename); err != nil {
		return err
	}
	path, err := s.objects.Path(key)
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fiber.NewError(fiber.StatusNotFound, "object not found")
		}
		return err
	}
	body, err := s.objects.Get(c.UserContext(), key)
	if err != nil {
		return err
	}
	if filename != "" {
		c.Attachment(filename)
	}
	c.Type(filepath.Ext(key))
	return c.SendStream(body, int(info.Size()))
}

// handleObjectPut stores the body for the holder of a signed PUT URL.
func (s *apiServer) handleObjectPut(c *fiber.Ctx) error {
	key := c.Params("*")
	if err := s.signer.Verify(http.MethodPut, key, c.Query("expires"), c.Query("sig"), ""); err != nil {
		return err
	}
	size, err := s.objects.Put(c.UserContext(), key, bytes.NewReader(c.Body()))
	if err != nil {
		return err
	}
	s.logger.Info("object uploaded",
		logging.String(logging.FieldEventType, "object_uploaded"),
		logging.String("key", key),
		logging.Int64("size_bytes", size),
	)
	return c.SendStatus(fiber.StatusNoContent)
}
