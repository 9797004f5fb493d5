package handlers

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/core/services"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

type DatasetHandler struct {
	service ports.DatasetService
	logger  *logger.Logger
}

func NewDatasetHandler(service ports.DatasetService, logger *logger.Logger) *DatasetHandler {
	return &DatasetHandler{
		service: service,
		logger:  logger,
	}
}

// UploadDataset accepts a multipart upload. The file goes under the
// "file" field; name, format and description are optional form values
// (name defaults to the uploaded filename).
func (h *DatasetHandler) UploadDataset(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "A file upload is required",
		})
	}

	name := c.FormValue("name")
	if name == "" {
		name = file.Filename
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Errorw("upload open failed", "filename", file.Filename, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "Failed to read the upload",
		})
	}
	defer src.Close()

	dataset, err := h.service.UploadDataset(c.UserContext(), ports.UploadDatasetInput{
		Name:        name,
		Format:      c.FormValue("format"),
		Description: c.FormValue("description"),
		Size:        file.Size,
		Content:     src,
	})
	if err != nil {
		return h.datasetError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.DatasetToResponse(dataset))
}

// GetDatasets lists all datasets, alphabetically.
func (h *DatasetHandler) GetDatasets(c *fiber.Ctx) error {
	datasets, err := h.service.GetDatasets(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(fiber.Map{
		"datasets": dto.DatasetsToResponse(datasets),
		"count":    len(datasets),
	})
}

// GetDataset returns one dataset's metadata.
func (h *DatasetHandler) GetDataset(c *fiber.Ctx) error {
	id, ok := datasetID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "Invalid dataset id"})
	}

	dataset, err := h.service.GetDatasetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "Dataset not found"})
	}
	return c.JSON(dto.DatasetToResponse(dataset))
}

// UpdateDataset renames a dataset or changes its description. The file
// content is immutable; re-upload under the same name to replace it.
func (h *DatasetHandler) UpdateDataset(c *fiber.Ctx) error {
	id, ok := datasetID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "Invalid dataset id"})
	}

	var req dto.UpdateDatasetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Invalid request body",
		})
	}

	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "Validation failed",
			Details: errs,
		})
	}

	dataset, err := h.service.UpdateDataset(c.UserContext(), id, ports.UpdateDatasetInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return h.datasetError(c, err)
	}
	return c.JSON(dto.DatasetToResponse(dataset))
}

// DeleteDataset removes a dataset and its stored file.
func (h *DatasetHandler) DeleteDataset(c *fiber.Ctx) error {
	id, ok := datasetID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "Invalid dataset id"})
	}

	if err := h.service.DeleteDataset(c.UserContext(), id); err != nil {
		return h.datasetError(c, err)
	}
	return c.JSON(dto.SuccessResponse{Message: "Dataset deleted"})
}

// DownloadDataset streams the stored file back to the browser.
func (h *DatasetHandler) DownloadDataset(c *fiber.Ctx) error {
	id, ok := datasetID(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "Invalid dataset id"})
	}

	dataset, reader, err := h.service.OpenDataset(c.UserContext(), id)
	if err != nil {
		return h.datasetError(c, err)
	}

	c.Attachment(fmt.Sprintf("%s.%s", dataset.Name, dataset.Format))
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.SendStream(reader, int(dataset.SizeBytes))
}

func (h *DatasetHandler) datasetError(c *fiber.Ctx, err error) error {
	switch err {
	case services.ErrDatasetNotFound:
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "Dataset not found",
		})
	case services.ErrDatasetExists:
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: "A dataset with this name already exists",
		})
	case services.ErrDatasetInvalidInput:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Invalid dataset input",
		})
	case services.ErrDatasetTooLarge:
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{
			Error: "Upload exceeds the configured size limit",
		})
	default:
		h.logger.Errorw("unexpected dataset error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}
}

func datasetID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
