package handler

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"mapvault-backend/internal/domains/maps/model"
	"mapvault-backend/internal/domains/maps/service"
	"mapvault-backend/internal/shared/middleware"
	"mapvault-backend/internal/shared/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler - HTTP adapter over the map service. Decodes requests, enforces
// nothing beyond input shape; business rules live in the service.
type Handler struct {
	service       service.MapService
	maxUploadSize int64
}

// NewHandler - Constructor with DI
func NewHandler(service service.MapService, maxUploadSize int64) *Handler {
	return &Handler{
		service:       service,
		maxUploadSize: maxUploadSize,
	}
}

// ListMaps - GET /v1/maps
// Query params: skip, take, expand, search, submitterID, type,
// difficultyLow, difficultyHigh, isLinear
func (h *Handler) ListMaps(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	req := model.ListMapsRequest{
		Skip:   0,
		Take:   20,
		Expand: c.Query("expand"),
		Search: c.Query("search"),
		Type:   c.Query("type"),
	}

	if skipStr := c.Query("skip"); skipStr != "" {
		v, err := strconv.Atoi(skipStr)
		if err != nil {
			response.BadRequest(c, "skip must be an integer")
			return
		}
		req.Skip = v
	}
	if takeStr := c.Query("take"); takeStr != "" {
		v, err := strconv.Atoi(takeStr)
		if err != nil {
			response.BadRequest(c, "take must be an integer")
			return
		}
		req.Take = v
	}
	if submitterStr := c.Query("submitterID"); submitterStr != "" {
		submitterID, err := uuid.Parse(submitterStr)
		if err != nil {
			response.BadRequest(c, "submitterID must be a UUID")
			return
		}
		req.SubmitterID = &submitterID
	}
	if lowStr := c.Query("difficultyLow"); lowStr != "" {
		v, err := strconv.Atoi(lowStr)
		if err != nil {
			response.BadRequest(c, "difficultyLow must be an integer")
			return
		}
		req.DifficultyLow = &v
	}
	if hiStr := c.Query("difficultyHigh"); hiStr != "" {
		v, err := strconv.Atoi(hiStr)
		if err != nil {
			response.BadRequest(c, "difficultyHigh must be an integer")
			return
		}
		req.DifficultyHi = &v
	}
	if linearStr := c.Query("isLinear"); linearStr != "" {
		v, err := strconv.ParseBool(linearStr)
		if err != nil {
			response.BadRequest(c, "isLinear must be a boolean")
			return
		}
		req.IsLinear = &v
	}

	if err := req.Validate(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.GetAll(c.Request.Context(), userID, req)
	if model.HandleMapError(c, err) {
		return
	}

	response.Success(c, http.StatusOK, result)
}

// CreateMap - POST /v1/maps
// Requires the mapper role (checked by middleware before this runs).
// Responds 204 with a Location header pointing at the upload endpoint; the
// frontend reads that header and POSTs the file there.
func (h *Handler) CreateMap(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req model.CreateMapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_FAILED", "map object is invalid", err.Error())
		return
	}

	mapID, err := h.service.Create(c.Request.Context(), req, userID)
	if model.HandleMapError(c, err) {
		return
	}

	c.Header("Location", fmt.Sprintf("/api/v1/maps/%s/upload", mapID))
	c.Status(http.StatusNoContent)
}

// GetMap - GET /v1/maps/:mapID
func (h *Handler) GetMap(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	mapID, err := uuid.Parse(c.Param("mapID"))
	if err != nil {
		response.BadRequest(c, "mapID must be a UUID")
		return
	}

	expand := model.ParseExpand(c.Query("expand"))

	m, err := h.service.Get(c.Request.Context(), mapID, userID, expand)
	if model.HandleMapError(c, err) {
		return
	}

	response.Success(c, http.StatusOK, m)
}

// UploadMap - POST /v1/maps/:mapID/upload
// Multipart payload with a single "file" field.
func (h *Handler) UploadMap(c *gin.Context) {
	mapID, err := uuid.Parse(c.Param("mapID"))
	if err != nil {
		response.BadRequest(c, "mapID must be a UUID")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "multipart file field is required")
		return
	}

	if fileHeader.Size > h.maxUploadSize {
		model.HandleMapError(c, model.ErrFileTooLarge)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.BadRequest(c, "could not read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		response.BadRequest(c, "could not read uploaded file")
		return
	}
	if int64(len(data)) > h.maxUploadSize {
		model.HandleMapError(c, model.ErrFileTooLarge)
		return
	}

	m, err := h.service.Upload(c.Request.Context(), mapID, data)
	if model.HandleMapError(c, err) {
		return
	}

	response.Success(c, http.StatusOK, m)
}

// DownloadMap - GET /v1/maps/:mapID/download
// Streams the stored binary back to the client.
func (h *Handler) DownloadMap(c *gin.Context) {
	mapID, err := uuid.Parse(c.Param("mapID"))
	if err != nil {
		response.BadRequest(c, "mapID must be a UUID")
		return
	}

	data, m, err := h.service.Download(c.Request.Context(), mapID)
	if model.HandleMapError(c, err) {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.bsp"`, m.Name))
	c.Data(http.StatusOK, "application/octet-stream", data)
}
