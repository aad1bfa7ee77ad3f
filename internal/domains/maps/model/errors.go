package model

import (
	"errors"
	"net/http"

	"mapvault-backend/internal/shared/response"
	"mapvault-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

var (
	// Domain errors. These propagate unchanged from repository to handler.
	ErrMapNotFound  = errors.New("map not found")
	ErrMapNameTaken = errors.New("map name already exists")
	// ErrPendingLimit is a conflict subtype: the submitter already holds the
	// maximum number of maps in pending status.
	ErrPendingLimit   = errors.New("pending map submission limit reached")
	ErrMapNotUploaded = errors.New("map has no uploaded file")
	ErrEmptyFile      = errors.New("uploaded file is empty")
	ErrFileTooLarge   = errors.New("uploaded file exceeds maximum size")

	// ErrStorage marks infrastructure failures (connection loss, timeouts).
	// Distinct from domain errors so callers can decide what to retry.
	ErrStorage = errors.New("map storage failure")
)

var mapErrorTable = []struct {
	Err     error
	Status  int
	Code    string
	Message string
}{
	{ErrMapNotFound, http.StatusNotFound, "MAP_NOT_FOUND", "The specified map does not exist"},
	{ErrMapNameTaken, http.StatusConflict, "MAP_NAME_TAKEN", "A map with this name already exists"},
	{ErrPendingLimit, http.StatusConflict, "PENDING_LIMIT_REACHED", "You have reached the pending map submission limit"},
	{ErrMapNotUploaded, http.StatusNotFound, "MAP_FILE_NOT_AVAILABLE", "This map has no uploaded file yet"},
	{ErrEmptyFile, http.StatusBadRequest, "EMPTY_FILE", "The uploaded file is empty"},
	{ErrFileTooLarge, http.StatusBadRequest, "FILE_TOO_LARGE", "The uploaded file exceeds the maximum allowed size"},
}

// HandleMapError writes the HTTP mapping for a map error and reports whether
// err was handled. Unknown errors (including ErrStorage) become a 500 without
// leaking internals.
func HandleMapError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	for _, entry := range mapErrorTable {
		if errors.Is(err, entry.Err) {
			response.ErrorResponse(c, entry.Status, entry.Code, entry.Message)
			return true
		}
	}

	logger.Error("unhandled map error", err)
	response.InternalServerError(c, "Internal server error")
	return true
}
