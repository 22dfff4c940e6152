package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"bookreview-backend/internal/domains/book/model"
	"bookreview-backend/internal/shared/middleware"
	"bookreview-backend/internal/shared/response"
)

// statusRule maps a sentinel to an HTTP status. Each operation has its own
// table; the first rule matched by errors.Is wins, otherwise the fallback applies.
type statusRule struct {
	err    error
	status int
}

var (
	readRules = []statusRule{
		{model.ErrBookNotFound, http.StatusNotFound},
	}

	updateRules = []statusRule{
		{model.ErrBookNotFound, http.StatusNotFound},
		{model.ErrNotOwner, http.StatusForbidden},
	}

	deleteRules = []statusRule{
		{model.ErrBookNotFound, http.StatusNotFound},
		{model.ErrNotOwner, http.StatusForbidden},
		{model.ErrLookupFailed, http.StatusInternalServerError},
	}

	ratingRules = []statusRule{
		{model.ErrBookNotFound, http.StatusNotFound},
		{model.ErrLookupFailed, http.StatusInternalServerError},
		{model.ErrRatingConflict, http.StatusConflict},
	}
)

func statusFor(err error, rules []statusRule, fallback int) int {
	for _, rule := range rules {
		if errors.Is(err, rule.err) {
			return rule.status
		}
	}
	return fallback
}

// internalErrors carry driver or storage detail; clients only see the sentinel text.
var internalErrors = []error{
	model.ErrLookupFailed,
	model.ErrPersistFailed,
	model.ErrBlobStore,
}

// clientMessage is the text placed in the response body for err.
func clientMessage(err error, status int) string {
	for _, sentinel := range internalErrors {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

// respondError writes the mapped status and the {"error","code"} body.
// The full error goes to the log only.
func respondError(c *gin.Context, err error, rules []statusRule) {
	status := statusFor(err, rules, http.StatusBadRequest)
	message := clientMessage(err, status)

	if message != err.Error() {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestIDKey)).
			Str("path", c.FullPath()).
			Int("status", status).
			Msg("Book request failed")
	}

	_ = c.Error(err)
	response.Error(c, status, model.ErrorCode(err), message)
}
