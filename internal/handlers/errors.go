package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/admin"
	"property-marketplace/internal/appointment"
	"property-marketplace/internal/approval"
	"property-marketplace/internal/auth"
	"property-marketplace/internal/database"
	"property-marketplace/internal/importer"
	"property-marketplace/internal/storage"
	"property-marketplace/internal/submission"
	"property-marketplace/internal/tokens"
)

var registerTagNameOnce sync.Once

// useJSONFieldNames makes validation errors report json field names
func useJSONFieldNames() {
	registerTagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
}

// bindJSON binds the body and writes a 400 with field messages on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondValidation(c, err)
		return false
	}
	return true
}

func respondValidation(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe)] = fieldMessage(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

// fieldPath drops the top-level struct name from the namespace
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "url":
		return "must be a valid URL"
	}
	return "is invalid"
}

// respondError maps domain errors to status codes. Unknown errors are logged
// and reported generically.
func respondError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "something went wrong, please try again"

	switch {
	case errors.Is(err, database.ErrNotFound):
		status, msg = http.StatusNotFound, "not found"
	case errors.Is(err, database.ErrDuplicate):
		status, msg = http.StatusConflict, "already exists"
	case errors.Is(err, approval.ErrNotPending),
		errors.Is(err, admin.ErrNotPending),
		errors.Is(err, admin.ErrApplicationPending),
		errors.Is(err, admin.ErrAlreadyAdmin),
		errors.Is(err, appointment.ErrInvalidTransition),
		errors.Is(err, auth.ErrEmailTaken):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, submission.ErrForbidden),
		errors.Is(err, appointment.ErrNotAllowed):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, submission.ErrQuotaExceeded):
		status, msg = http.StatusTooManyRequests, err.Error()
	case errors.Is(err, submission.ErrInvalidDraft),
		errors.Is(err, tokens.ErrInvalidAmount),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidResetToken),
		errors.Is(err, admin.ErrEmptyReason),
		errors.Is(err, appointment.ErrPastTime),
		errors.Is(err, appointment.ErrNotBookable),
		errors.Is(err, storage.ErrUnsupportedType):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, importer.ErrInvalidURL):
		// the wrapped detail names resolved addresses
		status, msg = http.StatusBadRequest, importer.ErrInvalidURL.Error()
	case errors.Is(err, storage.ErrTooLarge):
		status, msg = http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, importer.ErrCircuitOpen):
		status, msg = http.StatusServiceUnavailable, err.Error()
	}

	if status == http.StatusInternalServerError {
		log.WithFields(log.Fields{"path": c.FullPath(), "method": c.Request.Method}).
			Errorf("[API] Request failed: %v", err)
	}
	c.JSON(status, gin.H{"error": msg})
}
