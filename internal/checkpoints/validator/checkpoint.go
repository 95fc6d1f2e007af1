package validator

import (
	"errors"
	"fmt"
	"strings"

	"fleetshare/pkg/logger"
	"fleetshare/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type CheckpointValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewCheckpointValidator(log *logger.Logger) *CheckpointValidator {
	v := validator.New()

	log.Info("Checkpoint validator initialized successfully")

	return &CheckpointValidator{
		validate: v,
		logger:   log,
	}
}

func (v *CheckpointValidator) ValidateIssue(req *model.CheckpointIssueRequest) error {
	return v.validateStruct(req)
}

func (v *CheckpointValidator) ValidateScan(req *model.CheckpointScanRequest) error {
	return v.validateStruct(req)
}

func (v *CheckpointValidator) ValidateSign(req *model.CheckpointSignRequest) error {
	return v.validateStruct(req)
}

func (v *CheckpointValidator) ValidateComplete(req *model.CheckpointCompleteRequest) error {
	return v.validateStruct(req)
}

func (v *CheckpointValidator) validateStruct(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *CheckpointValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "base64":
			message = fmt.Sprintf("%s must be base64 encoded", err.Field())
		case "latitude", "longitude":
			message = fmt.Sprintf("%s must be a valid coordinate", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
