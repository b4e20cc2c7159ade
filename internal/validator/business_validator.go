package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/quiz-analytics-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-analytics-service/internal/models"
)

// MaxActiveSessions caps how many unfinished sessions a user may hold.
const MaxActiveSessions = 3

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates struct tags
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	if err := bv.validate.Struct(s); err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("difficulty_level", func(fl validator.FieldLevel) bool {
		switch models.DifficultyLevel(strings.ToLower(fl.Field().String())) {
		case models.DifficultyBeginner, models.DifficultyIntermediate, models.DifficultyAdvanced:
			return true
		}
		return false
	})

	bv.validate.RegisterValidation("proctoring_event_type", func(fl validator.FieldLevel) bool {
		return analytics.IsProctoringEventType(fl.Field().String())
	})

	bv.validate.RegisterValidation("mistake_type", func(fl validator.FieldLevel) bool {
		return analytics.MistakeType(fl.Field().String()).Valid()
	})
}

// ValidateSessionStart checks the request and the user's active session count.
func (bv *BusinessValidator) ValidateSessionStart(req *StartSessionRequest, activeSessions int64) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if activeSessions >= MaxActiveSessions {
		errors = append(errors, ValidationError{
			Field:   "session",
			Message: fmt.Sprintf("cannot hold more than %d active sessions", MaxActiveSessions),
			Value:   activeSessions,
			Rule:    "max_active_sessions",
		})
	}

	return errors
}

// ValidateAnswerSubmission checks an answer against the session it targets.
func (bv *BusinessValidator) ValidateAnswerSubmission(req *SubmitAnswerRequest, session *models.QuizSession) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if session.IsCompleted() {
		errors = append(errors, ValidationError{
			Field:   "session",
			Message: "is already completed",
			Value:   session.ID,
			Rule:    "session_active",
		})
	}

	inSession := false
	for _, q := range session.Questions {
		if q.QuestionID == req.QuestionID {
			inSession = true
			break
		}
	}
	if !inSession {
		errors = append(errors, ValidationError{
			Field:   "question_id",
			Message: "is not part of this session",
			Value:   req.QuestionID,
			Rule:    "question_in_session",
		})
	}

	return errors
}

// ValidateQuestionCreate requires exactly one correct option and distinct option texts,
// since answers and mistake classification match options by text.
func (bv *BusinessValidator) ValidateQuestionCreate(req *CreateQuestionRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	correct := 0
	seen := make(map[string]bool, len(req.Options))
	for i, opt := range req.Options {
		if opt.IsCorrect {
			correct++
		}
		text := strings.TrimSpace(opt.Text)
		if seen[text] {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("options[%d].text", i),
				Message: "duplicates another option",
				Value:   opt.Text,
				Rule:    "distinct_options",
			})
		}
		seen[text] = true
	}
	if len(req.Options) > 0 && correct != 1 {
		errors = append(errors, ValidationError{
			Field:   "options",
			Message: "must contain exactly one correct option",
			Value:   correct,
			Rule:    "single_correct_option",
		})
	}

	return errors
}
