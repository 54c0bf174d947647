package httpserver

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/trendloom/harvester/internal/domain"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidatePlatform validates a platform path parameter against the known set.
func ValidatePlatform(platform string) ValidationResult {
	if platform == "" {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: "platform", Code: "REQUIRED", Message: "Platform is required"},
			},
		}
	}
	for _, p := range domain.AllPlatforms() {
		if string(p) == platform {
			return ValidationResult{Valid: true}
		}
	}
	return ValidationResult{
		Valid: false,
		Errors: []ValidationError{
			{Field: "platform", Code: "INVALID_VALUE", Message: "Platform must be one of the configured sources"},
		},
	}
}

// ValidateFrequencyHours validates a scheduler frequency, which must fall in
// [0.5, 24] per the persisted scheduler_settings check constraint.
func ValidateFrequencyHours(hours float64) ValidationResult {
	if hours < 0.5 || hours > 24 {
		return ValidationResult{
			Valid: false,
			Errors: []ValidationError{
				{Field: "frequency_hours", Code: "OUT_OF_RANGE", Message: "frequency_hours must be between 0.5 and 24"},
			},
		}
	}
	return ValidationResult{Valid: true}
}

// ValidatePagination validates pagination parameters
func ValidatePagination(page, limit string) ValidationResult {
	var errs []ValidationError

	if page != "" {
		pageNum, err := strconv.Atoi(page)
		if err != nil || pageNum < 1 {
			errs = append(errs, ValidationError{
				Field:   "page",
				Code:    "INVALID_FORMAT",
				Message: "Page must be a positive integer",
			})
		}
	}

	if limit != "" {
		limitNum, err := strconv.Atoi(limit)
		if err != nil || limitNum < 1 || limitNum > 100 {
			errs = append(errs, ValidationError{
				Field:   "limit",
				Code:    "INVALID_FORMAT",
				Message: "Limit must be between 1 and 100",
			})
		}
	}

	if len(errs) > 0 {
		return ValidationResult{Valid: false, Errors: errs}
	}
	return ValidationResult{Valid: true}
}

// ValidateRunStatus validates a run status filter against known RunStatus values.
func ValidateRunStatus(status string) ValidationResult {
	if status == "" {
		return ValidationResult{Valid: true}
	}
	valid := []domain.RunStatus{
		domain.RunRunning, domain.RunCompleted, domain.RunCompletedWithWarnings,
		domain.RunFailed, domain.RunCancelled,
	}
	for _, v := range valid {
		if status == string(v) {
			return ValidationResult{Valid: true}
		}
	}
	return ValidationResult{
		Valid: false,
		Errors: []ValidationError{
			{Field: "status", Code: "INVALID_VALUE", Message: "Status must be one of: running, completed, completed_with_warnings, failed, cancelled"},
		},
	}
}

// SanitizeString sanitizes a string input
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	input = strings.TrimSpace(input)
	if len(input) > 1000 {
		input = input[:1000]
	}
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	return input
}

// SanitizePlatform sanitizes a platform path parameter.
func SanitizePlatform(platform string) string {
	platform = regexp.MustCompile(`[^a-z0-9_-]`).ReplaceAllString(strings.ToLower(platform), "")
	if len(platform) > 50 {
		platform = platform[:50]
	}
	return platform
}
