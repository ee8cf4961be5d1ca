package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	valid := []string{"*/5 * * * *", "0 * * * *", "30 9 * * 1-5", "0 0 1 * *"}
	for _, s := range valid {
		assert.NoError(t, ValidateCronSchedule(s), s)
	}

	invalid := []string{"", "every five minutes", "* * * *", "0 0 0 * * *", "61 * * * *"}
	for _, s := range invalid {
		assert.Error(t, ValidateCronSchedule(s), s)
	}
}

func TestValidateTimezone(t *testing.T) {
	for _, tz := range []string{"UTC", "Europe/Berlin", "America/New_York"} {
		assert.NoError(t, ValidateTimezone(tz), tz)
	}
	for _, tz := range []string{"", "Mars/Olympus", "GMT+25"} {
		assert.Error(t, ValidateTimezone(tz), tz)
	}
}

func TestValidateDuration(t *testing.T) {
	tests := []struct {
		name    string
		d       time.Duration
		min     time.Duration
		max     time.Duration
		wantErr string
	}{
		{"inside", 10 * time.Second, 0, 20 * time.Second, ""},
		{"at minimum", 0, 0, 20 * time.Second, ""},
		{"at maximum", 20 * time.Second, 0, 20 * time.Second, ""},
		{"below", time.Second, 5 * time.Second, time.Minute, "below minimum"},
		{"above", 21 * time.Second, 0, 20 * time.Second, "exceeds maximum"},
		{"inverted range", time.Second, time.Minute, time.Second, "invalid range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDuration(tt.d, tt.min, tt.max)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(1, 1, 10))
	assert.NoError(t, ValidateIntRange(10, 1, 10))
	assert.ErrorContains(t, ValidateIntRange(0, 1, 10), "below minimum")
	assert.ErrorContains(t, ValidateIntRange(11, 1, 10), "exceeds maximum")
	assert.ErrorContains(t, ValidateIntRange(5, 10, 1), "invalid range")
}

func TestValidateFloatRange(t *testing.T) {
	assert.NoError(t, ValidateFloatRange(0.5, 0.1, 100))
	assert.ErrorContains(t, ValidateFloatRange(0, 0.1, 100), "below minimum")
	assert.ErrorContains(t, ValidateFloatRange(101, 0.1, 100), "exceeds maximum")
	assert.ErrorContains(t, ValidateFloatRange(1, 2, 1), "invalid range")
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
	assert.ErrorContains(t, ValidatePositiveDuration(0), "must be positive")
	assert.ErrorContains(t, ValidatePositiveDuration(-time.Second), "must be positive")
}

func TestValidateOneOf(t *testing.T) {
	assert.NoError(t, ValidateOneOf("aws", "aws", "log"))
	assert.ErrorContains(t, ValidateOneOf("smtp", "aws", "log"), "must be one of [aws log]")
}

func TestValidateHTTPURL(t *testing.T) {
	valid := []string{
		"https://sqs.us-east-1.amazonaws.com/123456789012/notifications",
		"http://localhost:4566/000000000000/notifications",
	}
	for _, u := range valid {
		assert.NoError(t, ValidateHTTPURL(u), u)
	}

	invalid := []string{"notifications", "ftp://example.com/q", "https://", "://bad"}
	for _, u := range invalid {
		assert.Error(t, ValidateHTTPURL(u), u)
	}
}

func TestValidateARN(t *testing.T) {
	tests := []struct {
		name    string
		arn     string
		service string
		wantErr bool
	}{
		{"sns topic", "arn:aws:sns:us-east-1:123456789012:push", "sns", false},
		{"ses identity", "arn:aws:ses:us-east-1:123456789012:identity/example.com", "ses", false},
		{"any service", "arn:aws:sqs:us-east-1:123456789012:q", "", false},
		{"wrong service", "arn:aws:sqs:us-east-1:123456789012:q", "sns", true},
		{"not an arn", "topic/push", "sns", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateARN(tt.arn, tt.service)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
