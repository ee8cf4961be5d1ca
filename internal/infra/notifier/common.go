package notifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ProviderError is a delivery-provider failure classified as transient
// (worth another attempt) or permanent (will never succeed as sent).
type ProviderError struct {
	Provider  string // "ses", "sns", ...
	Code      string // provider error code when known
	Message   string
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s %s error: %s: %s", e.Provider, kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s error: %s", e.Provider, kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// permanentCodes are AWS error codes for requests that will fail the same way
// every time: bad input, rejected content, opted-out or disabled endpoints
// and bad credentials.
var permanentCodes = map[string]bool{
	"AccessDenied":                       true,
	"AccessDeniedException":              true,
	"AuthorizationError":                 true,
	"AuthorizationErrorException":        true,
	"InvalidParameter":                   true,
	"InvalidParameterException":          true,
	"InvalidParameterValue":              true,
	"InvalidParameterValueException":     true,
	"ValidationError":                    true,
	"MessageRejected":                    true,
	"MailFromDomainNotVerified":          true,
	"MailFromDomainNotVerifiedException": true,
	"ConfigurationSetDoesNotExist":       true,
	"OptedOut":                           true,
	"OptedOutException":                  true,
	"EndpointDisabled":                   true,
	"EndpointDisabledException":          true,
	"PlatformApplicationDisabled":        true,
	"NotFound":                           true,
	"NotFoundException":                  true,
	"InvalidClientTokenId":               true,
	"UnrecognizedClientException":        true,
	"SignatureDoesNotMatch":              true,
	"IncompleteSignature":                true,
	"MissingAuthenticationToken":         true,
}

// transientCodes are throttling and service-side availability errors.
var transientCodes = map[string]bool{
	"Throttling":                  true,
	"ThrottlingException":         true,
	"ThrottledException":          true,
	"TooManyRequestsException":    true,
	"RequestLimitExceeded":        true,
	"MaxSendRateExceeded":         true,
	"KMSThrottlingException":      true,
	"ServiceUnavailable":          true,
	"ServiceUnavailableException": true,
	"InternalFailure":             true,
	"InternalError":               true,
	"InternalErrorException":      true,
	"RequestTimeout":              true,
	"RequestTimeoutException":     true,
	"ExpiredToken":                true,
	"ExpiredTokenException":       true,
}

// Classify maps err from provider into a ProviderError. Errors that cannot be
// identified are treated as transient.
func Classify(provider string, err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}

	out := &ProviderError{Provider: provider, Message: err.Error(), Transient: true, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.ErrorCode()
		out.Message = apiErr.ErrorMessage()
		switch {
		case permanentCodes[out.Code]:
			out.Transient = false
			return out
		case transientCodes[out.Code], apiErr.ErrorFault() == smithy.FaultServer:
			return out
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == 429, status >= 500:
			return out
		case status == 401 || status == 403:
			out.Transient = false
			return out
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return out
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return out
	}
	if strings.Contains(strings.ToLower(out.Message), "opted out") {
		out.Transient = false
	}
	return out
}

// Permanent builds a non-retryable ProviderError for input the sender rejects
// before calling the provider.
func Permanent(provider, code, message string) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Message: message}
}
