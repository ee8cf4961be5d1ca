package entity

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	validation "github.com/jellydator/validation"
	"github.com/jellydator/validation/is"
)

const (
	// maxSubjectLength is the SES subject limit we enforce before calling the provider.
	maxSubjectLength = 998
	// maxBodyLength keeps bodies within the SQS message size limit.
	maxBodyLength = 256 * 1024
	// minDeviceTokenLength and maxDeviceTokenLength bound raw push tokens.
	minDeviceTokenLength = 8
	maxDeviceTokenLength = 4096
)

var e164Prefix = regexp.MustCompile(`^\+`)

var endpointARNPattern = regexp.MustCompile(`^arn:aws[a-zA-Z-]*:sns:[a-z0-9-]+:\d{12}:endpoint/[^\s]+$`)

// ValidateEmailRecipients checks that recipient holds one or more
// comma separated, well-formed email addresses.
func ValidateEmailRecipients(recipient string) error {
	n := Notification{Recipient: recipient}
	addrs := n.Recipients()
	if len(addrs) == 0 {
		return &ValidationError{Field: "recipient", Message: "at least one email address is required"}
	}
	for _, addr := range addrs {
		if err := validation.Validate(addr, is.EmailFormat); err != nil {
			return &ValidationError{Field: "recipient", Message: fmt.Sprintf("%q: %v", addr, err)}
		}
	}
	return nil
}

// ValidatePhoneNumber checks that phone is in E.164 form (+ and up to 15 digits).
func ValidatePhoneNumber(phone string) error {
	err := validation.Validate(phone,
		validation.Required.Error("phone number is required"),
		validation.Match(e164Prefix).Error("phone number must start with +"),
		is.E164,
	)
	if err != nil {
		return &ValidationError{Field: "recipient", Message: err.Error()}
	}
	return nil
}

// ValidateDeviceToken accepts either an SNS platform endpoint ARN or a raw
// device token of printable, non-whitespace characters.
func ValidateDeviceToken(token string) error {
	if endpointARNPattern.MatchString(token) {
		return nil
	}
	err := validation.Validate(token,
		validation.Required.Error("device token is required"),
		validation.RuneLength(minDeviceTokenLength, maxDeviceTokenLength),
		validation.By(printableNoSpace),
	)
	if err != nil {
		return &ValidationError{Field: "recipient", Message: err.Error()}
	}
	return nil
}

func printableNoSpace(value interface{}) error {
	s, _ := value.(string)
	for _, r := range s {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return validation.NewError("validation_device_token", "must contain only printable, non-whitespace characters")
		}
	}
	return nil
}

// ValidatePayload checks the fields the given channel requires.
func ValidatePayload(t OutputType, p Payload) error {
	var rules []*validation.FieldRules
	switch t {
	case OutputEmail:
		rules = []*validation.FieldRules{
			validation.Field(&p.Subject, validation.Required.Error("subject is required"), validation.RuneLength(1, maxSubjectLength)),
			validation.Field(&p.Body, validation.Required.Error("body is required"), validation.Length(1, maxBodyLength)),
		}
	case OutputSMS, OutputPush:
		rules = []*validation.FieldRules{
			validation.Field(&p.Body, validation.Required.Error("body is required"), validation.Length(1, maxBodyLength)),
		}
	default:
		return &ValidationError{Field: "output_type", Message: fmt.Sprintf("unsupported output_type %q", t)}
	}
	if err := validation.ValidateStruct(&p, rules...); err != nil {
		return toValidationError("payload", err)
	}
	return nil
}

// Validate checks the notification's identity fields, recipient and payload
// against the rules of its channel.
func (n *Notification) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return &ValidationError{Field: "id", Message: "id is required"}
	}
	if !n.OutputType.Valid() {
		return &ValidationError{Field: "output_type", Message: fmt.Sprintf("unsupported output_type %q", n.OutputType)}
	}
	var err error
	switch n.OutputType {
	case OutputEmail:
		err = ValidateEmailRecipients(n.Recipient)
	case OutputSMS:
		err = ValidatePhoneNumber(strings.TrimSpace(n.Recipient))
	case OutputPush:
		err = ValidateDeviceToken(strings.TrimSpace(n.Recipient))
	}
	if err != nil {
		return err
	}
	return ValidatePayload(n.OutputType, n.Payload)
}

// toValidationError flattens jellydator field errors into a single ValidationError.
func toValidationError(prefix string, err error) error {
	var errs validation.Errors
	if errors.As(err, &errs) && len(errs) > 0 {
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return &ValidationError{Field: prefix + "." + fields[0], Message: errs[fields[0]].Error()}
	}
	return &ValidationError{Field: prefix, Message: err.Error()}
}
