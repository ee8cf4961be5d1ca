package entity

// ApplicationConfig holds the provider settings registered for one requesting
// application. Empty fields fall back to the worker-wide defaults.
type ApplicationConfig struct {
	ApplicationID  string
	SESIdentityARN string
	SNSTopicARN    string
}
