package core

// Logger is any structured logger used across the app.
// Extra args may carry an error, a map[string]interface{} of context, or the organization.Organization concerned.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
