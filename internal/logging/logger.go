package logging

import (
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/sebuszqo/SledHockey/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// sensitivePatterns match values that must never reach the logs.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`pi_[A-Za-z0-9]+_secret_[A-Za-z0-9]+`),
	regexp.MustCompile(`(sk|rk)_(test|live)_[A-Za-z0-9]+`),
	regexp.MustCompile(`whsec_[A-Za-z0-9]+`),
	regexp.MustCompile(`(?i)(client_?secret|password|token)(["\s:=]+)([^"\s,}]+)`),
	regexp.MustCompile(`(?i)(bearer\s+)([^\s"]+)`),
}

var sensitiveKeys = map[string]bool{
	"client_secret": true,
	"clientsecret":  true,
	"password":      true,
	"token":         true,
	"access_token":  true,
	"session_token": true,
	"secret":        true,
}

// Setup configures the global logrus logger.
func Setup(cfg config.LoggingConfig) {
	level, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	log.SetOutput(out)

	log.StandardLogger().ReplaceHooks(make(log.LevelHooks))
	log.AddHook(redactHook{})
}

// redactHook scrubs every entry before it is formatted, so secrets passed
// in messages, fields or errors never reach an output.
type redactHook struct{}

func (redactHook) Levels() []log.Level {
	return log.AllLevels
}

func (redactHook) Fire(entry *log.Entry) error {
	entry.Message = Redact(entry.Message)
	entry.Data = SafeFields(entry.Data)
	return nil
}

// Component returns an entry tagged with the component name.
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}

// Redact masks secrets in s while keeping enough of it to be useful.
func Redact(s string) string {
	result := s
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			parts := pattern.FindStringSubmatch(match)
			if len(parts) >= 3 && pattern.NumSubexp() == 3 {
				return parts[1] + parts[2] + "[REDACTED]"
			}
			if len(parts) == 3 && strings.HasPrefix(strings.ToLower(parts[1]), "bearer") {
				return parts[1] + "[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return result
}

// SafeFields copies fields, redacting sensitive keys, string values and errors.
func SafeFields(fields map[string]interface{}) log.Fields {
	result := make(log.Fields, len(fields))
	for k, v := range fields {
		if sensitiveKeys[strings.ToLower(k)] {
			result[k] = "[REDACTED]"
		} else if str, ok := v.(string); ok {
			result[k] = Redact(str)
		} else if err, ok := v.(error); ok && err != nil {
			result[k] = Redact(err.Error())
		} else {
			result[k] = v
		}
	}
	return result
}
