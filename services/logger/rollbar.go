package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/ushauri/core"
	"github.com/trezcool/ushauri/core/user"
)

// RollbarLogger reports to Rollbar and prints to std.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger configures the rollbar client. Reporting is off without a token & in test mode.
func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	l := &RollbarLogger{std: std}
	l.Enable(conf.RollbarToken != "" && !conf.TestMode)
	return l
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Flush waits for the queued reports to be sent.
func (l RollbarLogger) Flush() {
	rollbar.Wait()
}

// prepare turns args into rollbar args.
// expected fmt: msg | error, map[string]interface{} (merged into a single extras map), user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		usrSet bool
		extras map[string]interface{}
	)
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			// set logged in User
			if !usrSet { // only set one User
				rollbar.SetPerson(v.ID, v.Name, v.Email)
				usrSet = true
			}
		case map[string]interface{}:
			if extras == nil {
				extras = make(map[string]interface{}, len(v))
			}
			for k, val := range v {
				extras[k] = val
			}
		default:
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	if extras != nil {
		newArgs = append(newArgs, extras)
	}
	return newArgs
}

// format renders msg followed by the sorted key=value pairs of the map args.
// Other args (errors included) are rendered on their own line.
func (l RollbarLogger) format(level, msg string, args []interface{}) string {
	var (
		b     strings.Builder
		pairs []string
		rest  []string
	)
	for _, arg := range args {
		switch v := arg.(type) {
		case map[string]interface{}:
			for k, val := range v {
				pairs = append(pairs, fmt.Sprintf("%s=%v", k, val))
			}
		case user.User:
			pairs = append(pairs, "user="+v.Email)
		default:
			rest = append(rest, fmt.Sprintf("%+v", v))
		}
	}
	sort.Strings(pairs)

	b.WriteString(level + ": " + msg)
	if len(pairs) > 0 {
		b.WriteString(" " + strings.Join(pairs, " "))
	}
	for _, r := range rest {
		b.WriteString("\n" + r)
	}
	return b.String()
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.std.Println(l.format("DEBUG", msg, args))
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.std.Println(l.format("INFO", msg, args))
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.std.Println(l.format("WARN", msg, args))
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.std.Println(l.format("ERROR", msg, args))
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	l.Flush()
	l.std.Fatal(l.format("FATAL", msg, args))
}
