// Package logsvc reports application events to Rollbar and mirrors them to a stdlib logger.
package logsvc

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
)

// RollbarLogger prints to a stdlib logger and reports to Rollbar outside debug mode.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger writes to stdout under "<prefix> : ".
// Reporting is off in debug mode or when no token is configured.
func NewRollbarLogger(prefix string, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(rollbarerrors.StackTracer)
	rollbar.SetCustom(map[string]interface{}{"app": conf.AppName})
	rollbar.SetEnabled(!conf.Debug && conf.RollbarToken != "")

	std := log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return &RollbarLogger{std: std}
}

// entry is one log call with its args sorted out.
type entry struct {
	msg    string
	err    error
	person *user.User
	fields map[string]interface{}
}

// newEntry reads args of these kinds: error, map[string]interface{}, user.User (the actor),
// proposal.Proposal and project.Project. Anything else is kept under "extra".
func newEntry(msg string, args []interface{}) entry {
	e := entry{msg: msg, fields: make(map[string]interface{})}
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case error:
			if e.err == nil {
				e.err = v
			} else {
				e.appendField("errors", v.Error())
			}
			var vio *proposal.Violation
			if errors.As(v, &vio) {
				e.fields["violation"] = vio.Code
			}
		case user.User:
			if e.person == nil && v.IsAuthenticated() { // only one actor
				usr := v
				e.person = &usr
				e.fields["actor_role"] = usr.Role
			}
		case proposal.Proposal:
			e.fields["proposal_id"] = v.ID
			e.fields["project_id"] = v.ProjectID
			e.fields["student_id"] = v.StudentID
			e.fields["status"] = string(v.Status)
		case project.Project:
			e.fields["project_id"] = v.ID
			e.fields["teacher_id"] = v.TeacherID
		case map[string]interface{}:
			for k, val := range v {
				e.fields[k] = val
			}
		default:
			e.appendField("extra", fmt.Sprintf("%+v", v))
		}
	}
	return e
}

func (e *entry) appendField(key, val string) {
	vals, _ := e.fields[key].([]string)
	e.fields[key] = append(vals, val)
}

// rollbarArgs drops msg when an error is reported, so it travels as a custom field.
func (e entry) rollbarArgs() []interface{} {
	extras := make(map[string]interface{}, len(e.fields)+1)
	for k, v := range e.fields {
		extras[k] = v
	}
	args := []interface{}{e.msg}
	if e.err != nil {
		extras["message"] = e.msg
		args = append(args, e.err)
	}
	if len(extras) > 0 {
		args = append(args, extras)
	}
	return args
}

// line renders the entry as "msg key=value ..." with sorted keys.
func (e entry) line() string {
	var b strings.Builder
	b.WriteString(e.msg)
	if e.person != nil {
		fmt.Fprintf(&b, " actor=%s", e.person.ID)
	}
	keys := make([]string, 0, len(e.fields))
	for k := range e.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.fields[k])
	}
	if e.err != nil {
		fmt.Fprintf(&b, "\n%+v", e.err)
	}
	return b.String()
}

func (l *RollbarLogger) report(report func(...interface{}), msg string, args []interface{}) {
	e := newEntry(msg, args)
	if e.person != nil {
		rollbar.SetPerson(e.person.ID, e.person.DisplayName(), e.person.Email)
	} else {
		rollbar.ClearPerson()
	}
	report(e.rollbarArgs()...)
	_ = l.std.Output(3, e.line())
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	l.report(rollbar.Debug, msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.report(rollbar.Info, msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.report(rollbar.Warning, msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.report(rollbar.Error, msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.Critical, msg, args)
	rollbar.Wait()
	os.Exit(1)
}
