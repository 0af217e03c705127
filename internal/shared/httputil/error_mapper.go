package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// Rule is the HTTP answer a handler gives for errors wrapping Target.
type Rule struct {
	Target  error
	Status  int
	Message string
}

func On(target error, status int, message string) Rule {
	return Rule{Target: target, Status: status, Message: message}
}

// Fallback is the answer for errors no rule matches.
func Fallback(status int, message string) Rule {
	return Rule{Status: status, Message: message}
}

// Context errors are resolved after the caller's own rules.
var contextRules = []Rule{
	On(context.DeadlineExceeded, http.StatusGatewayTimeout, "request timeout"),
	On(context.Canceled, http.StatusServiceUnavailable, "request cancelled"),
}

// ErrorMapper resolves an error to the first rule whose Target it wraps.
type ErrorMapper struct {
	rules    []Rule
	fallback Rule
}

func NewErrorMapper(fallback Rule, rules ...Rule) ErrorMapper {
	return ErrorMapper{
		rules:    append(append([]Rule(nil), rules...), contextRules...),
		fallback: fallback,
	}
}

// Resolve returns the matching rule, or the fallback when none matches. A nil
// error resolves to 200.
func (m ErrorMapper) Resolve(err error) Rule {
	if err == nil {
		return Rule{Status: http.StatusOK}
	}
	return lo.FindOrElse(m.rules, m.fallback, func(r Rule) bool {
		return errors.Is(err, r.Target)
	})
}

// Echo resolves err as an echo error ready to return from a handler.
func (m ErrorMapper) Echo(err error) *echo.HTTPError {
	rule := m.Resolve(err)
	return echo.NewHTTPError(rule.Status, rule.Message)
}
