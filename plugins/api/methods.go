package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func handleRoot(c echo.Context) error {
	cc := c.(*extendedContext)
	return c.JSONPretty(http.StatusOK, &rootResponse{
		ApiRoutes: cc.apiRoutes,
	}, JSON_PRETTY_INDENT)
}

func handleState(c echo.Context) error {
	cc := c.(*extendedContext)

	s := cc.ctl.State()
	return c.JSONPretty(http.StatusOK, &stateResponse{
		State:    s.String(),
		Blocking: s.Blocking(),
		Terminal: s.Terminal(),
	}, JSON_PRETTY_INDENT)
}

// handleInterrupt behaves just like a Ctrl-C on the terminal: monitoring
// is stopped if it's active and nothing happens otherwise.
func handleInterrupt(c echo.Context) error {
	cc := c.(*extendedContext)

	accepted := cc.ctl.Interrupt()

	status := http.StatusAccepted
	if !accepted {
		status = http.StatusConflict
	}

	return c.JSONPretty(status, &interruptResponse{
		Accepted: accepted,
		State:    cc.ctl.State().String(),
	}, JSON_PRETTY_INDENT)
}
