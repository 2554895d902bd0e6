package api

import (
	"github.com/labstack/echo/v4"

	"github.com/scitags/dropwatch-go/dropmon"
)

const (
	JSON_PRETTY_INDENT string = "    "
)

// Controller is the bit of the control loop the API gets to see. Both
// methods must be safe to call from any goroutine.
type Controller interface {
	State() dropmon.State
	Interrupt() bool
}

type rootResponse struct {
	ApiRoutes []*echo.Route `json:"routes"`
}

type stateResponse struct {
	State    string `json:"state"`
	Blocking bool   `json:"blocking"`
	Terminal bool   `json:"terminal"`
}

type interruptResponse struct {
	Accepted bool   `json:"accepted"`
	State    string `json:"state"`
}

type extendedContext struct {
	echo.Context
	apiRoutes []*echo.Route
	ctl       Controller
}
