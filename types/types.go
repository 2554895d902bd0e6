package types

// Plugin is an auxiliary service running next to the control loop.
type Plugin interface {
	Init() error
	Run(<-chan struct{})
	Cleanup() error
	String() string
}
