package utils

import (
	"os"
	"sync"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// AppState carries the process-wide pieces every package needs: env config,
// the natural-language date parser, metric channels and the graceful-shutdown
// fanout. Session-scoped state (timezone, cache DB, agents) lives in the
// session registry instead.
type AppState struct {
	Config      *Config
	When        *when.Parser
	MetricChans *Metric

	AppCloseSignalChan chan os.Signal

	gracefulShutdownChansMutex sync.Mutex
	gracefulShutdownChans      []*chan struct{}
}

func NewAppState() *AppState {
	as := &AppState{
		MetricChans:        NewMetric(),
		AppCloseSignalChan: make(chan os.Signal, 1),
	}

	// date parser
	as.When = when.New(nil)
	as.When.Add(en.All...)
	as.When.Add(common.All...)

	// env
	as.Config = NewConfig()

	return as
}

// CreateGracefulShutdownChan hands out a channel that closes when the app is
// shutting down; long-running goroutines select on it.
func (as *AppState) CreateGracefulShutdownChan() *chan struct{} {
	ch := make(chan struct{})
	as.gracefulShutdownChansMutex.Lock()
	as.gracefulShutdownChans = append(as.gracefulShutdownChans, &ch)
	as.gracefulShutdownChansMutex.Unlock()
	return &ch
}

func (as *AppState) GracefulShutdown() {
	as.gracefulShutdownChansMutex.Lock()
	defer as.gracefulShutdownChansMutex.Unlock()
	for _, ch := range as.gracefulShutdownChans {
		close(*ch)
	}
	as.gracefulShutdownChans = nil
}
