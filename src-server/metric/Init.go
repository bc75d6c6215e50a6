package metric

import (
	"caltalk/src-server/utils"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func databaseRead(as *utils.AppState, clearTickerInterval *time.Duration) {
	databaseRead := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "caltalk_database_read_microsec",
		Help: "The latency of an event cache read in microseconds",
	})
	good := true
	if err := prometheus.Register(databaseRead); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register caltalk_database_read_microsec metric", "error", err)
			good = false
		}
	}
	if good {
		slog.Debug("caltalk_database_read_microsec metric registered")
		databaseRead.Set(0)
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		clearTicker := time.NewTicker(*clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				switch prometheus.Unregister(databaseRead) {
				case true:
					slog.Debug("caltalk_database_read_microsec metric unregistered")
				case false:
					slog.Warn("caltalk_database_read_microsec metric not registered")
				}
				return
			case latency := <-as.MetricChans.DatabaseRead:
				databaseRead.Set(latency)
				clearTicker.Reset(*clearTickerInterval)
			case <-clearTicker.C:
				databaseRead.Set(0)
			}
		}
	}()
}

func databaseWrite(as *utils.AppState, clearTickerInterval *time.Duration) {
	databaseWrite := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "caltalk_database_write_microsec",
		Help: "The latency of an event cache write in microseconds",
	})
	good := true
	if err := prometheus.Register(databaseWrite); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register caltalk_database_write_microsec metric", "error", err)
			good = false
		}
	}
	if good {
		slog.Debug("caltalk_database_write_microsec metric registered")
		databaseWrite.Set(0)
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		clearTicker := time.NewTicker(*clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				switch prometheus.Unregister(databaseWrite) {
				case true:
					slog.Debug("caltalk_database_write_microsec metric unregistered")
				case false:
					slog.Warn("caltalk_database_write_microsec metric not registered")
				}
				return
			case latency := <-as.MetricChans.DatabaseWrite:
				databaseWrite.Set(latency)
				clearTicker.Reset(*clearTickerInterval)
			case <-clearTicker.C:
				databaseWrite.Set(0)
			}
		}
	}()
}

func llmRequest(as *utils.AppState, clearTickerInterval *time.Duration) {
	llmRequest := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "caltalk_llm_request_microsec",
		Help: "The latency of a chat-completions request in microseconds",
	})
	good := true
	if err := prometheus.Register(llmRequest); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register caltalk_llm_request_microsec metric", "error", err)
			good = false
		}
	}
	if good {
		slog.Debug("caltalk_llm_request_microsec metric registered")
		llmRequest.Set(0)
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		clearTicker := time.NewTicker(*clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				switch prometheus.Unregister(llmRequest) {
				case true:
					slog.Debug("caltalk_llm_request_microsec metric unregistered")
				case false:
					slog.Warn("caltalk_llm_request_microsec metric not registered")
				}
				return
			case latency := <-as.MetricChans.LLMRequest:
				llmRequest.Set(latency)
				clearTicker.Reset(*clearTickerInterval)
			case <-clearTicker.C:
				llmRequest.Set(0)
			}
		}
	}()
}

func providerRequest(as *utils.AppState, clearTickerInterval *time.Duration) {
	providerRequest := promauto.NewGauge(prometheus.GaugeOpts{
		Name: "caltalk_provider_request_microsec",
		Help: "The latency of a calendar provider round trip in microseconds",
	})
	good := true
	if err := prometheus.Register(providerRequest); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			slog.Error("can't register caltalk_provider_request_microsec metric", "error", err)
			good = false
		}
	}
	if good {
		slog.Debug("caltalk_provider_request_microsec metric registered")
		providerRequest.Set(0)
	}
	go func() {
		gracefulShutdownCh := as.CreateGracefulShutdownChan()
		clearTicker := time.NewTicker(*clearTickerInterval)
		defer clearTicker.Stop()
		for {
			select {
			case <-*gracefulShutdownCh:
				switch prometheus.Unregister(providerRequest) {
				case true:
					slog.Debug("caltalk_provider_request_microsec metric unregistered")
				case false:
					slog.Warn("caltalk_provider_request_microsec metric not registered")
				}
				return
			case latency := <-as.MetricChans.ProviderRequest:
				providerRequest.Set(latency)
				clearTicker.Reset(*clearTickerInterval)
			case <-clearTicker.C:
				providerRequest.Set(0)
			}
		}
	}()
}

func Init(as *utils.AppState) {
	clearTickerInterval := as.Config.GetMetricCollectionInterval() * 2

	databaseRead(as, &clearTickerInterval)
	databaseWrite(as, &clearTickerInterval)
	llmRequest(as, &clearTickerInterval)
	providerRequest(as, &clearTickerInterval)
}
