package utils

type Metric struct {
	DatabaseRead    chan float64
	DatabaseWrite   chan float64
	LLMRequest      chan float64
	ProviderRequest chan float64
}

func NewMetric() *Metric {
	return &Metric{
		DatabaseRead:    make(chan float64, 16),
		DatabaseWrite:   make(chan float64, 16),
		LLMRequest:      make(chan float64, 16),
		ProviderRequest: make(chan float64, 16),
	}
}
