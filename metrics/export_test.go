package metrics

import "github.com/prometheus/client_golang/prometheus"

func (x *Observer) RunsCounter() *prometheus.CounterVec { return x.runs }
func (x *Observer) RoundsCounter() prometheus.Counter   { return x.rounds }
