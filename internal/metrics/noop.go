package metrics

import "time"

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSettlement(string, string, bool)                   {}
func (NoopMetricsCollector) RecordWebhook(string, string)                            {}
func (NoopMetricsCollector) RecordConsumption(string, string, int64)                 {}
func (NoopMetricsCollector) RecordInsufficientBalance(string)                        {}
func (NoopMetricsCollector) RecordExpired(int64)                                     {}
func (NoopMetricsCollector) RecordRateRefresh(bool, int)                             {}
func (NoopMetricsCollector) RecordProviderCall(string, string, time.Duration, error) {}
