package observe

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	onlineSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_online_sessions",
		Help: "Number of live WebSocket sessions",
	})

	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Messages handled by direction",
		},
		[]string{"direction"}, // ingress|egress
	)

	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_dropped_messages_total",
		Help: "Messages dropped due to subscriber backpressure",
	})

	decodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_decode_errors_total",
		Help: "Frames that failed envelope decoding",
	})

	crcMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_crc_mismatch_total",
		Help: "Structurally valid envelopes whose content checksum did not match",
	})

	persistErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_persist_errors_total",
		Help: "Storage failures while persisting envelopes",
	})

	publishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_publish_errors_total",
		Help: "Bus failures while publishing envelopes",
	})

	bridgeReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_bridge_reconnects_total",
		Help: "Times the bus bridge re-established its subscription",
	})
)

func AddOnline(delta float64) { onlineSessions.Add(delta) }
func IncIngress()             { messagesTotal.WithLabelValues("ingress").Inc() }
func IncEgress()              { messagesTotal.WithLabelValues("egress").Inc() }
func IncDropped()             { droppedTotal.Inc() }
func IncDecodeError()         { decodeErrorsTotal.Inc() }
func IncCRCMismatch()         { crcMismatchTotal.Inc() }
func IncPersistError()        { persistErrorsTotal.Inc() }
func IncPublishError()        { publishErrorsTotal.Inc() }
func IncBridgeReconnect()     { bridgeReconnectsTotal.Inc() }
