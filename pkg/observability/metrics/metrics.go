package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    // Requests counts processed requests by message kind and origin
    // ("local" for short-circuited calls, "remote" for decoded frames).
    Requests = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "hps",
        Name:      "requests_total",
        Help:      "Total pub/sub requests processed by this node",
    }, []string{"kind", "origin"})

    // Dropped counts requests ignored by the engine, by reason.
    Dropped = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "hps",
        Name:      "dropped_total",
        Help:      "Requests dropped (not_responsible, unknown_service, unsubscribed)",
    }, []string{"reason"})

    InfoDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "hps",
        Name:      "info_deliveries_total",
        Help:      "Info messages fanned out by managed services",
    }, []string{"target"})

    FramingErrors = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "hps",
        Name:      "framing_errors_total",
        Help:      "Inbound frames rejected as malformed",
    })

    Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "hps",
        Name:      "subscriptions",
        Help:      "Current number of own subscriptions",
    })

    ServiceManagers = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "hps",
        Name:      "service_managers",
        Help:      "Current number of services managed by this node",
    })

    ReconcilePasses = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "hps",
        Name:      "reconcile_passes_total",
        Help:      "Reconciliation passes executed",
    }, []string{"pass"})

    Handoffs = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "hps",
        Name:      "handoffs_total",
        Help:      "Responsibility changes observed (managers dropped, subscriptions moved)",
    }, []string{"direction"})

    MeshMembers = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "hps",
        Subsystem: "mesh",
        Name:      "members",
        Help:      "Current number of known mesh members",
    })

    InstancesLost = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "hps",
        Subsystem: "mesh",
        Name:      "instances_lost_total",
        Help:      "Peers reported lost by the mesh",
    })

    GRPCConnDials = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "hps",
        Subsystem: "grpc_conn",
        Name:      "dials_total",
        Help:      "Total number of new gRPC connections dialed",
    })
    GRPCConnReuse = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "hps",
        Subsystem: "grpc_conn",
        Name:      "reuse_total",
        Help:      "Total number of gRPC connection reuses from cache",
    })
    GRPCConnEvictions = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "hps",
        Subsystem: "grpc_conn",
        Name:      "evictions_total",
        Help:      "Total number of cached gRPC connections evicted",
    })
    GRPCConnActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "hps",
        Subsystem: "grpc_conn",
        Name:      "active",
        Help:      "Number of active cached gRPC connections",
    })
    WatchStreams = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "hps",
        Subsystem: "grpc",
        Name:      "watch_streams",
        Help:      "Number of open event watch streams",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(Requests)
        prometheus.MustRegister(Dropped)
        prometheus.MustRegister(InfoDeliveries)
        prometheus.MustRegister(FramingErrors)
        prometheus.MustRegister(Subscriptions)
        prometheus.MustRegister(ServiceManagers)
        prometheus.MustRegister(ReconcilePasses)
        prometheus.MustRegister(Handoffs)
        prometheus.MustRegister(MeshMembers)
        prometheus.MustRegister(InstancesLost)
        prometheus.MustRegister(GRPCConnDials)
        prometheus.MustRegister(GRPCConnReuse)
        prometheus.MustRegister(GRPCConnEvictions)
        prometheus.MustRegister(GRPCConnActive)
        prometheus.MustRegister(WatchStreams)
    })
}
