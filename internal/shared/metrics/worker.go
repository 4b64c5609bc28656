package metrics

import "github.com/prometheus/client_golang/prometheus"

// WorkerCollectors cobre o settlement-worker e o fan-out do results-service
type WorkerCollectors struct {
	Consumed   *prometheus.CounterVec // label "topic"
	Broadcasts prometheus.Counter
	DeadLetter prometheus.Counter
	Errors     *prometheus.CounterVec // label "stage"
}

func NewWorkerCollectors(reg prometheus.Registerer, service string) *WorkerCollectors {
	constLabels := prometheus.Labels{"service": service}

	c := &WorkerCollectors{
		Consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_messages_consumed_total", Help: "mensagens consumidas por tópico", ConstLabels: constLabels,
		}, []string{"topic"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_broadcasts_total", Help: "updates publicados/entregues", ConstLabels: constLabels,
		}),
		DeadLetter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "worker_dead_letters_total", Help: "mensagens enviadas para a DLQ", ConstLabels: constLabels,
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_errors_total", Help: "erros por estágio", ConstLabels: constLabels,
		}, []string{"stage"}),
	}
	reg.MustRegister(c.Consumed, c.Broadcasts, c.DeadLetter, c.Errors)
	return c
}
