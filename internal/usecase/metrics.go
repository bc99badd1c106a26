package usecase

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticketsMinted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registry_tickets_minted_total",
		Help: "The total number of tickets minted on this domain",
	})
	ticketsUsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registry_tickets_used_total",
		Help: "The total number of tickets marked used",
	})
	ticketsResold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_tickets_resold_total",
		Help: "The total number of completed resale purchases",
	})
	relocationsInitiated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_relocations_initiated_total",
		Help: "The total number of tickets sent to another domain",
	})
	messagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_messages_received_total",
		Help: "Inbound relocation messages by outcome",
	}, []string{"outcome"})
	operationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "usecase_operation_rejections_total",
		Help: "Operations aborted, by operation and error kind",
	}, []string{"operation", "kind"})
)
