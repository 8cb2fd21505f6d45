package event

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/foncier/backend/internal/domain/document"
	"github.com/foncier/backend/internal/domain/dossier"
	"github.com/foncier/backend/internal/domain/geo"
	"github.com/foncier/backend/internal/domain/shared"
)

const aggregateSuffix = ".*"

// AggregateTopic names every event emitted by one aggregate type, e.g. "Association.*"
func AggregateTopic(aggregateType string) string {
	return aggregateType + aggregateSuffix
}

// DefaultCatalog maps each published event type to the aggregate emitting it
func DefaultCatalog() map[string]string {
	return map[string]string{
		dossier.EventTypeDossierCreated:         dossier.AggregateTypeDossier,
		dossier.EventTypeDossierClosed:          dossier.AggregateTypeDossier,
		dossier.EventTypeDossierReopened:        dossier.AggregateTypeDossier,
		dossier.EventTypeDossierDeleted:         dossier.AggregateTypeDossier,
		dossier.EventTypePropertyCreated:        dossier.AggregateTypeProperty,
		dossier.EventTypePropertyUpdated:        dossier.AggregateTypeProperty,
		dossier.EventTypePropertyDeleted:        dossier.AggregateTypeProperty,
		dossier.EventTypeRequesterCreated:       dossier.AggregateTypeRequester,
		dossier.EventTypeRequesterUpdated:       dossier.AggregateTypeRequester,
		dossier.EventTypeRequesterDeleted:       dossier.AggregateTypeRequester,
		dossier.EventTypeAssociationCreated:     dossier.AggregateTypeAssociation,
		dossier.EventTypeAssociationDissociated: dossier.AggregateTypeAssociation,
		document.EventTypeDocumentAllocated:     document.AggregateTypeDocument,
		geo.EventTypeTariffChanged:              geo.AggregateTypeDistrict,
	}
}

// HandlerRegistry routes events to handlers bound to their type, to their
// aggregate, or to everything. Topics outside the catalog are refused at
// registration so a misspelt type fails at startup instead of never firing.
type HandlerRegistry struct {
	mu          sync.RWMutex
	catalog     map[string]string
	aggregates  map[string]bool
	byType      map[string][]shared.EventHandler
	byAggregate map[string][]shared.EventHandler
	wildcard    []shared.EventHandler
}

// NewHandlerRegistry creates a registry accepting the topics of catalog
func NewHandlerRegistry(catalog map[string]string) *HandlerRegistry {
	aggregates := make(map[string]bool, len(catalog))
	for _, aggregate := range catalog {
		aggregates[aggregate] = true
	}
	return &HandlerRegistry{
		catalog:     catalog,
		aggregates:  aggregates,
		byType:      make(map[string][]shared.EventHandler),
		byAggregate: make(map[string][]shared.EventHandler),
	}
}

// Register binds handler to topics, or to every event when none is given.
// Nothing is bound when any topic is unknown.
func (r *HandlerRegistry) Register(handler shared.EventHandler, topics ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(topics) == 0 {
		r.wildcard = append(r.wildcard, handler)
		return nil
	}

	for _, topic := range topics {
		if aggregate, ok := strings.CutSuffix(topic, aggregateSuffix); ok {
			if !r.aggregates[aggregate] {
				return fmt.Errorf("unknown aggregate topic %q", topic)
			}
			continue
		}
		if _, ok := r.catalog[topic]; !ok {
			return fmt.Errorf("unknown event type %q", topic)
		}
	}

	for _, topic := range topics {
		if aggregate, ok := strings.CutSuffix(topic, aggregateSuffix); ok {
			r.byAggregate[aggregate] = appendOnce(r.byAggregate[aggregate], handler)
		} else {
			r.byType[topic] = appendOnce(r.byType[topic], handler)
		}
	}
	return nil
}

// Unregister removes a handler from every topic
func (r *HandlerRegistry) Unregister(handler shared.EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wildcard = removeHandler(r.wildcard, handler)
	for _, routes := range []map[string][]shared.EventHandler{r.byType, r.byAggregate} {
		for topic, handlers := range routes {
			if routes[topic] = removeHandler(handlers, handler); len(routes[topic]) == 0 {
				delete(routes, topic)
			}
		}
	}
}

// Handlers returns the handlers event reaches, each once: type bindings first,
// then aggregate bindings, then wildcards
func (r *HandlerRegistry) Handlers(event shared.DomainEvent) []shared.EventHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []shared.EventHandler
	for _, group := range [][]shared.EventHandler{
		r.byType[event.EventType()],
		r.byAggregate[event.AggregateType()],
		r.wildcard,
	} {
		for _, h := range group {
			result = appendOnce(result, h)
		}
	}
	return result
}

// Len returns the number of distinct registered handlers
func (r *HandlerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []shared.EventHandler
	for _, h := range r.wildcard {
		all = appendOnce(all, h)
	}
	for _, routes := range []map[string][]shared.EventHandler{r.byType, r.byAggregate} {
		for _, handlers := range routes {
			for _, h := range handlers {
				all = appendOnce(all, h)
			}
		}
	}
	return len(all)
}

func appendOnce(handlers []shared.EventHandler, h shared.EventHandler) []shared.EventHandler {
	if slices.Contains(handlers, h) {
		return handlers
	}
	return append(handlers, h)
}

func removeHandler(handlers []shared.EventHandler, target shared.EventHandler) []shared.EventHandler {
	return slices.DeleteFunc(slices.Clone(handlers), func(h shared.EventHandler) bool { return h == target })
}
