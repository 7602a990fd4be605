// Package cache implementa el store de resultados de riesgo con clave por
// símbolo+intervalo. Cada clave sigue la máquina de estados
// EMPTY → COMPUTING → CACHED: una lectura con hash coincidente sirve la
// entrada cacheada; un miss o un hash distinto dispara una recomputación con
// a-lo-sumo-una en vuelo por clave (protección contra stampede). Las
// entradas se reemplazan, nunca se mutan.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LautaroIbanez/warren/internal/domain"
)

// Key identifica una entrada: un par símbolo+intervalo.
type Key struct {
	Symbol   string
	Interval string
}

func (k Key) String() string { return k.Symbol + "_" + k.Interval }

// Entry es el valor cacheado: métricas + validación + momento de cómputo,
// sellado con el hash de las velas que lo produjeron. Propiedad exclusiva
// del Manager.
type Entry struct {
	Metrics    domain.BacktestMetrics
	Validation domain.ReliabilityValidation
	Hash       domain.ContentHash
	ComputedAt time.Time
}

// Result es el resultado de una lectura.
type Result struct {
	Entry         Entry
	Cached        bool
	WasRecomputed bool
	// CacheValidation se calcula fresco en cada lectura, nunca se persiste.
	CacheValidation *domain.CacheValidation
	// PreviousCacheValidation marca una entrada anterior servida mientras
	// otra goroutine recomputa la misma clave.
	PreviousCacheValidation *domain.CacheValidation
}

// ComputeFunc recalcula métricas y validación para una clave. Corre fuera
// del lock del Manager; debe respetar el contexto.
type ComputeFunc func(ctx context.Context) (domain.BacktestMetrics, domain.ReliabilityValidation, error)

type slotState int

const (
	stateEmpty slotState = iota
	stateComputing
	stateCached
)

type slot struct {
	state    slotState
	entry    *Entry        // última entrada comprometida, nil si nunca hubo
	inflight chan struct{} // se cierra al terminar la recomputación en curso
}

// Manager es el store keyed de resultados de riesgo. Se crea al arrancar el
// servicio y se inyecta por referencia a quien lo necesita: no es un
// singleton.
type Manager struct {
	mu    sync.Mutex
	slots map[Key]*slot
	ttl   time.Duration
	now   func() time.Time
}

// NewManager crea un Manager con la ventana de frescura dada para el
// staleness por edad.
func NewManager(freshness time.Duration) *Manager {
	return &Manager{
		slots: make(map[Key]*slot),
		ttl:   freshness,
		now:   time.Now,
	}
}

// Get sirve la entrada para key validándola contra currentHash.
//
// Camino de lectura: si existe entrada con hash igual se sirve con
// Cached=true; si no existe o el hash difiere, transiciona por COMPUTING
// ejecutando compute y comete una entrada nueva con WasRecomputed=true.
// Lectores concurrentes durante COMPUTING reciben la entrada anterior
// (flagged PreviousCacheValidation) o esperan si no hay ninguna — nunca una
// segunda recomputación redundante. Un fallo o cancelación de compute deja
// la entrada anterior intacta.
func (m *Manager) Get(ctx context.Context, key Key, currentHash domain.ContentHash, compute ComputeFunc) (Result, error) {
	for {
		m.mu.Lock()
		sl, ok := m.slots[key]
		if !ok {
			sl = &slot{}
			m.slots[key] = sl
		}

		switch sl.state {
		case stateCached:
			if sl.entry.Hash == currentHash {
				res := Result{
					Entry:           *sl.entry,
					Cached:          true,
					CacheValidation: m.validation(sl.entry, currentHash, false),
				}
				m.mu.Unlock()
				return res, nil
			}
			// Hash distinto: recomputar debajo

		case stateComputing:
			if sl.entry != nil {
				res := Result{
					Entry:                   *sl.entry,
					Cached:                  true,
					PreviousCacheValidation: m.validation(sl.entry, currentHash, sl.entry.Hash != currentHash),
				}
				m.mu.Unlock()
				return res, nil
			}
			// Sin entrada previa: esperar a la recomputación en vuelo
			ch := sl.inflight
			m.mu.Unlock()
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-ch:
			}
			continue
		}

		// EMPTY o hash inconsistente: esta goroutine recomputa
		prev := sl.entry
		sl.state = stateComputing
		sl.inflight = make(chan struct{})
		m.mu.Unlock()

		return m.recompute(ctx, key, sl, prev, currentHash, compute)
	}
}

// recompute ejecuta compute fuera del lock y comete (o revierte) el slot.
func (m *Manager) recompute(ctx context.Context, key Key, sl *slot, prev *Entry, currentHash domain.ContentHash, compute ComputeFunc) (Result, error) {
	metrics, validation, err := compute(ctx)
	if err == nil {
		// Verificar cancelación antes de cometer la entrada nueva
		err = ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	defer close(sl.inflight)

	if err != nil {
		// La entrada anterior queda intacta; el fallo sube al caller
		if sl.entry != nil {
			sl.state = stateCached
		} else {
			sl.state = stateEmpty
		}
		return Result{}, fmt.Errorf("cache.Get: recompute %s: %w", key, err)
	}

	entry := &Entry{
		Metrics:    metrics,
		Validation: validation,
		Hash:       currentHash,
		ComputedAt: m.now(),
	}
	sl.entry = entry
	sl.state = stateCached

	cv := &domain.CacheValidation{
		CurrentHash: currentHash,
	}
	if prev != nil {
		cv.CachedHash = prev.Hash
		cv.IsInconsistent = prev.Hash != currentHash
		cv.IsStale = m.now().Sub(prev.ComputedAt) > m.ttl
		cv.Reason = fmt.Sprintf("hash cacheado %s no coincide con el actual %s; recomputado",
			prev.Hash.Short(), currentHash.Short())
	} else {
		cv.Reason = "sin entrada previa; primera computación"
	}

	return Result{
		Entry:           *entry,
		WasRecomputed:   true,
		CacheValidation: cv,
	}, nil
}

// validation arma la CacheValidation de una lectura sobre entry.
func (m *Manager) validation(entry *Entry, currentHash domain.ContentHash, inconsistent bool) *domain.CacheValidation {
	age := m.now().Sub(entry.ComputedAt)
	cv := &domain.CacheValidation{
		IsStale:        age > m.ttl,
		IsInconsistent: inconsistent,
		CachedHash:     entry.Hash,
		CurrentHash:    currentHash,
	}
	switch {
	case inconsistent:
		cv.Reason = fmt.Sprintf("hash cacheado %s no coincide con el actual %s; recomputación en curso",
			entry.Hash.Short(), currentHash.Short())
	case cv.IsStale:
		cv.Reason = fmt.Sprintf("entrada con %.1f horas de antigüedad (máximo: %.0fh)",
			age.Hours(), m.ttl.Hours())
	}
	return cv
}

// Invalidate descarta la entrada de una clave. Una recomputación en vuelo
// sobre la clave no se interrumpe.
func (m *Manager) Invalidate(key Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sl, ok := m.slots[key]
	if !ok || sl.state == stateComputing {
		return
	}
	delete(m.slots, key)
}
