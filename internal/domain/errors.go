package domain

import "errors"

// Errores centinela del motor de consistencia. Los fallos de dominio durante
// un refresh se capturan por-dominio; solo ErrIngestion aborta la operación
// completa.
var (
	// ErrInvalidInput indica velas o trades malformados (NaN, timestamps no
	// monotónicos). Fatal para la etapa actual, nunca corrompe la caché.
	ErrInvalidInput = errors.New("input inválido")

	// ErrStaleData es advisory: los datos superan la ventana de frescura.
	ErrStaleData = errors.New("datos obsoletos")

	// ErrInconsistentCache es advisory: el hash cacheado ya no coincide con
	// el hash actual de los inputs. Dispara recomputación, no es fatal.
	ErrInconsistentCache = errors.New("caché inconsistente")

	// ErrIngestion indica que la ingestión falló. Sin velas nuevas nada
	// aguas abajo es confiable, así que aborta el refresh completo.
	ErrIngestion = errors.New("ingestión fallida")

	// ErrPartialRefresh indica que uno o más dominios no-ingestión fallaron;
	// el refresh aún reporta éxito si la ingestión funcionó.
	ErrPartialRefresh = errors.New("refresh parcial")

	// ErrNoData indica que no existe ningún dato para el símbolo/intervalo.
	ErrNoData = errors.New("sin datos")
)
