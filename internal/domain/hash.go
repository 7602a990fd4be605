package domain

// ContentHash es un digest determinista de longitud fija sobre la
// serialización canónica de una serie de velas o de un resultado de
// backtest. Funciona como clave de caché y como token de consistencia
// entre snapshots.
type ContentHash string

// IsZero devuelve true si el hash no fue calculado.
func (h ContentHash) IsZero() bool { return h == "" }

// Short devuelve un prefijo legible para logs.
func (h ContentHash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}
